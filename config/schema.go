package config

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/G-Node/wdat2-sub001/errors"
)

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

// Schema returns the JSON Schema configuration documents are checked
// against.
func Schema() []byte {
	return schemaJSON
}

// ValidateSchema checks a JSON document against the configuration schema.
// Every violation is listed in the returned error.
func ValidateSchema(document []byte) error {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	})
	if schemaErr != nil {
		return errors.WrapFatal(schemaErr, "Config", "ValidateSchema", "compile schema")
	}

	result, err := compiledSchema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err),
			"Config", "ValidateSchema", "read document")
	}

	if !result.Valid() {
		var msg strings.Builder
		for _, desc := range result.Errors() {
			fmt.Fprintf(&msg, "\n  - %s: %s", desc.Field(), desc.Description())
		}
		return errors.WrapInvalid(fmt.Errorf("%w:%s", errors.ErrInvalidConfig, msg.String()),
			"Config", "ValidateSchema", "schema validation")
	}
	return nil
}
