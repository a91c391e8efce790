// Package config loads and validates the wdat process configuration.
//
// Configuration comes from three places, applied in order: built-in
// defaults, one or more YAML or JSON files, and WDAT_ environment
// variables. Files are merged key by key, so a layer only needs the
// settings it changes.
//
// # Basic Usage
//
//	loader := config.NewLoader()
//	loader.AddLayer("wdat.yaml")
//	loader.AddLayer("wdat.local.yaml") // Overrides wdat.yaml
//
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	exec, err := network.NewExecutor(cfg.Executor(), responses)
//
// # Validation
//
// The merged document is checked against an embedded JSON Schema
// (see Schema) before it is decoded, which catches unknown keys and
// wrong types with the offending field named. Config.Validate then checks
// the rules a schema cannot express, such as distinct gateway and metrics
// ports. Both return errors classified as invalid.
//
// # Environment Overrides
//
// Every scalar setting can be overridden with PREFIX_SECTION_KEY, for
// example WDAT_SERVER_BASE_URL, WDAT_WORKER_MODE or WDAT_LOG_LEVEL.
// Durations accept "30s" style strings and a "d" suffix for days.
//
// # Thread Safety
//
// Config values are plain data. SafeConfig wraps one for concurrent
// readers with validated replacement.
package config
