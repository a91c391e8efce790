package adapter

import (
	"github.com/G-Node/wdat2-sub001/errors"
	"github.com/G-Node/wdat2-sub001/model"
)

// Request is a write addressed to the repository.
type Request struct {
	URL  string         `json:"url"`
	Data map[string]any `json:"data"`
}

// AdaptFromApplication builds the write request for obj. The URL targets
// the object itself when it has an id, its collection otherwise.
func AdaptFromApplication(obj model.Object) (Request, error) {
	var (
		id       string
		typ      = obj.Type
		category = obj.Category
	)

	if obj.ID != "" {
		ident, err := model.ParseID(obj.ID)
		if err != nil {
			return Request{}, err
		}
		id = ident.ID
		if ident.Type != "" {
			typ = ident.Type
		}
		if ident.Category != "" {
			category = ident.Category
		}
	}

	if typ == "" {
		return Request{}, errors.WrapInvalid(errors.ErrNoType, "Adapter", "AdaptFromApplication", "resolve type")
	}
	tmpl, err := model.Lookup(typ)
	if err != nil {
		return Request{}, err
	}
	if category == "" {
		category = tmpl.Category
	}

	data := map[string]any{}
	if tmpl.Type == model.Value {
		data["data"] = obj.Name
	} else {
		data["name"] = obj.Name
	}
	deepMerge(data, obj.Fields)
	deepMerge(data, obj.Data)

	data["safety_level"] = wireSafetyLevel(obj.Fields["safety_level"])
	delete(data, "date_created")
	delete(data, "shared_with")

	for rel, parent := range obj.Parents {
		if parent == nil || *parent == "" {
			data[rel] = nil
			continue
		}
		data[rel] = normalizeID(*parent)
	}

	return Request{
		URL:  model.BaseURL(category, tmpl.Type, id),
		Data: data,
	}, nil
}

// wireSafetyLevel converts a symbolic or numeric level to 1, 2 or 3.
// Anything else is private.
func wireSafetyLevel(v any) int {
	if v == nil {
		return model.SafetyPrivate
	}
	n := model.SafetyLevelNumber(v)
	if n < model.SafetyPublic || n > model.SafetyPrivate {
		return model.SafetyPrivate
	}
	return n
}

// deepMerge copies src into dst. Nested maps are merged recursively and
// copied, so dst never shares a map with src.
func deepMerge(dst, src map[string]any) {
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			target, ok := dst[k].(map[string]any)
			if !ok {
				target = make(map[string]any, len(sub))
				dst[k] = target
			}
			deepMerge(target, sub)
			continue
		}
		dst[k] = v
	}
}
