package model

// Object is the application-side representation of a repository object.
//
// Name is carried at top level. Fields holds the remaining declared fields
// of the type's template, so the keys of Fields plus "name" are exactly the
// template's field names. Children and Parents hold host-stripped resource
// ids; a nil parent means the relation is unset.
type Object struct {
	ID         string              `json:"id,omitempty"`
	Type       Type                `json:"type"`
	Category   Category            `json:"category,omitempty"`
	Name       string              `json:"name"`
	Owner      string              `json:"owner,omitempty"`
	Plotable   bool                `json:"plotable"`
	SharedWith any                 `json:"shared_with,omitempty"`
	Fields     map[string]any      `json:"fields"`
	Children   map[string][]string `json:"children"`
	Parents    map[string]*string  `json:"parents"`
	Data       map[string]any      `json:"data,omitempty"`
}

// New returns an object of type t with template defaults: fields carry
// their default value or nil, parents are unset and children empty.
func New(t Type) (*Object, error) {
	tmpl, err := Lookup(t)
	if err != nil {
		return nil, err
	}

	obj := &Object{
		Type:     tmpl.Type,
		Category: tmpl.Category,
		Plotable: tmpl.Plotable,
		Fields:   make(map[string]any, len(tmpl.Fields)),
		Children: make(map[string][]string, len(tmpl.Children)),
		Parents:  make(map[string]*string, len(tmpl.Parents)),
	}

	for _, f := range tmpl.Fields {
		if f.Name == "name" {
			if s, ok := f.Default.(string); ok {
				obj.Name = s
			}
			continue
		}
		obj.Fields[f.Name] = f.Default
	}
	for _, r := range tmpl.Parents {
		obj.Parents[r.Name] = nil
	}
	for _, r := range tmpl.Children {
		obj.Children[r.Name] = []string{}
	}
	return obj, nil
}
