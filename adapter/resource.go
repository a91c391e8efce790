package adapter

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/G-Node/wdat2-sub001/model"
	"github.com/G-Node/wdat2-sub001/network"
)

// Adapted is a translated result. A failed batch carries only Error and
// Message.
type Adapted struct {
	Primary   []model.Object          `json:"primary"`
	Secondary map[string]model.Object `json:"secondary"`
	Error     bool                    `json:"error,omitempty"`
	Message   string                  `json:"message,omitempty"`
}

// AdaptFromResource translates every element of res. Primary objects are
// sorted with named objects first, by name, then unnamed ones by id.
// Secondary objects are keyed by id. The first failed response, primary
// before secondary, or the first untranslatable element aborts the whole
// batch.
func AdaptFromResource(res network.Result) Adapted {
	if resp, ok := res.FirstError(); ok {
		return failed(&responseError{message: resp.Message})
	}

	out := Adapted{
		Primary:   []model.Object{},
		Secondary: map[string]model.Object{},
	}

	for _, resp := range res.Primary {
		objs, err := adaptResponse(resp)
		if err != nil {
			return failed(err)
		}
		out.Primary = append(out.Primary, objs...)
	}
	for _, resp := range res.Secondary {
		objs, err := adaptResponse(resp)
		if err != nil {
			return failed(err)
		}
		for _, obj := range objs {
			out.Secondary[obj.ID] = obj
		}
	}

	sort.SliceStable(out.Primary, func(i, j int) bool {
		return less(out.Primary[i], out.Primary[j])
	})
	return out
}

// responseError is a server-reported failure carried through adaptation.
type responseError struct {
	message string
}

func (e *responseError) Error() string { return e.message }

func adaptResponse(resp network.Response) ([]model.Object, error) {
	if resp.Error {
		return nil, &responseError{message: resp.Message}
	}
	if resp.Data == nil {
		return nil, nil
	}
	objs := make([]model.Object, 0, len(resp.Data.Selected))
	for _, el := range resp.Data.Selected {
		obj, err := AdaptElement(el)
		if err != nil {
			return nil, err
		}
		objs = append(objs, obj)
	}
	return objs, nil
}

func failed(err error) Adapted {
	return Adapted{
		Primary:   []model.Object{},
		Secondary: map[string]model.Object{},
		Error:     true,
		Message:   err.Error(),
	}
}

// AdaptElement translates one wire element.
func AdaptElement(el network.Element) (model.Object, error) {
	ident, err := model.ParseID(el.Permalink)
	if err != nil {
		return model.Object{}, err
	}
	typ := ident.Type
	if typ == "" {
		if typ, err = el.Type(); err != nil {
			return model.Object{}, err
		}
	}
	tmpl, err := model.Lookup(typ)
	if err != nil {
		return model.Object{}, err
	}
	category := ident.Category
	if category == "" {
		category = tmpl.Category
	}

	fields := el.Fields
	if fields == nil {
		fields = map[string]any{}
	}

	obj := model.Object{
		ID:         model.Identifier{Category: category, Type: tmpl.Type, ID: ident.ID}.Path(),
		Type:       tmpl.Type,
		Category:   category,
		Plotable:   tmpl.Plotable,
		Owner:      model.OmitHost(text(fields["owner"])),
		SharedWith: fields["shared_with"],
		Fields:     make(map[string]any, len(tmpl.Fields)),
		Children:   make(map[string][]string, len(tmpl.Children)),
		Parents:    make(map[string]*string, len(tmpl.Parents)),
		Data:       map[string]any{},
	}

	for _, f := range tmpl.Fields {
		switch f.Name {
		case "name":
			if tmpl.Type == model.Value {
				obj.Name = text(fields["data"])
			} else {
				obj.Name = text(fields["name"])
			}
		case "safety_level":
			if level, ok := model.SafetyLevelName(fields["safety_level"]); ok {
				obj.Fields[f.Name] = level
			} else {
				obj.Fields[f.Name] = nil
			}
		default:
			obj.Fields[f.Name] = fields[f.Name]
		}
	}

	for _, rel := range tmpl.Children {
		obj.Children[rel.Name] = linkList(fields[rel.Name])
	}

	for _, rel := range tmpl.Parents {
		if link := text(fields[rel.Name]); link != "" {
			id := normalizeID(link)
			obj.Parents[rel.Name] = &id
		} else {
			obj.Parents[rel.Name] = nil
		}
	}

	for _, d := range tmpl.Data {
		if v, ok := fields[d.Name]; ok && v != nil {
			obj.Data[d.Name] = v
		}
	}

	return obj, nil
}

// less orders named objects before unnamed ones.
func less(a, b model.Object) bool {
	switch {
	case a.Name != "" && b.Name != "":
		return a.Name < b.Name
	case a.Name != "":
		return true
	case b.Name != "":
		return false
	default:
		return a.ID < b.ID
	}
}

// normalizeID strips the host and, for well-formed ids, any trailing slash
// or query.
func normalizeID(link string) string {
	path := model.OmitHost(link)
	if ident, err := model.ParseID(path); err == nil && ident.Type != "" {
		return ident.Path()
	}
	return path
}

func linkList(v any) []string {
	out := []string{}
	switch list := v.(type) {
	case []any:
		for _, item := range list {
			if s := text(item); s != "" {
				out = append(out, normalizeID(s))
			}
		}
	case []string:
		for _, s := range list {
			if s != "" {
				out = append(out, normalizeID(s))
			}
		}
	}
	return out
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
