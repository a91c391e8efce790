package network

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/G-Node/wdat2-sub001/errors"
	"github.com/G-Node/wdat2-sub001/model"
)

// Search operators accepted in the [value, op] form of a specifier term.
const (
	OpEqual    = "="
	OpNotEqual = "!="
	OpLess     = "<"
	OpGreater  = ">"
	OpContains = ":"
)

// Specifier is a search over one type. Keys map to a literal or to a
// [value, operator] pair:
//
//	Specifier{"type": "segment", "name": []any{"trial", ":"}, "depth": 1}
//
// type and category select the collection, id or permalink select a single
// object, depth sets child expansion. Every other key becomes a filter.
type Specifier map[string]any

var reservedKeys = map[string]bool{
	"type": true, "category": true, "id": true, "permalink": true, "depth": true,
}

// Depth returns the requested expansion depth, 0 when unset.
func (s Specifier) Depth() int {
	switch d := s["depth"].(type) {
	case int:
		return max(d, 0)
	case int64:
		return max(int(d), 0)
	case float64:
		return max(int(d), 0)
	case string:
		n, _ := strconv.Atoi(d)
		return max(n, 0)
	}
	return 0
}

// URL translates the specifier into a server-relative request URL.
func (s Specifier) URL() (string, error) {
	category := model.Category(stringOf(s["category"]))
	typ := model.Type(strings.ToLower(stringOf(s["type"])))

	id := stringOf(s["permalink"])
	if id == "" {
		id = stringOf(s["id"])
	}

	if id != "" {
		ident, err := model.ParseID(id)
		if err != nil {
			return "", invalidSpecifier("id", err)
		}
		if ident.Category != "" {
			category = ident.Category
		}
		if ident.Type != "" {
			typ = ident.Type
		}
		tmpl, err := resolveType(typ)
		if err != nil {
			return "", err
		}
		if category == "" {
			category = tmpl.Category
		}
		return model.BaseURL(category, tmpl.Type, ident.ID) + "q=full", nil
	}

	tmpl, err := resolveType(typ)
	if err != nil {
		return "", err
	}
	if category == "" {
		category = tmpl.Category
	}

	keys := make([]string, 0, len(s))
	for k := range s {
		if !reservedKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(model.BaseURL(category, tmpl.Type, ""))
	b.WriteString("q=full&")
	for _, k := range keys {
		value, op, err := splitTerm(k, s[k])
		if err != nil {
			return "", err
		}
		t, err := term(tmpl, k, value, op)
		if err != nil {
			return "", err
		}
		b.WriteString(t)
	}
	return b.String(), nil
}

// Get translates every specifier and fetches them as one batch, expanding
// children to the largest depth requested by any of them.
func (e *Executor) Get(ctx context.Context, specs ...Specifier) (Result, error) {
	urls := make([]string, 0, len(specs))
	depth := 0
	for _, spec := range specs {
		u, err := spec.URL()
		if err != nil {
			return Result{}, err
		}
		urls = append(urls, u)
		depth = max(depth, spec.Depth())
	}
	return e.DoGET(ctx, urls, depth), nil
}

func resolveType(t model.Type) (*model.Template, error) {
	if t == "" {
		return nil, errors.WrapInvalid(errors.ErrNoType, "Specifier", "URL", "resolve type")
	}
	return model.Lookup(t)
}

// splitTerm separates a literal or [value, op] pair.
func splitTerm(key string, raw any) (any, string, error) {
	list, ok := raw.([]any)
	if !ok {
		if strs, isStrings := raw.([]string); isStrings {
			list = make([]any, len(strs))
			for i, s := range strs {
				list[i] = s
			}
			ok = true
		}
	}
	if !ok {
		return raw, OpEqual, nil
	}

	switch len(list) {
	case 0:
		return "", OpEqual, nil
	case 1:
		return list[0], OpEqual, nil
	default:
		op, isString := list[1].(string)
		if !isString {
			return nil, "", invalidSpecifier(key, fmt.Errorf("operator %v", list[1]))
		}
		switch op {
		case OpEqual, OpNotEqual, OpLess, OpGreater, OpContains:
			return list[0], op, nil
		}
		return nil, "", invalidSpecifier(key, fmt.Errorf("operator %q", op))
	}
}

// term renders one filter as "key__lookup=value&".
func term(tmpl *model.Template, key string, value any, op string) (string, error) {
	var out string
	empty := isEmpty(value)

	switch key {
	case "parent":
		if empty {
			for _, rel := range tmpl.Parents {
				out += url.QueryEscape(rel.Name) + "__isnull=1&"
			}
			break
		}
		ident, err := model.ParseID(stringOf(value))
		if err != nil || ident.Type == "" {
			return "", invalidSpecifier(key, fmt.Errorf("parent %v", value))
		}
		rel, ok := tmpl.ParentTo(ident.Type)
		if !ok {
			return "", invalidSpecifier(key, fmt.Errorf("%s has no parent of type %s", tmpl.Type, ident.Type))
		}
		out = url.QueryEscape(rel.Name) + "=" + ident.ID + "&"

	case "safety_level":
		level := model.SafetyLevelNumber(value)
		if level <= 0 {
			level = model.SafetyPrivate
		}
		out = key + "__exact=" + strconv.Itoa(level) + "&"

	case "owner":
		if empty {
			out = key + "__isnull=1&"
			break
		}
		out = key + "__exact=" + url.QueryEscape(lastSegment(stringOf(value))) + "&"

	default:
		k := url.QueryEscape(key)
		if empty {
			out = k + "__isnull=1&"
			break
		}
		out = k + lookup(tmpl, key, op) + url.QueryEscape(stringOf(value)) + "&"
	}

	if op == OpNotEqual {
		out = "n__" + out
	}
	return out, nil
}

func lookup(tmpl *model.Template, key, op string) string {
	switch op {
	case OpGreater:
		return "__gt="
	case OpLess:
		return "__le="
	case OpContains:
		return "__icontains="
	}
	f, ok := tmpl.Field(key)
	if !ok {
		f, ok = tmpl.DataField(key)
	}
	if ok && f.Kind.Numeric() {
		return "__exact="
	}
	return "__icontains="
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func stringOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}

func lastSegment(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '/' })
	if len(parts) == 0 {
		return s
	}
	return parts[len(parts)-1]
}

func invalidSpecifier(key string, err error) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %s: %v", errors.ErrInvalidSpecifier, key, err),
		"Specifier", "URL", "translate specifier")
}
