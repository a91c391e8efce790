package model

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/G-Node/wdat2-sub001/errors"
)

// Identifier is a parsed resource id of the form [/category]/type/id. Parts
// absent from the input are left empty.
type Identifier struct {
	Category Category
	Type     Type
	ID       string
}

// Num returns the numeric id.
func (i Identifier) Num() int64 {
	n, _ := strconv.ParseInt(i.ID, 10, 64)
	return n
}

// Complete reports whether category, type and id are all present.
func (i Identifier) Complete() bool {
	return i.Category != "" && i.Type != "" && i.ID != ""
}

// OmitHost strips scheme, host and port from an absolute URL. Server-relative
// paths and bare ids are returned unchanged.
func OmitHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	out := u.EscapedPath()
	if out == "" {
		out = "/"
	}
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out
}

// ParseID splits an id or URL into its parts. The host and query are
// ignored, as are leading and trailing slashes. The last part must be
// numeric.
func ParseID(id string) (Identifier, error) {
	path := OmitHost(id)
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}

	var ident Identifier
	switch len(parts) {
	case 1:
		ident.ID = parts[0]
	case 2:
		ident.Type = Type(strings.ToLower(parts[0]))
		ident.ID = parts[1]
	case 3:
		ident.Category = Category(strings.ToLower(parts[0]))
		ident.Type = Type(strings.ToLower(parts[1]))
		ident.ID = parts[2]
	default:
		return Identifier{}, invalidID(id)
	}

	if _, err := strconv.ParseInt(ident.ID, 10, 64); err != nil {
		return Identifier{}, invalidID(id)
	}
	return ident, nil
}

// BaseURL builds "/category/type/id/?" skipping empty parts.
func BaseURL(category Category, t Type, id string) string {
	var b strings.Builder
	b.WriteByte('/')
	for _, part := range []string{string(category), string(t), id} {
		if part != "" {
			b.WriteString(part)
			b.WriteByte('/')
		}
	}
	b.WriteByte('?')
	return b.String()
}

// Path returns the canonical server-relative path of the identifier,
// "/category/type/id".
func (i Identifier) Path() string {
	return strings.TrimSuffix(BaseURL(i.Category, i.Type, i.ID), "/?")
}

func invalidID(id string) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %q", errors.ErrInvalidID, id),
		"model", "ParseID", "parse identifier")
}
