package network

import (
	"encoding/json"
	"strings"

	"github.com/G-Node/wdat2-sub001/model"
)

// PlaceholderETag is sent as If-None-Match when no validator is cached. It
// never matches a real ETag, so the server always answers in full.
const PlaceholderETag = "ed2876adff987613414abcged091875621823760"

// DefaultMessage is the message of a response nobody described.
const DefaultMessage = "no message"

// Element is one object as served by the repository API.
type Element struct {
	Permalink string         `json:"permalink"`
	Model     string         `json:"model,omitempty"`
	Fields    map[string]any `json:"fields"`
}

// Type resolves the element type from its model name ("neo_api.segment")
// or, failing that, from its permalink.
func (e Element) Type() (model.Type, error) {
	if e.Model != "" {
		name := e.Model
		if i := strings.LastIndexByte(name, '.'); i >= 0 {
			name = name[i+1:]
		}
		if t, err := model.ParseType(name); err == nil {
			return t, nil
		}
	}
	ident, err := model.ParseID(e.Permalink)
	if err != nil {
		return "", err
	}
	return model.ParseType(string(ident.Type))
}

// Body is a parsed JSON response of the repository API. Error bodies carry
// Message and Details. LoggedInAs is left raw since the server sends either
// a user element or a bare user name.
type Body struct {
	Selected      []Element       `json:"selected,omitempty"`
	SelectedRange []int           `json:"selected_range,omitempty"`
	LoggedInAs    json.RawMessage `json:"logged_in_as,omitempty"`
	Message       string          `json:"message,omitempty"`
	Details       string          `json:"details,omitempty"`
}

// Response is the outcome of one request. Failures never surface as Go
// errors; they set Error and Message here.
type Response struct {
	URL     string          `json:"url"`
	Error   bool            `json:"error"`
	Data    *Body           `json:"data"`
	Raw     json.RawMessage `json:"raw,omitempty"`
	Message string          `json:"message"`
	Status  int             `json:"status"`
}

// Result is the outcome of a GET batch: the requested URLs in request order
// and, for depth > 0, the children fetched on their behalf.
type Result struct {
	Primary   []Response `json:"primary"`
	Secondary []Response `json:"secondary"`
}

// FirstError returns the first failed response, primary before secondary.
func (r Result) FirstError() (Response, bool) {
	for _, list := range [][]Response{r.Primary, r.Secondary} {
		for _, resp := range list {
			if resp.Error {
				return resp, true
			}
		}
	}
	return Response{}, false
}

// DataRange selects a slice of a data file.
type DataRange struct {
	Start     *float64 `json:"start,omitempty"`
	End       *float64 `json:"end,omitempty"`
	MaxPoints int      `json:"max_points,omitempty"`
}
