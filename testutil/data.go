package testutil

import (
	"fmt"
	"strings"

	"github.com/G-Node/wdat2-sub001/model"
)

// Host is the scheme and host used in fixture permalinks. Consumers strip
// it, so it never needs to resolve.
const Host = "http://repository.example"

// Path returns the server-relative path of an object, e.g.
// "/electrophysiology/segment/7".
func Path(t model.Type, id int) string {
	category, err := t.Category()
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("/%s/%s/%d", category, t, id)
}

// Permalink returns the absolute URL of an object.
func Permalink(t model.Type, id int) string {
	return Host + Path(t, id)
}

// Element builds one object the way the repository serialises it.
func Element(t model.Type, id int, fields map[string]any) map[string]any {
	if fields == nil {
		fields = map[string]any{}
	}
	return map[string]any{
		"permalink": Permalink(t, id),
		"model":     "neo_api." + strings.ToLower(string(t)),
		"fields":    fields,
	}
}

// Links returns the permalinks of ids of type t as a JSON-like list.
func Links(t model.Type, ids ...int) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = Permalink(t, id)
	}
	return out
}

// Segment is a segment fixture with analog signals and events as children.
func Segment(id int, name string, signals, events []int) map[string]any {
	return Element(model.Segment, id, map[string]any{
		"name":                  name,
		"index":                 id,
		"safety_level":          1,
		"owner":                 Host + "/user/1",
		"date_created":          "2013-02-14 10:00:00",
		"block":                 Permalink(model.Block, 1),
		"analogsignal_set":      Links(model.AnalogSignal, signals...),
		"event_set":             Links(model.Event, events...),
		"epoch_set":             []any{},
		"spike_set":             []any{},
		"spiketrain_set":        []any{},
		"irsaanalogsignal_set":  []any{},
		"eventarray_set":        []any{},
		"epocharray_set":        []any{},
		"analogsignalarray_set": []any{},
	})
}

// AnalogSignal is a plotable signal fixture attached to a segment.
func AnalogSignal(id int, name string, segment int) map[string]any {
	return Element(model.AnalogSignal, id, map[string]any{
		"name":             name,
		"safety_level":     3,
		"segment":          Permalink(model.Segment, segment),
		"recordingchannel": nil,
		"sampling_rate":    map[string]any{"data": 1000.0, "units": "Hz"},
		"t_start":          map[string]any{"data": 0.0, "units": "ms"},
		"signal":           map[string]any{"data": DataLink(id), "units": "mV"},
	})
}

// DataLink is the data file URL served for a signal fixture.
func DataLink(id int) string {
	return fmt.Sprintf("%s/datafiles/%d", Host, id)
}

// Section is a metadata section fixture.
func Section(id int, name string, parent *int) map[string]any {
	var parentLink any
	if parent != nil {
		parentLink = Permalink(model.Section, *parent)
	}
	return Element(model.Section, id, map[string]any{
		"name":           name,
		"odml_type":      0,
		"tree_position":  0,
		"safety_level":   2,
		"parent_section": parentLink,
		"section_set":    []any{},
		"property_set":   []any{},
		"block_set":      []any{},
	})
}

// User is an account fixture as served by the /user/ listing.
func User(id int, username string) map[string]any {
	return map[string]any{
		"permalink": fmt.Sprintf("%s/user/%d/", Host, id),
		"fields":    map[string]any{"username": username},
	}
}
