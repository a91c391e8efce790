package model

import (
	"fmt"
	"strings"

	"github.com/G-Node/wdat2-sub001/errors"
)

// Category groups types by the part of the repository API that serves them.
type Category string

// Known categories.
const (
	CategoryMetadata          Category = "metadata"
	CategoryElectrophysiology Category = "electrophysiology"
)

// Type names a kind of repository object.
type Type string

// Metadata types.
const (
	Section  Type = "section"
	Property Type = "property"
	Value    Type = "value"
)

// Electrophysiology container types.
const (
	Block                 Type = "block"
	Segment               Type = "segment"
	Unit                  Type = "unit"
	RecordingChannel      Type = "recordingchannel"
	RecordingChannelGroup Type = "recordingchannelgroup"
)

// Electrophysiology types that carry plotable data.
const (
	Spike             Type = "spike"
	SpikeTrain        Type = "spiketrain"
	Event             Type = "event"
	Epoch             Type = "epoch"
	AnalogSignal      Type = "analogsignal"
	IRSAAnalogSignal  Type = "irsaanalogsignal"
	EventArray        Type = "eventarray"
	EpochArray        Type = "epocharray"
	AnalogSignalArray Type = "analogsignalarray"
)

// ParseType resolves a type name case-insensitively.
func ParseType(name string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := registry[t]; !ok {
		return "", unknownType(name)
	}
	return t, nil
}

// Category returns the category of t.
func (t Type) Category() (Category, error) {
	tmpl, err := Lookup(t)
	if err != nil {
		return "", err
	}
	return tmpl.Category, nil
}

// IsPlotable reports whether t carries plotable data. Unknown types are not
// plotable.
func (t Type) IsPlotable() bool {
	tmpl, ok := registry[Type(strings.ToLower(string(t)))]
	return ok && tmpl.Plotable
}

// Known reports whether t is in the registry.
func (t Type) Known() bool {
	_, ok := registry[Type(strings.ToLower(string(t)))]
	return ok
}

// EphysTypes returns all electrophysiology types, containers first.
func EphysTypes() []Type {
	return []Type{
		Block, Segment, Unit, RecordingChannel, RecordingChannelGroup,
		Spike, SpikeTrain, Event, Epoch, AnalogSignal, IRSAAnalogSignal,
		EventArray, EpochArray, AnalogSignalArray,
	}
}

// AllTypes returns every known type, metadata first.
func AllTypes() []Type {
	return append([]Type{Section, Property, Value}, EphysTypes()...)
}

func unknownType(name string) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: %q", errors.ErrUnknownType, strings.ToLower(name)),
		"model", "Lookup", "resolve type")
}
