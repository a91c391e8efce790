package model

import "strings"

// FieldKind describes how a field value is edited and compared.
type FieldKind string

// Field kinds used by the templates.
const (
	KindText     FieldKind = "text"
	KindLongText FieldKind = "ltext"
	KindInt      FieldKind = "int"
	KindNum      FieldKind = "num"
	KindDate     FieldKind = "date"
	KindOption   FieldKind = "option"
	KindDataFile FieldKind = "datafile"
)

// Numeric reports whether values of this kind compare exactly in searches.
func (k FieldKind) Numeric() bool {
	return k == KindInt || k == KindNum
}

// Field declares one field of a type.
type Field struct {
	Name       string
	Kind       FieldKind
	Label      string
	Obligatory bool
	Min        int
	Max        int
	Default    any
	Readonly   bool
	Options    []string
}

// Relation declares a parent or child link and the type at its other end.
type Relation struct {
	Name   string
	Target Type
	Label  string
}

// Template is the schema of one type. Fields include the universal
// safety_level and date_created fields.
type Template struct {
	Type     Type
	Category Category
	Plotable bool
	Fields   []Field
	Children []Relation
	Parents  []Relation
	Data     []Field
}

// Lookup returns the template for t. The lookup is case-insensitive and the
// returned template must not be modified.
func Lookup(t Type) (*Template, error) {
	tmpl, ok := registry[Type(strings.ToLower(string(t)))]
	if !ok {
		return nil, unknownType(string(t))
	}
	return tmpl, nil
}

// Field returns the declared field called name.
func (t *Template) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// DataField returns the declared data field called name.
func (t *Template) DataField(name string) (Field, bool) {
	for _, f := range t.Data {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ParentTo returns the first parent relation whose target is parent.
func (t *Template) ParentTo(parent Type) (Relation, bool) {
	for _, r := range t.Parents {
		if r.Target == parent {
			return r, true
		}
	}
	return Relation{}, false
}

// FieldNames returns the declared field names in order.
func (t *Template) FieldNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

var universalFields = []Field{
	{Name: "safety_level", Kind: KindOption, Options: []string{"public", "friendly", "private"}},
	{Name: "date_created", Kind: KindText, Readonly: true},
}

var registry = buildRegistry()

func buildRegistry() map[Type]*Template {
	defs := definitions()
	reg := make(map[Type]*Template, len(defs))
	for _, def := range defs {
		tmpl := def
		fields := make([]Field, 0, len(tmpl.Fields)+len(universalFields))
		fields = append(fields, tmpl.Fields...)
		fields = append(fields, universalFields...)
		tmpl.Fields = fields
		reg[tmpl.Type] = &tmpl
	}
	return reg
}

func name(minLen int) Field {
	return Field{Name: "name", Kind: KindText, Obligatory: true, Min: minLen, Max: 100}
}

func text(n string) Field     { return Field{Name: n, Kind: KindText} }
func ltext(n string) Field    { return Field{Name: n, Kind: KindLongText} }
func date(n string) Field     { return Field{Name: n, Kind: KindDate} }
func num(n string) Field      { return Field{Name: n, Kind: KindNum} }
func datafile(n string) Field { return Field{Name: n, Kind: KindDataFile} }

func index(obligatory bool) Field {
	return Field{Name: "index", Kind: KindInt, Obligatory: obligatory, Min: 0, Default: 0}
}

func rel(n string, target Type) Relation { return Relation{Name: n, Target: target} }

func described() []Field {
	return []Field{name(3), ltext("description"), text("file_origin")}
}

func definitions() []Template {
	meta := func(t Template) Template { t.Category = CategoryMetadata; return t }
	ephys := func(t Template) Template { t.Category = CategoryElectrophysiology; return t }
	plot := func(t Template) Template {
		t.Category = CategoryElectrophysiology
		t.Plotable = true
		return t
	}

	return []Template{
		meta(Template{
			Type: Section,
			Fields: []Field{
				name(3),
				ltext("description"),
				{Name: "odml_type", Kind: KindInt, Label: "Type", Obligatory: true, Default: 0},
				{Name: "tree_position", Kind: KindInt, Label: "Position", Obligatory: true, Default: 0},
			},
			Children: []Relation{
				{Name: "property_set", Target: Property, Label: "Properties"},
				{Name: "block_set", Target: Block, Label: "Blocks"},
				{Name: "section_set", Target: Section, Label: "Sections"},
			},
			Parents: []Relation{{Name: "parent_section", Target: Section, Label: "Section"}},
		}),
		meta(Template{
			Type: Property,
			Fields: []Field{
				name(3),
				{Name: "unit", Kind: KindText, Max: 10},
				text("uncertainty"),
				{Name: "dtype", Kind: KindText, Label: "Data Type"},
				ltext("definition"),
			},
			Children: []Relation{{Name: "value_set", Target: Value, Label: "Values"}},
			Parents:  []Relation{rel("section", Section)},
		}),
		meta(Template{
			Type:    Value,
			Fields:  []Field{name(1)},
			Parents: []Relation{rel("parent_property", Property)},
		}),

		ephys(Template{
			Type: Block,
			Fields: []Field{
				name(3), index(true), ltext("description"), text("file_origin"),
				date("filedatetime"), date("recdatetime"),
			},
			Children: []Relation{
				rel("segment_set", Segment),
				rel("recordingchannelgroup_set", RecordingChannelGroup),
			},
			Parents: []Relation{rel("section", Section)},
		}),
		ephys(Template{
			Type: Segment,
			Fields: []Field{
				name(3), index(true), text("file_origin"),
				date("filedatetime"), date("recdatetime"),
			},
			Children: []Relation{
				rel("analogsignal_set", AnalogSignal),
				rel("irsaanalogsignal_set", IRSAAnalogSignal),
				rel("analogsignalarray_set", AnalogSignalArray),
				rel("spiketrain_set", SpikeTrain),
				rel("spike_set", Spike),
				rel("event_set", Event),
				rel("eventarray_set", EventArray),
				rel("epoch_set", Epoch),
				rel("epocharray_set", EpochArray),
			},
			Parents: []Relation{rel("block", Block)},
		}),
		ephys(Template{
			Type:   Unit,
			Fields: described(),
			Children: []Relation{
				rel("spiketrain_set", SpikeTrain),
				rel("spike_set", Spike),
				rel("recordingchannel", RecordingChannel),
			},
		}),
		ephys(Template{
			Type:   RecordingChannel,
			Fields: append(described(), text("coordinate"), index(false)),
			Children: []Relation{
				rel("unit_set", Unit),
				rel("analogsignal_set", AnalogSignal),
				rel("irsaanalogsignal_set", IRSAAnalogSignal),
			},
			Parents: []Relation{rel("recordingchannelgroup", RecordingChannelGroup)},
		}),
		ephys(Template{
			Type:   RecordingChannelGroup,
			Fields: append(described(), text("channel_names"), text("channel_indexes")),
			Children: []Relation{
				rel("recordingchannel_set", RecordingChannel),
				rel("analogsignalarray_set", AnalogSignalArray),
			},
			Parents: []Relation{rel("block", Block)},
		}),

		plot(Template{
			Type:    Spike,
			Fields:  described(),
			Data:    []Field{num("time"), datafile("waveform"), num("sampling_rate"), num("left_sweep")},
			Parents: []Relation{rel("segment", Segment), rel("unit", Unit)},
		}),
		plot(Template{
			Type:   SpikeTrain,
			Fields: described(),
			Data: []Field{
				num("times"), datafile("waveforms"), num("sampling_rate"),
				num("t_start"), num("t_stop"), num("left_sweep"),
			},
			Parents: []Relation{rel("segment", Segment), rel("unit", Unit)},
		}),
		plot(Template{
			Type:    Event,
			Fields:  append(described(), text("label")),
			Data:    []Field{num("time")},
			Parents: []Relation{rel("segment", Segment)},
		}),
		plot(Template{
			Type:    Epoch,
			Fields:  append(described(), text("label")),
			Data:    []Field{num("duration"), num("time")},
			Parents: []Relation{rel("segment", Segment)},
		}),
		plot(Template{
			Type:    AnalogSignal,
			Fields:  described(),
			Data:    []Field{datafile("signal"), num("sampling_rate"), num("t_start")},
			Parents: []Relation{rel("segment", Segment), rel("recordingchannel", RecordingChannel)},
		}),
		plot(Template{
			Type:    IRSAAnalogSignal,
			Fields:  described(),
			Data:    []Field{num("times"), datafile("samples")},
			Parents: []Relation{rel("segment", Segment)},
		}),
		plot(Template{
			Type:    EventArray,
			Fields:  []Field{name(3), text("labels"), ltext("description"), text("file_origin")},
			Data:    []Field{num("times")},
			Parents: []Relation{rel("segment", Segment)},
		}),
		plot(Template{
			Type:    EpochArray,
			Fields:  []Field{name(3), text("labels"), ltext("description"), text("file_origin")},
			Data:    []Field{datafile("times"), datafile("durations")},
			Parents: []Relation{rel("segment", Segment)},
		}),
		plot(Template{
			Type:    AnalogSignalArray,
			Fields:  described(),
			Data:    []Field{datafile("analogsignal_set"), num("sampling_rate"), num("t_start")},
			Parents: []Relation{rel("segment", Segment)},
		}),
	}
}
