package iso8583

// Schema resolves the configuration of a field or subfield from its path
// segments.
type Schema interface {
	FieldConfigAt(segs []int) (FieldConfig, bool)
}

// FieldSchema is a field table keyed by top-level field number.
type FieldSchema map[int]FieldConfig

// FieldConfigAt walks the subfield tables along segs.
func (fs FieldSchema) FieldConfigAt(segs []int) (FieldConfig, bool) {
	if len(segs) == 0 {
		return FieldConfig{}, false
	}
	config, ok := fs[segs[0]]
	if !ok {
		return FieldConfig{}, false
	}
	for _, s := range segs[1:] {
		sub, ok := config.Subfields[s]
		if !ok {
			return FieldConfig{}, false
		}
		config = sub
	}
	return config, true
}

// SchemaProbe answers layout questions about field paths without building
// a message.
type SchemaProbe struct {
	schema Schema
}

// NewSchemaProbe returns a probe over schema.
func NewSchemaProbe(schema Schema) *SchemaProbe {
	return &SchemaProbe{schema: schema}
}

// IsBinary reports whether the field or subfield at path is declared as
// binary. Unknown paths, the MTI and subfields without their own schema
// entry (TLV and opaque members) are not binary.
func (p *SchemaProbe) IsBinary(path string) bool {
	segs, err := ParsePath(path)
	if err != nil || segs[0] == 0 {
		return false
	}
	config, ok := p.schema.FieldConfigAt(segs)
	return ok && config.Type == FieldTypeB
}

// Config returns the schema node at path.
func (p *SchemaProbe) Config(path string) (FieldConfig, bool) {
	segs, err := ParsePath(path)
	if err != nil {
		return FieldConfig{}, false
	}
	return p.schema.FieldConfigAt(segs)
}

// MaxField returns the highest present top-level field of m, or 0.
func (p *SchemaProbe) MaxField(m *Message) int {
	return m.MaxField()
}
