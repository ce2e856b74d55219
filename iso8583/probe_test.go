package iso8583

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaProbe_IsBinary(t *testing.T) {
	probe := NewSchemaProbe(DefaultPackager())

	tests := []struct {
		path string
		want bool
	}{
		{"0", false},
		{"11", false},
		{"39", false},
		{"43", false},
		{"43.1", false},
		{"43.3", true},
		{"52", true},
		{"55", true},
		{"55.1", false},
		{"60", true},
		{"60.1", false},
		{"64", true},
		{"192", true},
		{"1", false},
		{"x", false},
		{"43.9", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, probe.IsBinary(tt.path))
		})
	}
}

func TestSchemaProbe_FieldSchema(t *testing.T) {
	schema := FieldSchema{
		127: {Type: FieldTypeANS, Composite: CompositeFixed, Subfields: map[int]FieldConfig{
			2: {Type: FieldTypeANS, Composite: CompositeFixed, Subfields: map[int]FieldConfig{
				7: {Type: FieldTypeB, Length: LengthFixed, MaxLength: 4},
			}},
		}},
	}
	probe := NewSchemaProbe(schema)

	assert.True(t, probe.IsBinary("127.2.7"))
	assert.False(t, probe.IsBinary("127.2"))
	assert.False(t, probe.IsBinary("127.3"))

	config, ok := probe.Config("127.2.7")
	assert.True(t, ok)
	assert.Equal(t, 4, config.MaxLength)
}

func TestSchemaProbe_MaxField(t *testing.T) {
	msg := newTestMessage(t)
	probe := NewSchemaProbe(msg.Packager())
	assert.Equal(t, 0, probe.MaxField(msg))

	_ = msg.SetString("70", "301")
	assert.Equal(t, 70, probe.MaxField(msg))
}

func TestCompiledPackager_FieldByteLength(t *testing.T) {
	p := DefaultPackager()

	n, ok := p.FieldByteLength(64)
	assert.True(t, ok)
	assert.Equal(t, 8, n)

	_, ok = p.FieldByteLength(65)
	assert.False(t, ok)
}

func TestLoadPackagerFromJSON(t *testing.T) {
	p, err := LoadPackagerFromJSON([]byte(`{
		"fields": {
			"11": {"type": "N", "length": "FIXED", "max_length": 6},
			"55": {"type": "B", "length": "LLLVAR", "max_length": 255, "composite": "TLV", "tlv": "EMV"}
		},
		"bitmap_encoding": 1
	}`))
	assert.NoError(t, err)

	config, ok := p.GetFieldConfig(55)
	assert.True(t, ok)
	assert.Equal(t, CompositeTLV, config.Composite)
	assert.Equal(t, TLVEMV, config.TLV)
	assert.Equal(t, LengthLLLVAR, config.Length)
	assert.Equal(t, BitmapEncodingHex, p.BitmapEncoding())

	_, err = LoadPackagerFromJSON([]byte(`{"fields": {}}`))
	assert.ErrorIs(t, err, ErrFieldNotConfigured)

	_, err = LoadPackagerFromJSON([]byte(`{`))
	assert.Error(t, err)
}
