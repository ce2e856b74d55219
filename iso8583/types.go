package iso8583

import (
	"encoding/json"
	"strings"
)

type FieldType int

const (
	FieldTypeANS FieldType = iota
	FieldTypeAN
	FieldTypeN
	FieldTypeB
	FieldTypeZ
	FieldTypeCustom
)

func (t FieldType) String() string {
	switch t {
	case FieldTypeANS:
		return "ANS"
	case FieldTypeAN:
		return "AN"
	case FieldTypeN:
		return "N"
	case FieldTypeB:
		return "B"
	case FieldTypeZ:
		return "Z"
	default:
		return "CUSTOM"
	}
}

type BitmapEncoding int

const (
	BitmapEncodingBinary BitmapEncoding = iota
	BitmapEncodingHex
)

type LengthType int

const (
	LengthFixed LengthType = iota
	LengthLLVAR
	LengthLLLVAR
	LengthLLLLVAR
)

// prefixDigits returns the number of ASCII digits in the length prefix.
func (l LengthType) prefixDigits() int {
	switch l {
	case LengthLLVAR:
		return 2
	case LengthLLLVAR:
		return 3
	case LengthLLLLVAR:
		return 4
	default:
		return 0
	}
}

type LengthIndicatorType int

const (
	LengthIndicatorNone LengthIndicatorType = iota
	LengthIndicatorBinary
	LengthIndicatorASCII
	LengthIndicatorHex
)

type HeaderType int

const (
	HeaderNone HeaderType = iota
	HeaderBinary
	HeaderASCII
	HeaderHex
	HeaderCustom
)

type TLVType int

const (
	TLVStandard TLVType = iota
	TLVEMV
	TLVASCII
)

// CompositeType describes how a field is assembled from subfields.
type CompositeType int

const (
	// CompositeNone is a plain field.
	CompositeNone CompositeType = iota
	// CompositeFixed concatenates positional subfields, each padded to its
	// configured length.
	CompositeFixed
	// CompositeTLV encodes tagged subfields as tag-length-value records.
	CompositeTLV
	// CompositeOpaque packs subfields internally and does not expose their layout.
	CompositeOpaque
)

type ValidationLevel int

const (
	ValidationNone ValidationLevel = iota
	ValidationBasic
	ValidationStrict
	ValidationCustom
)

type TLV struct {
	Tag    []byte
	Length int
	Value  []byte
}

// FieldConfig is the schema node for a field or subfield. Composite fields
// carry the layout of their children in Subfields.
type FieldConfig struct {
	Type      FieldType  `json:"type"`
	Length    LengthType `json:"length"`
	MaxLength int        `json:"max_length"`
	MinLength int        `json:"min_length"`
	Mandatory bool       `json:"mandatory"`
	Format    string     `json:"format,omitempty"`

	Composite    CompositeType       `json:"composite,omitempty"`
	TLV          TLVType             `json:"tlv,omitempty"`
	TagLength    int                 `json:"tag_length,omitempty"`
	LengthDigits int                 `json:"length_digits,omitempty"`
	Subfields    map[int]FieldConfig `json:"subfields,omitempty"`
}

func (fc *FieldConfig) UnmarshalJSON(data []byte) error {
	type Alias FieldConfig
	aux := &struct {
		Type      interface{} `json:"type"`
		Length    interface{} `json:"length"`
		Composite interface{} `json:"composite"`
		TLV       interface{} `json:"tlv"`
		*Alias
	}{
		Alias: (*Alias)(fc),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	switch v := aux.Type.(type) {
	case float64:
		fc.Type = FieldType(v)
	case string:
		fc.Type = parseFieldTypeString(v)
	}

	switch v := aux.Length.(type) {
	case float64:
		fc.Length = LengthType(v)
	case string:
		fc.Length = parseLengthTypeString(v)
	}

	switch v := aux.Composite.(type) {
	case float64:
		fc.Composite = CompositeType(v)
	case string:
		fc.Composite = parseCompositeString(v)
	}

	switch v := aux.TLV.(type) {
	case float64:
		fc.TLV = TLVType(v)
	case string:
		fc.TLV = parseTLVTypeString(v)
	}

	return nil
}

func parseFieldTypeString(s string) FieldType {
	switch strings.ToUpper(s) {
	case "ANS":
		return FieldTypeANS
	case "AN":
		return FieldTypeAN
	case "N":
		return FieldTypeN
	case "B":
		return FieldTypeB
	case "Z":
		return FieldTypeZ
	default:
		return FieldTypeCustom
	}
}

func parseLengthTypeString(s string) LengthType {
	switch strings.ToUpper(s) {
	case "LLVAR":
		return LengthLLVAR
	case "LLLVAR":
		return LengthLLLVAR
	case "LLLLVAR":
		return LengthLLLLVAR
	default:
		return LengthFixed
	}
}

func parseCompositeString(s string) CompositeType {
	switch strings.ToUpper(s) {
	case "FIXED":
		return CompositeFixed
	case "TLV":
		return CompositeTLV
	case "OPAQUE":
		return CompositeOpaque
	default:
		return CompositeNone
	}
}

func parseTLVTypeString(s string) TLVType {
	switch strings.ToUpper(s) {
	case "EMV":
		return TLVEMV
	case "ASCII":
		return TLVASCII
	default:
		return TLVStandard
	}
}

type LengthIndicatorConfig struct {
	Type   LengthIndicatorType `json:"type"`
	Length int                 `json:"length"`
}

type HeaderConfig struct {
	Type   HeaderType `json:"type"`
	Length int        `json:"length"`
	Format string     `json:"format,omitempty"`
}

type PackagerConfig struct {
	Fields          map[int]FieldConfig   `json:"fields"`
	BitmapEncoding  BitmapEncoding        `json:"bitmap_encoding"`
	LengthIndicator LengthIndicatorConfig `json:"length_indicator"`
	Header          HeaderConfig          `json:"header"`
}

const (
	DefaultBufferSize = 8192
	MaxFieldNumber    = 192
	BitmapSize        = 8
)
