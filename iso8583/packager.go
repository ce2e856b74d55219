package iso8583

import (
	"encoding/json"
	"fmt"
	"os"
)

// CompiledPackager holds the complete specification (schema) for an ISO8583 message.
// It contains all field configurations, bitmap encoding, length/header settings,
// and a pre-compiled validator. It is immutable and safe for concurrent use.
type CompiledPackager struct {
	fieldConfigs    map[int]FieldConfig   // Configuration for each field (DE 2, DE 3, etc.)
	bitmapEncoding  BitmapEncoding        // Binary or Hex
	lengthIndicator LengthIndicatorConfig // Config for the 2/4 byte message length prefix
	headerConfig    HeaderConfig          // Config for any message header (e.g., TPDU)
	validator       *CompiledValidator    // Pre-compiled validator based on field configs
}

// NewCompiledPackager creates a new CompiledPackager from a PackagerConfig.
// It also compiles the validation rules from the config.
func NewCompiledPackager(config *PackagerConfig) *CompiledPackager {
	fields := make(map[int]FieldConfig, len(config.Fields))
	for num, fc := range config.Fields {
		fields[num] = fc
	}

	cp := &CompiledPackager{
		fieldConfigs:    fields,
		bitmapEncoding:  config.BitmapEncoding,
		lengthIndicator: config.LengthIndicator,
		headerConfig:    config.Header,
	}
	cp.validator = compileValidator(config)
	return cp
}

// DefaultPackager returns a packager built from DefaultPackagerConfig.
func DefaultPackager() *CompiledPackager {
	return NewCompiledPackager(DefaultPackagerConfig())
}

// GetFieldConfig retrieves the configuration for a specific field number.
func (cp *CompiledPackager) GetFieldConfig(fieldNum int) (FieldConfig, bool) {
	config, exists := cp.fieldConfigs[fieldNum]
	return config, exists
}

// FieldConfigAt resolves the schema node for a list of path segments.
func (cp *CompiledPackager) FieldConfigAt(segs []int) (FieldConfig, bool) {
	return FieldSchema(cp.fieldConfigs).FieldConfigAt(segs)
}

// FieldByteLength returns the configured length of a field in bytes: the
// fixed width for fixed fields or the maximum for variable ones.
func (cp *CompiledPackager) FieldByteLength(fieldNum int) (int, bool) {
	config, ok := cp.fieldConfigs[fieldNum]
	if !ok {
		return 0, false
	}
	return config.MaxLength, true
}

// BitmapEncoding returns the bitmap encoding used by the packager.
func (cp *CompiledPackager) BitmapEncoding() BitmapEncoding {
	return cp.bitmapEncoding
}

// LengthIndicator returns the message framing configuration.
func (cp *CompiledPackager) LengthIndicator() LengthIndicatorConfig {
	return cp.lengthIndicator
}

// HeaderConfig returns the message header configuration.
func (cp *CompiledPackager) HeaderConfig() HeaderConfig {
	return cp.headerConfig
}

// GetValidator returns the pre-compiled validator for this packager.
func (cp *CompiledPackager) GetValidator() *CompiledValidator {
	return cp.validator
}

// Fields returns the packager's field table as a Schema.
func (cp *CompiledPackager) Fields() FieldSchema {
	return FieldSchema(cp.fieldConfigs)
}

// LoadPackagerFromJSON unmarshals a JSON byte slice into a PackagerConfig
// and returns a new CompiledPackager.
func LoadPackagerFromJSON(data []byte) (*CompiledPackager, error) {
	var config PackagerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse packager config: %w", err)
	}
	if len(config.Fields) == 0 {
		return nil, fmt.Errorf("failed to parse packager config: %w: no fields", ErrFieldNotConfigured)
	}
	return NewCompiledPackager(&config), nil
}

// LoadPackagerFromFile reads a JSON packager definition from path.
func LoadPackagerFromFile(path string) (*CompiledPackager, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read packager %s: %w", path, err)
	}
	return LoadPackagerFromJSON(data)
}

// DefaultPackagerConfig returns the packager configuration for the
// built-in field table with hex bitmaps and no framing or header.
func DefaultPackagerConfig() *PackagerConfig {
	return &PackagerConfig{
		Fields:         DefaultConfigField,
		BitmapEncoding: BitmapEncodingHex,
		LengthIndicator: LengthIndicatorConfig{
			Type:   LengthIndicatorNone,
			Length: 0,
		},
		Header: HeaderConfig{
			Type:   HeaderNone,
			Length: 0,
		},
	}
}

// NewPackagerConfig creates a new PackagerConfig using the options pattern.
func NewPackagerConfig(opts ...PackagerOption) *PackagerConfig {
	config := DefaultPackagerConfig()
	fields := make(map[int]FieldConfig, len(config.Fields))
	for num, fc := range config.Fields {
		fields[num] = fc
	}
	config.Fields = fields
	for _, opt := range opts {
		opt(config)
	}
	return config
}
