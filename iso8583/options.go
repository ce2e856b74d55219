package iso8583

// MessageOption represents a functional option for message configuration
type MessageOption func(*Message)

// WithPackager sets the packager for the message
func WithPackager(packager *CompiledPackager) MessageOption {
	return func(m *Message) {
		m.packager = packager
	}
}

// WithHeader sets the header for a message
func WithHeader(header []byte) MessageOption {
	return func(m *Message) {
		m.header = append([]byte(nil), header...)
	}
}

// WithTrailer sets the bytes packed after the last field
func WithTrailer(trailer []byte) MessageOption {
	return func(m *Message) {
		m.trailer = append([]byte(nil), trailer...)
	}
}

// WithMTI sets the Message Type Indicator. Invalid values are ignored.
func WithMTI(mti string) MessageOption {
	return func(m *Message) {
		if len(mti) == 4 {
			_ = m.setLocked("0", NewTextField(mti), "")
		}
	}
}

// WithField sets a character field during message creation. Invalid paths
// are ignored.
func WithField(path, value string) MessageOption {
	return func(m *Message) {
		_ = m.setLocked(path, NewTextField(value), "")
	}
}

// WithFields sets multiple character fields during message creation
func WithFields(fields map[string]string) MessageOption {
	return func(m *Message) {
		for path, value := range fields {
			_ = m.setLocked(path, NewTextField(value), "")
		}
	}
}

// PackagerOption represents a functional option for packager configuration
type PackagerOption func(*PackagerConfig)

// WithFieldConfig adds a field configuration
func WithFieldConfig(fieldNum int, config FieldConfig) PackagerOption {
	return func(pc *PackagerConfig) {
		if pc.Fields == nil {
			pc.Fields = make(map[int]FieldConfig)
		}
		pc.Fields[fieldNum] = config
	}
}

// WithHeaderConfig sets the header configuration
func WithHeaderConfig(config HeaderConfig) PackagerOption {
	return func(pc *PackagerConfig) {
		pc.Header = config
	}
}

// WithLengthIndicator sets the message framing configuration
func WithLengthIndicator(config LengthIndicatorConfig) PackagerOption {
	return func(pc *PackagerConfig) {
		pc.LengthIndicator = config
	}
}

// WithBitmapEncoding sets the bitmap encoding
func WithBitmapEncoding(encoding BitmapEncoding) PackagerOption {
	return func(pc *PackagerConfig) {
		pc.BitmapEncoding = encoding
	}
}

// Validation-related options
func WithValidationLevel(level ValidationLevel) MessageOption {
	return func(m *Message) {
		m.validationLevel = level
	}
}

func WithStrictValidation() MessageOption {
	return WithValidationLevel(ValidationStrict)
}

func WithBasicValidation() MessageOption {
	return WithValidationLevel(ValidationBasic)
}
