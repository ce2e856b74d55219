package iso8583

import "fmt"

var (
	ErrInvalidMTI       = fmt.Errorf("invalid MTI")
	ErrInvalidField     = fmt.Errorf("invalid field")
	ErrInvalidPath      = fmt.Errorf("invalid field path")
	ErrFieldNotFound    = fmt.Errorf("field not found")
	ErrInvalidLength    = fmt.Errorf("invalid field length")
	ErrInvalidBitmap    = fmt.Errorf("invalid bitmap")
	ErrInvalidTLV       = fmt.Errorf("invalid TLV data")
	ErrValidationFailed = fmt.Errorf("validation failed")
	ErrBufferTooSmall   = fmt.Errorf("buffer too small")
	ErrInvalidHeader    = fmt.Errorf("invalid header")

	ErrNoPackagerConfigured  = fmt.Errorf("no packager configured")
	ErrFieldNotConfigured    = fmt.Errorf("field not configured")
	ErrUnsupportedLengthType = fmt.Errorf("unsupported length type")
	ErrInvalidBitmapHex      = fmt.Errorf("invalid bitmap hex")
)

type FieldError struct {
	Field int
	Err   error
}

func (fe *FieldError) Error() string {
	return fmt.Sprintf("field %d: %v", fe.Field, fe.Err)
}

func (fe *FieldError) Unwrap() error { return fe.Err }

type ValidationError struct {
	Field   int
	Rule    string
	Message string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %d (%s): %s", ve.Field, ve.Rule, ve.Message)
}

func (ve *ValidationError) Unwrap() error { return ErrValidationFailed }

type TLVError struct {
	Tag []byte
	Err error
}

func (te *TLVError) Error() string {
	return fmt.Sprintf("TLV tag %x: %v", te.Tag, te.Err)
}

func (te *TLVError) Unwrap() error { return te.Err }

// ConfigurationError reports missing or malformed settings: key lengths,
// field references, path syntax. A stage that hits one is skipped.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ParseError reports input that could not be interpreted, such as issuer
// application data or cryptogram input tags.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ProviderError wraps a failure of a cryptographic primitive.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error in %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
