package iso8583

import (
	"fmt"
	"strconv"
)

// Field is the value stored at a message node: raw bytes plus a flag telling
// whether they are binary or character data.
type Field struct {
	data   []byte
	binary bool
}

// NewTextField returns a character field holding value.
func NewTextField(value string) Field {
	return Field{data: []byte(value)}
}

// NewBinaryField returns a binary field holding a copy of value.
func NewBinaryField(value []byte) Field {
	data := make([]byte, len(value))
	copy(data, value)
	return Field{data: data, binary: true}
}

// String returns the field's content. Binary fields render as uppercase hex.
func (f Field) String() string {
	if f.binary {
		return EncodeHex(f.data)
	}
	return string(f.data)
}

// Bytes returns the raw field data.
func (f Field) Bytes() []byte {
	return f.data
}

// IsBinary reports whether the field carries binary data.
func (f Field) IsBinary() bool {
	return f.binary
}

// Length returns the length of the field's data in bytes.
func (f Field) Length() int {
	return len(f.data)
}

// Int parses the field's data as a decimal integer.
func (f Field) Int() (int, error) {
	if len(f.data) == 0 {
		return 0, ErrFieldNotFound
	}
	return strconv.Atoi(string(f.data))
}

// Int64 parses the field's data as an int64.
func (f Field) Int64() (int64, error) {
	if len(f.data) == 0 {
		return 0, ErrFieldNotFound
	}
	return strconv.ParseInt(string(f.data), 10, 64)
}

func (f Field) clone() Field {
	if f.data == nil {
		return Field{binary: f.binary}
	}
	data := make([]byte, len(f.data))
	copy(data, f.data)
	return Field{data: data, binary: f.binary}
}

// formatInt renders value in decimal, zero-padded on the left to width.
func formatInt(value, width int) []byte {
	var stackBuf [20]byte
	n := formatIntToBytes(stackBuf[:], value, width)
	out := make([]byte, n)
	copy(out, stackBuf[:n])
	return out
}

// formatIntToBytes converts a non-negative integer to its ASCII
// representation in buf, zero-padded on the left to width.
func formatIntToBytes(buf []byte, value int, width int) int {
	if value == 0 {
		if width > 0 {
			for i := 0; i < width; i++ {
				buf[i] = '0'
			}
			return width
		}
		buf[0] = '0'
		return 1
	}

	// Write digits backwards from the end of the buffer
	i := len(buf) - 1
	for value > 0 {
		buf[i] = byte(value%10 + '0')
		value /= 10
		i--
	}

	digits := len(buf) - 1 - i
	if width > digits {
		padding := width - digits
		copy(buf[padding:], buf[i+1:])
		for j := 0; j < padding; j++ {
			buf[j] = '0'
		}
		return width
	}

	copy(buf, buf[i+1:])
	return digits
}

// validateNumeric checks if the field contains only numeric digits ('0'-'9').
func (f Field) validateNumeric() error {
	for i, b := range f.data {
		if b < '0' || b > '9' {
			return fmt.Errorf("non-numeric character at position %d", i)
		}
	}
	return nil
}

// validatePrintable checks if the field contains only printable ASCII characters (32-126).
func (f Field) validatePrintable() error {
	for i, b := range f.data {
		if b < 32 || b > 126 {
			return fmt.Errorf("invalid character at position %d", i)
		}
	}
	return nil
}
