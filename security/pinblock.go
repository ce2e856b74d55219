package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// PINBlockFormat uses the numbering of the original host configuration.
type PINBlockFormat int

const (
	FormatISO0 PINBlockFormat = 1
	FormatISO1 PINBlockFormat = 5
	FormatISO2 PINBlockFormat = 34
	FormatISO3 PINBlockFormat = 47
)

func (f PINBlockFormat) String() string {
	switch f {
	case FormatISO0:
		return "ISO-0"
	case FormatISO1:
		return "ISO-1"
	case FormatISO2:
		return "ISO-2"
	case FormatISO3:
		return "ISO-3"
	}
	return fmt.Sprintf("PINBlockFormat(%d)", int(f))
}

// CalculatePINBlock builds a clear PIN block. ISO-0 and ISO-3 blocks are
// combined with the 12 rightmost PAN digits excluding the check digit.
func CalculatePINBlock(pin string, format PINBlockFormat, pan string) ([]byte, error) {
	if len(pin) < 4 || len(pin) > 12 || !isDigits(pin) {
		return nil, fmt.Errorf("%w: must be 4 to 12 digits", ErrInvalidPIN)
	}

	var control string
	var fill func(n int) (string, error)
	switch format {
	case FormatISO0:
		control, fill = "0", repeatFill('F')
	case FormatISO1:
		control, fill = "1", randomFill("0123456789")
	case FormatISO2:
		control, fill = "2", repeatFill('F')
	case FormatISO3:
		control, fill = "3", randomFill("ABCDEF")
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedFormat, int(format))
	}

	head := fmt.Sprintf("%s%X%s", control, len(pin), pin)
	padding, err := fill(16 - len(head))
	if err != nil {
		return nil, err
	}
	block, err := hex.DecodeString(head + padding)
	if err != nil {
		return nil, err
	}

	if format != FormatISO0 && format != FormatISO3 {
		return block, nil
	}
	account, err := accountBlock(pan)
	if err != nil {
		return nil, err
	}
	return xorBytes(block, account), nil
}

func accountBlock(pan string) ([]byte, error) {
	pan = strings.TrimSpace(pan)
	if len(pan) < 13 || !isDigits(pan) {
		return nil, fmt.Errorf("%w: need at least 13 digits", ErrInvalidPAN)
	}
	return hex.DecodeString("0000" + pan[len(pan)-13:len(pan)-1])
}

func repeatFill(c byte) func(int) (string, error) {
	return func(n int) (string, error) {
		return strings.Repeat(string(c), n), nil
	}
}

func randomFill(alphabet string) func(int) (string, error) {
	return func(n int) (string, error) {
		buf := make([]byte, n)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for i := range buf {
			buf[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(buf), nil
	}
}
