package iso8583

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
)

// WriteLengthIndicator writes the message length indicator (the prefix that
// tells a TCP peer how long the message is) to buf.
// Returns the number of bytes written.
func WriteLengthIndicator(msgLen int, buf []byte, config LengthIndicatorConfig) (int, error) {
	if config.Type == LengthIndicatorNone {
		return 0, nil
	}
	if len(buf) < config.Length {
		return 0, ErrBufferTooSmall
	}

	switch config.Type {
	case LengthIndicatorBinary:
		switch config.Length {
		case 2:
			if msgLen > 0xFFFF {
				return 0, fmt.Errorf("message length %d exceeds 2-byte maximum", msgLen)
			}
			binary.BigEndian.PutUint16(buf, uint16(msgLen))
		case 4:
			if msgLen > 0x7FFFFFFF {
				return 0, fmt.Errorf("message length %d exceeds 4-byte maximum", msgLen)
			}
			binary.BigEndian.PutUint32(buf, uint32(msgLen))
		default:
			return 0, fmt.Errorf("invalid binary length indicator size: %d (must be 2 or 4)", config.Length)
		}
		return config.Length, nil

	case LengthIndicatorASCII:
		if config.Length != 4 {
			return 0, fmt.Errorf("ASCII length indicator must be 4 characters, got %d", config.Length)
		}
		if msgLen > 9999 {
			return 0, fmt.Errorf("message length %d exceeds 4-digit ASCII maximum", msgLen)
		}
		writeIntToASCII(buf[:4], msgLen, 4)
		return 4, nil

	case LengthIndicatorHex:
		if config.Length != 4 {
			return 0, fmt.Errorf("hex length indicator must be 4 characters, got %d", config.Length)
		}
		if msgLen > 0xFFFF {
			return 0, fmt.Errorf("message length %d exceeds 4-char hex maximum", msgLen)
		}
		copy(buf[:4], fmt.Sprintf("%04X", msgLen))
		return 4, nil

	default:
		return 0, fmt.Errorf("unsupported length indicator type %d", config.Type)
	}
}

// ReadLengthIndicator reads the message length indicator from buf.
// Returns:
// 1. The message length (e.g., 200 for "0200")
// 2. The number of bytes consumed by the indicator (e.g., 4 for "0200")
// 3. An error, if any
func ReadLengthIndicator(buf []byte, config LengthIndicatorConfig) (int, int, error) {
	if config.Type == LengthIndicatorNone {
		return len(buf), 0, nil
	}
	if len(buf) < config.Length {
		return 0, 0, ErrInvalidLength
	}

	switch config.Type {
	case LengthIndicatorBinary:
		switch config.Length {
		case 2:
			return int(binary.BigEndian.Uint16(buf)), 2, nil
		case 4:
			return int(binary.BigEndian.Uint32(buf)), 4, nil
		default:
			return 0, 0, fmt.Errorf("invalid binary length indicator size: %d (must be 2 or 4)", config.Length)
		}

	case LengthIndicatorASCII:
		if config.Length != 4 {
			return 0, 0, fmt.Errorf("ASCII length indicator must be 4 characters, got %d", config.Length)
		}
		msgLen, err := parseASCIIToInt(buf[:4])
		if err != nil {
			return 0, 0, fmt.Errorf("invalid ASCII length indicator: %w", err)
		}
		return msgLen, 4, nil

	case LengthIndicatorHex:
		if config.Length != 4 {
			return 0, 0, fmt.Errorf("hex length indicator must be 4 characters, got %d", config.Length)
		}
		msgLen, err := strconv.ParseInt(string(buf[:4]), 16, 32)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid hex length indicator: %w", err)
		}
		return int(msgLen), 4, nil

	default:
		return 0, 0, fmt.Errorf("unsupported length indicator type %d", config.Type)
	}
}

// WriteFrame writes payload to w preceded by its length indicator.
func WriteFrame(w io.Writer, payload []byte, config LengthIndicatorConfig) error {
	var prefix [4]byte
	n, err := WriteLengthIndicator(len(payload), prefix[:], config)
	if err != nil {
		return err
	}
	frame := make([]byte, 0, n+len(payload))
	frame = append(frame, prefix[:n]...)
	frame = append(frame, payload...)
	_, err = w.Write(frame)
	return err
}

// ReadFrame reads one length-prefixed message from r. Without a length
// indicator there is no way to find the message end, so this is an error.
func ReadFrame(r io.Reader, config LengthIndicatorConfig) ([]byte, error) {
	if config.Type == LengthIndicatorNone {
		return nil, fmt.Errorf("%w: framing requires a length indicator", ErrInvalidLength)
	}
	if config.Length <= 0 || config.Length > 4 {
		return nil, fmt.Errorf("%w: indicator size %d", ErrInvalidLength, config.Length)
	}

	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:config.Length]); err != nil {
		return nil, err
	}
	msgLen, _, err := ReadLengthIndicator(prefix[:config.Length], config)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, msgLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// parseASCIIToInt parses ASCII digits to an integer without allocating.
func parseASCIIToInt(b []byte) (int, error) {
	n := 0
	for _, ch := range b {
		if ch < '0' || ch > '9' {
			return 0, fmt.Errorf("invalid character '%c' in numeric string", ch)
		}
		n = n*10 + int(ch-'0')
	}
	return n, nil
}
