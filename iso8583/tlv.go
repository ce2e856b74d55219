package iso8583

import (
	"fmt"
	"strconv"
)

// TLVParser handles parsing and packing of Tag-Length-Value encoded data.
// It supports Standard (1-byte T/L), EMV (BER T/L), and a fixed-width ASCII
// format such as "AB003xyz". A parser holds no state between calls and is
// safe for concurrent use.
type TLVParser struct {
	tlvType TLVType

	asciiTagLen     int // e.g., 2 for "AB"
	asciiLenLen     int // e.g., 3 for "003"
	asciiLengthBase int // 10 for decimal, 16 for hex
}

// NewTLVParser creates a new TLV parser for Standard or EMV types.
func NewTLVParser(tlvType TLVType) *TLVParser {
	return &TLVParser{tlvType: tlvType}
}

// NewASCIITLVParser creates a new parser for fixed-width ASCII TLV.
// tagLen: number of characters for the tag (e.g., 2 for "AB")
// lenLen: number of characters for the length (e.g., 3 for "003")
// base:   10 for decimal length ("012"), 16 for hex length ("00C")
func NewASCIITLVParser(tagLen, lenLen, base int) *TLVParser {
	return &TLVParser{
		tlvType:         TLVASCII,
		asciiTagLen:     tagLen,
		asciiLenLen:     lenLen,
		asciiLengthBase: base,
	}
}

// ParseTLV parses TLV data from a byte slice based on the parser's configured
// type. Returned tags and values alias data.
func (tp *TLVParser) ParseTLV(data []byte) ([]TLV, error) {
	switch tp.tlvType {
	case TLVStandard:
		return tp.parseStandardTLV(data)
	case TLVEMV:
		return tp.parseEMVTLV(data)
	case TLVASCII:
		return tp.parseASCIITLV(data)
	default:
		return nil, fmt.Errorf("unsupported TLV type %d", tp.tlvType)
	}
}

func (tp *TLVParser) parseASCIITLV(data []byte) ([]TLV, error) {
	if tp.asciiTagLen <= 0 || tp.asciiLenLen <= 0 {
		return nil, fmt.Errorf("ASCII TLV parser not configured (tag/length len is zero)")
	}

	var tlvs []TLV
	offset := 0
	for offset < len(data) {
		if offset+tp.asciiTagLen+tp.asciiLenLen > len(data) {
			return nil, &TLVError{Tag: data[offset:], Err: fmt.Errorf("%w: truncated header at offset %d", ErrInvalidTLV, offset)}
		}
		tag := data[offset : offset+tp.asciiTagLen]
		offset += tp.asciiTagLen

		lengthStr := string(data[offset : offset+tp.asciiLenLen])
		length, err := strconv.ParseInt(lengthStr, tp.asciiLengthBase, 32)
		if err != nil || length < 0 {
			return nil, &TLVError{Tag: tag, Err: fmt.Errorf("%w: invalid length %q", ErrInvalidTLV, lengthStr)}
		}
		offset += tp.asciiLenLen

		if offset+int(length) > len(data) {
			return nil, &TLVError{Tag: tag, Err: fmt.Errorf("%w: need %d bytes, have %d", ErrInvalidTLV, length, len(data)-offset)}
		}
		tlvs = append(tlvs, TLV{Tag: tag, Length: int(length), Value: data[offset : offset+int(length)]})
		offset += int(length)
	}
	return tlvs, nil
}

// parseStandardTLV parses standard TLV format (T=1byte, L=1byte, V=variable).
func (tp *TLVParser) parseStandardTLV(data []byte) ([]TLV, error) {
	var tlvs []TLV
	offset := 0
	for offset < len(data) {
		if offset+2 > len(data) {
			return nil, ErrInvalidTLV
		}
		tag := data[offset : offset+1]
		length := int(data[offset+1])
		offset += 2

		if offset+length > len(data) {
			return nil, &TLVError{Tag: tag, Err: ErrInvalidTLV}
		}
		tlvs = append(tlvs, TLV{Tag: tag, Length: length, Value: data[offset : offset+length]})
		offset += length
	}
	return tlvs, nil
}

// parseEMVTLV parses BER-TLV as used by EMV: multi-byte tags when the low
// five bits of the first byte are all set, long-form lengths when the
// first length byte has its high bit set.
func (tp *TLVParser) parseEMVTLV(data []byte) ([]TLV, error) {
	var tlvs []TLV
	offset := 0
	for offset < len(data) {
		tagStart := offset
		first := data[offset]
		offset++

		if first&0x1F == 0x1F {
			// Subsequent tag bytes continue while their high bit is set.
			for offset < len(data) && data[offset]&0x80 != 0 {
				offset++
			}
			if offset >= len(data) {
				return nil, &TLVError{Tag: data[tagStart:], Err: ErrInvalidTLV}
			}
			offset++
		}
		tag := data[tagStart:offset]

		if offset >= len(data) {
			return nil, &TLVError{Tag: tag, Err: ErrInvalidTLV}
		}
		lengthByte := data[offset]
		offset++

		length := int(lengthByte)
		if lengthByte&0x80 != 0 {
			numLengthBytes := int(lengthByte & 0x7F)
			if numLengthBytes == 0 || numLengthBytes > 4 || offset+numLengthBytes > len(data) {
				return nil, &TLVError{Tag: tag, Err: ErrInvalidTLV}
			}
			length = 0
			for i := 0; i < numLengthBytes; i++ {
				length = length<<8 | int(data[offset])
				offset++
			}
		}

		if length < 0 || offset+length > len(data) {
			return nil, &TLVError{Tag: tag, Err: ErrInvalidTLV}
		}
		tlvs = append(tlvs, TLV{Tag: tag, Length: length, Value: data[offset : offset+length]})
		offset += length
	}
	return tlvs, nil
}

// PackTLV packs a slice of TLV structs into buf and returns the number of
// bytes written.
func (tp *TLVParser) PackTLV(tlvs []TLV, buf []byte) (int, error) {
	switch tp.tlvType {
	case TLVStandard:
		return tp.packStandardTLV(tlvs, buf)
	case TLVEMV:
		return tp.packEMVTLV(tlvs, buf)
	case TLVASCII:
		return tp.packASCIITLV(tlvs, buf)
	default:
		return 0, fmt.Errorf("unsupported TLV type %d", tp.tlvType)
	}
}

func (tp *TLVParser) packASCIITLV(tlvs []TLV, buf []byte) (int, error) {
	if tp.asciiTagLen <= 0 || tp.asciiLenLen <= 0 {
		return 0, fmt.Errorf("ASCII TLV parser not configured (tag/length len is zero)")
	}

	maxLen := int(pow(float64(tp.asciiLengthBase), float64(tp.asciiLenLen))) - 1
	offset := 0
	for _, tlv := range tlvs {
		if len(tlv.Tag) != tp.asciiTagLen {
			return 0, &TLVError{Tag: tlv.Tag, Err: fmt.Errorf("%w: tag must be %d characters", ErrInvalidTLV, tp.asciiTagLen)}
		}
		if len(tlv.Value) > maxLen {
			return 0, &TLVError{Tag: tlv.Tag, Err: fmt.Errorf("%w: value length %d exceeds %d", ErrInvalidTLV, len(tlv.Value), maxLen)}
		}
		if offset+tp.asciiTagLen+tp.asciiLenLen+len(tlv.Value) > len(buf) {
			return 0, ErrBufferTooSmall
		}

		offset += copy(buf[offset:], tlv.Tag)
		var lengthStr string
		if tp.asciiLengthBase == 16 {
			lengthStr = fmt.Sprintf("%0*X", tp.asciiLenLen, len(tlv.Value))
		} else {
			lengthStr = fmt.Sprintf("%0*d", tp.asciiLenLen, len(tlv.Value))
		}
		offset += copy(buf[offset:], lengthStr)
		offset += copy(buf[offset:], tlv.Value)
	}
	return offset, nil
}

// packStandardTLV packs standard TLV format (T=1byte, L=1byte, V=variable).
func (tp *TLVParser) packStandardTLV(tlvs []TLV, buf []byte) (int, error) {
	offset := 0
	for _, tlv := range tlvs {
		if len(tlv.Tag) != 1 {
			return 0, &TLVError{Tag: tlv.Tag, Err: fmt.Errorf("%w: standard tag must be 1 byte", ErrInvalidTLV)}
		}
		if len(tlv.Value) > 255 {
			return 0, &TLVError{Tag: tlv.Tag, Err: fmt.Errorf("%w: value too long (max 255)", ErrInvalidTLV)}
		}
		if offset+2+len(tlv.Value) > len(buf) {
			return 0, ErrBufferTooSmall
		}
		buf[offset] = tlv.Tag[0]
		buf[offset+1] = byte(len(tlv.Value))
		offset += 2
		offset += copy(buf[offset:], tlv.Value)
	}
	return offset, nil
}

// packEMVTLV packs BER-TLV, switching to the long length form from 128 bytes.
func (tp *TLVParser) packEMVTLV(tlvs []TLV, buf []byte) (int, error) {
	offset := 0
	for _, tlv := range tlvs {
		var lenBuf [5]byte
		lenBytes := encodeBERLength(lenBuf[:0], len(tlv.Value))
		if offset+len(tlv.Tag)+len(lenBytes)+len(tlv.Value) > len(buf) {
			return 0, ErrBufferTooSmall
		}
		offset += copy(buf[offset:], tlv.Tag)
		offset += copy(buf[offset:], lenBytes)
		offset += copy(buf[offset:], tlv.Value)
	}
	return offset, nil
}

func encodeBERLength(dst []byte, length int) []byte {
	if length < 0x80 {
		return append(dst, byte(length))
	}
	var tmp [4]byte
	n := 0
	for v := length; v > 0; v >>= 8 {
		n++
	}
	for i := n - 1; i >= 0; i-- {
		tmp[n-1-i] = byte(length >> (8 * i))
	}
	dst = append(dst, byte(0x80|n))
	return append(dst, tmp[:n]...)
}

// FindTLV finds the first TLV entry matching the given tag.
func FindTLV(tlvs []TLV, tag []byte) (*TLV, bool) {
	for i := range tlvs {
		if string(tlvs[i].Tag) == string(tag) {
			return &tlvs[i], true
		}
	}
	return nil, false
}
