package iso8583

import (
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/mkadit/isoperf/emv"
)

// Pack serialises the message: header, MTI (when set), bitmap, the present
// fields in ascending order and the trailer.
func (m *Message) Pack() ([]byte, error) {
	buf := getBuffer()
	defer func() { putBuffer(buf) }()

	var err error
	buf, err = m.AppendPack(buf[:0])
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	return out, nil
}

// AppendPack appends the packed message to buf and returns the extended slice.
func (m *Message) AppendPack(buf []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.packager == nil {
		return buf, ErrNoPackagerConfigured
	}

	buf = append(buf, m.header...)

	// Unpack always reads four MTI bytes.
	idx := m.childIndex(0, 0)
	if idx < 0 || !m.nodes[idx].hasValue {
		return buf, fmt.Errorf("%w: not set", ErrInvalidMTI)
	}
	mti := m.nodes[idx].value.Bytes()
	if len(mti) != 4 {
		return buf, fmt.Errorf("%w: %q", ErrInvalidMTI, mti)
	}
	buf = append(buf, mti...)

	var bitmap BitmapManager
	fields := make([]int, 0, len(m.nodes[0].children))
	for _, c := range m.nodes[0].children {
		n := &m.nodes[c]
		if n.num == 0 || !n.present() {
			continue
		}
		if err := bitmap.SetField(n.num); err != nil {
			return buf, &FieldError{Field: n.num, Err: err}
		}
		fields = append(fields, c)
	}
	buf = bitmap.PackBitmap(buf, m.packager.bitmapEncoding)

	for _, idx := range fields {
		num := m.nodes[idx].num
		config, ok := m.packager.GetFieldConfig(num)
		if !ok {
			return buf, &FieldError{Field: num, Err: ErrFieldNotConfigured}
		}
		content, err := m.encodeNode(idx, config)
		if err != nil {
			return buf, &FieldError{Field: num, Err: err}
		}
		if buf, err = appendField(buf, config, content); err != nil {
			return buf, &FieldError{Field: num, Err: err}
		}
	}

	return append(buf, m.trailer...), nil
}

// encodeNode returns the unprefixed content of a node: its own value, or the
// encoding of its subfields according to the composite type.
func (m *Message) encodeNode(idx int, config FieldConfig) ([]byte, error) {
	n := &m.nodes[idx]
	if len(n.children) == 0 {
		return n.value.Bytes(), nil
	}

	switch config.Composite {
	case CompositeFixed:
		return m.encodeFixed(idx, config)
	case CompositeTLV:
		return m.encodeTLV(idx, config)
	default:
		var out []byte
		for _, c := range n.children {
			if m.nodes[c].present() {
				sub, err := m.encodeNode(c, config.Subfields[m.nodes[c].num])
				if err != nil {
					return nil, err
				}
				out = append(out, sub...)
			}
		}
		return out, nil
	}
}

func sortedSubfields(config FieldConfig) []int {
	nums := make([]int, 0, len(config.Subfields))
	for num := range config.Subfields {
		nums = append(nums, num)
	}
	sort.Ints(nums)
	return nums
}

// encodeFixed lays out positional subfields, padding absent ones.
func (m *Message) encodeFixed(idx int, config FieldConfig) ([]byte, error) {
	for _, c := range m.nodes[idx].children {
		if num := m.nodes[c].num; m.nodes[c].present() {
			if _, ok := config.Subfields[num]; !ok {
				return nil, fmt.Errorf("subfield %d: %w", num, ErrFieldNotConfigured)
			}
		}
	}

	var out []byte
	for _, num := range sortedSubfields(config) {
		sub := config.Subfields[num]
		var content []byte
		if c := m.childIndex(idx, num); c >= 0 && m.nodes[c].present() {
			var err error
			if content, err = m.encodeNode(c, sub); err != nil {
				return nil, fmt.Errorf("subfield %d: %w", num, err)
			}
		}
		var err error
		if out, err = appendField(out, sub, content); err != nil {
			return nil, fmt.Errorf("subfield %d: %w", num, err)
		}
	}
	return out, nil
}

// encodeTLV turns tagged subfields into TLV records. EMV tags are hex codes
// and character values are converted to the tag's registered format.
func (m *Message) encodeTLV(idx int, config FieldConfig) ([]byte, error) {
	var tlvs []TLV
	size := 0
	for _, c := range m.nodes[idx].children {
		n := &m.nodes[c]
		if !n.present() {
			continue
		}
		if n.tag == "" {
			return nil, fmt.Errorf("subfield %d: %w: missing tag", n.num, ErrInvalidTLV)
		}
		value, err := m.encodeNode(c, config.Subfields[n.num])
		if err != nil {
			return nil, err
		}

		var tag []byte
		switch config.TLV {
		case TLVASCII:
			tag = []byte(n.tag)
		default:
			if tag, err = hex.DecodeString(n.tag); err != nil {
				return nil, &TLVError{Tag: []byte(n.tag), Err: ErrInvalidTLV}
			}
			if config.TLV == TLVEMV && n.hasValue && !n.value.IsBinary() {
				value = emv.EncodeText(n.tag, string(value))
			}
		}
		tlvs = append(tlvs, TLV{Tag: tag, Length: len(value), Value: value})
		size += len(tag) + len(value) + 8
	}

	out := make([]byte, size)
	written, err := newTLVParser(config).PackTLV(tlvs, out)
	if err != nil {
		return nil, err
	}
	return out[:written], nil
}

func newTLVParser(config FieldConfig) *TLVParser {
	if config.TLV != TLVASCII {
		return NewTLVParser(config.TLV)
	}
	tagLen, lenDigits := config.TagLength, config.LengthDigits
	if tagLen <= 0 {
		tagLen = 2
	}
	if lenDigits <= 0 {
		lenDigits = 3
	}
	return NewASCIITLVParser(tagLen, lenDigits, 10)
}

// appendField pads fixed fields or writes the ASCII length prefix of
// variable fields, then the content.
func appendField(buf []byte, config FieldConfig, content []byte) ([]byte, error) {
	switch config.Length {
	case LengthFixed:
		if config.MaxLength <= 0 {
			return append(buf, content...), nil
		}
		if len(content) > config.MaxLength {
			return buf, fmt.Errorf("%w: %d exceeds fixed length %d", ErrInvalidLength, len(content), config.MaxLength)
		}
		pad := config.MaxLength - len(content)
		switch config.Type {
		case FieldTypeN:
			buf = appendRepeat(buf, '0', pad)
			buf = append(buf, content...)
		case FieldTypeB:
			buf = append(buf, content...)
			buf = appendRepeat(buf, 0x00, pad)
		default:
			buf = append(buf, content...)
			buf = appendRepeat(buf, ' ', pad)
		}
		return buf, nil

	case LengthLLVAR, LengthLLLVAR, LengthLLLLVAR:
		digits := config.Length.prefixDigits()
		if config.MaxLength > 0 && len(content) > config.MaxLength {
			return buf, fmt.Errorf("%w: %d exceeds maximum %d", ErrInvalidLength, len(content), config.MaxLength)
		}
		if len(content) >= int(pow(10, float64(digits))) {
			return buf, fmt.Errorf("%w: %d does not fit %d length digits", ErrInvalidLength, len(content), digits)
		}
		var prefix [4]byte
		writeIntToASCII(prefix[:digits], len(content), digits)
		buf = append(buf, prefix[:digits]...)
		return append(buf, content...), nil

	default:
		return buf, ErrUnsupportedLengthType
	}
}

func appendRepeat(buf []byte, b byte, n int) []byte {
	for i := 0; i < n; i++ {
		buf = append(buf, b)
	}
	return buf
}

// writeIntToASCII writes val as exactly digits decimal characters.
func writeIntToASCII(buf []byte, val, digits int) {
	for i := digits - 1; i >= 0; i-- {
		buf[i] = byte(val%10 + '0')
		val /= 10
	}
}

// Unpack parses data into the message, replacing its fields. Bytes left
// after the last field are kept as the trailer.
func (m *Message) Unpack(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.packager == nil {
		return ErrNoPackagerConfigured
	}
	m.clearNodes()
	m.header = nil
	m.trailer = nil
	offset := 0

	if hc := m.packager.headerConfig; hc.Type != HeaderNone && hc.Length > 0 {
		if len(data) < hc.Length {
			return ErrInvalidHeader
		}
		m.header = append([]byte(nil), data[:hc.Length]...)
		offset = hc.Length
	}

	if len(data) < offset+4 {
		return ErrInvalidMTI
	}
	for _, c := range data[offset : offset+4] {
		if c < '0' || c > '9' {
			return fmt.Errorf("%w: %q", ErrInvalidMTI, data[offset:offset+4])
		}
	}
	mti := m.addChild(0, 0)
	m.nodes[mti].value = Field{data: append([]byte(nil), data[offset:offset+4]...)}
	m.nodes[mti].hasValue = true
	offset += 4

	var bitmap BitmapManager
	bitmapLen, err := bitmap.UnpackBitmap(data[offset:], m.packager.bitmapEncoding)
	if err != nil {
		return err
	}
	offset += bitmapLen

	for _, num := range bitmap.GetPresentFields() {
		config, ok := m.packager.GetFieldConfig(num)
		if !ok {
			return &FieldError{Field: num, Err: ErrFieldNotConfigured}
		}
		content, next, err := readField(data, offset, config)
		if err != nil {
			return &FieldError{Field: num, Err: err}
		}
		if err := m.decodeInto(0, num, config, content); err != nil {
			return &FieldError{Field: num, Err: err}
		}
		offset = next
	}

	if offset < len(data) {
		m.trailer = append([]byte(nil), data[offset:]...)
	}
	return nil
}

// readField returns the content of the field starting at offset and the
// offset just past it.
func readField(data []byte, offset int, config FieldConfig) ([]byte, int, error) {
	length, start, err := calculateFieldLength(config, data, offset)
	if err != nil {
		return nil, offset, err
	}
	if len(data) < start+length {
		return nil, offset, fmt.Errorf("%w: need %d bytes, have %d", ErrInvalidLength, length, len(data)-start)
	}
	return data[start : start+length], start + length, nil
}

// decodeInto stores content as child num of parent, splitting composites
// into subfields.
func (m *Message) decodeInto(parent, num int, config FieldConfig, content []byte) error {
	idx := m.addChild(parent, num)

	switch config.Composite {
	case CompositeFixed:
		offset := 0
		for _, sub := range sortedSubfields(config) {
			if offset >= len(content) {
				break
			}
			subConfig := config.Subfields[sub]
			value, next, err := readField(content, offset, subConfig)
			if err != nil {
				return fmt.Errorf("subfield %d: %w", sub, err)
			}
			if err := m.decodeInto(idx, sub, subConfig, value); err != nil {
				return err
			}
			offset = next
		}
		return nil

	case CompositeTLV:
		tlvs, err := newTLVParser(config).ParseTLV(content)
		if err != nil {
			return err
		}
		for i, tlv := range tlvs {
			child := m.addChild(idx, i+1)
			n := &m.nodes[child]
			n.hasValue = true
			switch config.TLV {
			case TLVASCII:
				n.tag = string(tlv.Tag)
				n.value = Field{data: append([]byte(nil), tlv.Value...)}
			case TLVEMV:
				n.tag = EncodeHex(tlv.Tag)
				if text, binary := emv.DecodeValue(n.tag, tlv.Value); !binary {
					n.value = NewTextField(text)
				} else {
					n.value = NewBinaryField(tlv.Value)
				}
			default:
				n.tag = EncodeHex(tlv.Tag)
				n.value = NewBinaryField(tlv.Value)
			}
		}
		return nil

	default:
		n := &m.nodes[idx]
		n.hasValue = true
		n.value = Field{data: append([]byte(nil), content...), binary: config.Type == FieldTypeB}
		return nil
	}
}

// calculateFieldLength reads the length prefix (LLVAR, LLLVAR) or uses
// the fixed length from config to determine the field's data length.
// Returns: field data length, new offset (after length prefix), error
func calculateFieldLength(config FieldConfig, data []byte, offset int) (int, int, error) {
	if config.Length == LengthFixed {
		return config.MaxLength, offset, nil
	}

	digits := config.Length.prefixDigits()
	if digits == 0 {
		return 0, offset, ErrUnsupportedLengthType
	}
	if len(data) < offset+digits {
		return 0, offset, ErrInvalidLength
	}
	length, err := parseASCIIToInt(data[offset : offset+digits])
	if err != nil {
		return 0, offset, fmt.Errorf("%w: %v", ErrInvalidLength, err)
	}
	return length, offset + digits, nil
}
