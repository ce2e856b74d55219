package iso8583

const hexTableUpper = "0123456789ABCDEF"

// encodeHexUpper converts src to uppercase hex and writes it to dst.
func encodeHexUpper(dst, src []byte) {
	for i, v := range src {
		dst[i*2] = hexTableUpper[v>>4]
		dst[i*2+1] = hexTableUpper[v&0x0f]
	}
}

// EncodeHex returns src as an uppercase hex string.
func EncodeHex(src []byte) string {
	dst := make([]byte, len(src)*2)
	encodeHexUpper(dst, src)
	return string(dst)
}

// DecodeHexPermissive decodes s two characters at a time. A character that
// is not a hex digit decodes as nibble F, and an odd trailing character is
// completed with F. It never fails, so garbage input still yields
// deterministic bytes.
func DecodeHexPermissive(s string) []byte {
	out := make([]byte, (len(s)+1)/2)
	for i := range out {
		hi := hexNibble(s[2*i])
		lo := byte(0x0f)
		if 2*i+1 < len(s) {
			lo = hexNibble(s[2*i+1])
		}
		out[i] = hi<<4 | lo
	}
	return out
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0x0f
	}
}

// Simple power function, since math.Pow is float64
func pow(a, b float64) float64 {
	res := 1.0
	for i := 0; i < int(b); i++ {
		res *= a
	}
	return res
}
