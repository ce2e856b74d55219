package security

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mkadit/isoperf/emv"
)

// masterKey derives the ICC master key from the issuer master key.
func masterKey(imk []byte, method emv.MKDMethod, pan, psn string) ([]byte, error) {
	if psn == "" {
		psn = "00"
	}
	digits := pan + psn
	if !isDigits(digits) {
		return nil, fmt.Errorf("%w: PAN and PSN must be numeric", ErrInvalidPAN)
	}

	var y string
	switch method {
	case emv.MKDOptionA:
		if len(digits) > 16 {
			digits = digits[len(digits)-16:]
		}
		y = strings.Repeat("0", 16-len(digits)) + digits
	case emv.MKDOptionB:
		if len(pan) <= 16 {
			return masterKey(imk, emv.MKDOptionA, pan, psn)
		}
		y = optionBDigits(digits)
	default:
		return nil, fmt.Errorf("%w: master key derivation %d", ErrUnsupportedAlgorithm, method)
	}

	block, err := hex.DecodeString(y)
	if err != nil {
		return nil, err
	}
	left, err := encryptECB(imk, block)
	if err != nil {
		return nil, err
	}
	right, err := encryptECB(imk, xorBytes(block, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}))
	if err != nil {
		return nil, err
	}
	return append(left, right...), nil
}

// optionBDigits hashes PAN||PSN and decimalizes the digest to 16 digits.
func optionBDigits(digits string) string {
	if len(digits)%2 != 0 {
		digits = "0" + digits
	}
	packed, _ := hex.DecodeString(digits)
	sum := sha1.Sum(packed)
	return decimalize(strings.ToUpper(hex.EncodeToString(sum[:])), 16)
}

// decimalize takes the decimal digits of a hex string in order, then the
// letters A-F mapped to 0-5, and returns the first n of them.
func decimalize(h string, n int) string {
	var out strings.Builder
	for i := 0; i < len(h) && out.Len() < n; i++ {
		if h[i] >= '0' && h[i] <= '9' {
			out.WriteByte(h[i])
		}
	}
	for i := 0; i < len(h) && out.Len() < n; i++ {
		if h[i] >= 'A' && h[i] <= 'F' {
			out.WriteByte(h[i] - 'A' + '0')
		}
	}
	return out.String()
}

func sessionKey(mk []byte, method emv.SKDMethod, atc, un []byte) ([]byte, error) {
	switch method {
	case emv.SKDVSDC:
		return mk, nil
	case emv.SKDEMVCommon:
		if len(atc) != 2 {
			return nil, fmt.Errorf("%w: ATC must be 2 bytes", ErrInvalidData)
		}
		return deriveHalves(mk,
			append(append([]byte{}, atc...), 0xF0, 0, 0, 0, 0, 0),
			append(append([]byte{}, atc...), 0x0F, 0, 0, 0, 0, 0))
	case emv.SKDMChip:
		if len(atc) != 2 || len(un) != 4 {
			return nil, fmt.Errorf("%w: ATC must be 2 bytes and UN 4 bytes", ErrInvalidData)
		}
		left := append(append(append([]byte{}, atc...), 0xF0, 0x00), un...)
		right := append(append(append([]byte{}, atc...), 0x0F, 0x00), un...)
		return deriveHalves(mk, left, right)
	}
	return nil, fmt.Errorf("%w: session key derivation %d", ErrUnsupportedAlgorithm, method)
}

func deriveHalves(key, left, right []byte) ([]byte, error) {
	l, err := encryptECB(key, left)
	if err != nil {
		return nil, err
	}
	r, err := encryptECB(key, right)
	if err != nil {
		return nil, err
	}
	return append(l, r...), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
