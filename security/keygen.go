package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateKey returns a random DES key of 64, 128 or 192 bits with odd parity,
// as lower-case hex.
func GenerateKey(bits int) (string, error) {
	switch bits {
	case 64, 128, 192:
	default:
		return "", fmt.Errorf("%w: %d bits", ErrInvalidKeyLength, bits)
	}
	key := make([]byte, bits/8)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	for i, b := range key {
		key[i] = oddParity(b)
	}
	return hex.EncodeToString(key), nil
}

func oddParity(b byte) byte {
	ones := 0
	for v := b >> 1; v != 0; v >>= 1 {
		ones += int(v & 1)
	}
	if ones%2 == 0 {
		return b | 1
	}
	return b &^ 1
}

// KeyAlgorithm names the cipher a hex key of the given length belongs to.
func KeyAlgorithm(hexKey string) string {
	if len(hexKey) == 16 {
		return "DES"
	}
	return "DESede"
}
