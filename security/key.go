package security

import (
	"crypto/cipher"
	"crypto/des"
	"errors"
	"fmt"
)

var (
	ErrInvalidKeyLength     = errors.New("invalid key length")
	ErrInvalidData          = errors.New("invalid data length")
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	ErrKeyUsage             = errors.New("key usage mismatch")
	ErrInvalidKSN           = errors.New("invalid key serial number")
	ErrInvalidPIN           = errors.New("invalid PIN")
	ErrInvalidPAN           = errors.New("invalid PAN")
	ErrUnsupportedFormat    = errors.New("unsupported PIN block format")
)

// Usage restricts what an imported key may be used for.
type Usage int

const (
	UsageZPK Usage = iota
	UsageBDK
	UsageTAK
	UsageIMKAC
	UsageCVK
	UsageKEK
	// UsageDerivedPIN marks keys produced by DeriveKey.
	UsageDerivedPIN
)

func (u Usage) String() string {
	switch u {
	case UsageZPK:
		return "ZPK"
	case UsageBDK:
		return "BDK"
	case UsageTAK:
		return "TAK"
	case UsageIMKAC:
		return "IMK_AC"
	case UsageCVK:
		return "CVK"
	case UsageKEK:
		return "KEK"
	case UsageDerivedPIN:
		return "DUKPT_PIN"
	}
	return fmt.Sprintf("Usage(%d)", int(u))
}

// Key is an imported key handle.
type Key struct {
	usage    Usage
	material []byte
}

func (k *Key) Usage() Usage { return k.usage }

// Len is the key length in bytes: 8, 16 or 24.
func (k *Key) Len() int { return len(k.material) }

// String never prints key material.
func (k *Key) String() string {
	return fmt.Sprintf("%s/%d", k.usage, len(k.material)*8)
}

func newKey(usage Usage, clear []byte) (*Key, error) {
	switch len(clear) {
	case 8, 16, 24:
	default:
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidKeyLength, len(clear))
	}
	return &Key{usage: usage, material: append([]byte(nil), clear...)}, nil
}

// newBlock returns DES for single length keys and 3DES (EDE) otherwise. A
// double length key K1K2 is expanded to K1K2K1.
func newBlock(material []byte) (cipher.Block, error) {
	switch len(material) {
	case 8:
		return des.NewCipher(material)
	case 16:
		k := make([]byte, 24)
		copy(k, material)
		copy(k[16:], material[:8])
		return des.NewTripleDESCipher(k)
	case 24:
		return des.NewTripleDESCipher(material)
	}
	return nil, fmt.Errorf("%w: %d bytes", ErrInvalidKeyLength, len(material))
}

func encryptECB(material, data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%des.BlockSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidData, len(data))
	}
	block, err := newBlock(material)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += des.BlockSize {
		block.Encrypt(out[i:i+des.BlockSize], data[i:i+des.BlockSize])
	}
	return out, nil
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}
