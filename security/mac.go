package security

import (
	"crypto/des"
	"fmt"
)

// Supported MAC algorithm names.
const (
	MACDESede             = "DESEDE"
	MACISO9797Alg3        = "ISO9797ALG3MAC"
	MACISO9797Alg3ISO7816 = "ISO9797ALG3MACWITHISO7816-4PADDING"
)

// zeroPad pads to a block boundary with zero bytes. Empty input becomes one
// zero block.
func zeroPad(data []byte) []byte {
	n := len(data)
	if n > 0 && n%des.BlockSize == 0 {
		return data
	}
	padded := make([]byte, (n/des.BlockSize+1)*des.BlockSize)
	copy(padded, data)
	return padded
}

// iso7816Pad always appends 0x80 followed by zeros up to a block boundary.
func iso7816Pad(data []byte) []byte {
	padded := make([]byte, (len(data)/des.BlockSize+1)*des.BlockSize)
	copy(padded, data)
	padded[len(data)] = 0x80
	return padded
}

// cbcMAC is a CBC-MAC with the full key, truncated to half a block.
func cbcMAC(material, data []byte) ([]byte, error) {
	block, err := newBlock(material)
	if err != nil {
		return nil, err
	}
	y := make([]byte, des.BlockSize)
	for i := 0; i < len(data); i += des.BlockSize {
		block.Encrypt(y, xorBytes(y, data[i:i+des.BlockSize]))
	}
	return y[:des.BlockSize/2], nil
}

// retailMAC is ISO 9797-1 algorithm 3: single DES CBC under K1, then the
// last block is decrypted under K2 and encrypted again under K1.
func retailMAC(material, data []byte) ([]byte, error) {
	if len(material) != 16 && len(material) != 24 {
		return nil, fmt.Errorf("%w: retail MAC needs a double length key", ErrInvalidKeyLength)
	}
	k1, err := des.NewCipher(material[:8])
	if err != nil {
		return nil, err
	}
	k2, err := des.NewCipher(material[8:16])
	if err != nil {
		return nil, err
	}

	y := make([]byte, des.BlockSize)
	for i := 0; i < len(data); i += des.BlockSize {
		k1.Encrypt(y, xorBytes(y, data[i:i+des.BlockSize]))
	}
	k2.Decrypt(y, y)
	k1.Encrypt(y, y)
	return y, nil
}
