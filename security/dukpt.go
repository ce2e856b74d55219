package security

import "fmt"

var (
	dukptKeyMask = []byte{0xC0, 0xC0, 0xC0, 0xC0, 0, 0, 0, 0, 0xC0, 0xC0, 0xC0, 0xC0, 0, 0, 0, 0}
	dukptPINMask = []byte{0, 0, 0, 0, 0, 0, 0, 0xFF, 0, 0, 0, 0, 0, 0, 0, 0xFF}
)

// derivePINKey runs ANSI X9.24 DUKPT from the base derivation key to the
// current transaction key and applies the PIN encryption variant.
func derivePINKey(bdk, ksn []byte) ([]byte, error) {
	if len(bdk) != 16 {
		return nil, fmt.Errorf("%w: DUKPT needs a double length BDK", ErrInvalidKeyLength)
	}
	if len(ksn) != 10 {
		return nil, fmt.Errorf("%w: register must be 10 bytes", ErrInvalidKSN)
	}

	key, err := initialKey(bdk, ksn)
	if err != nil {
		return nil, err
	}

	reg := make([]byte, 8)
	copy(reg, ksn[2:])
	reg[5] &= 0xE0
	reg[6], reg[7] = 0, 0
	counter := (uint32(ksn[7])<<16 | uint32(ksn[8])<<8 | uint32(ksn[9])) & 0x1FFFFF

	for shift := uint32(0x100000); shift > 0; shift >>= 1 {
		if counter&shift == 0 {
			continue
		}
		reg[5] |= byte(shift >> 16)
		reg[6] |= byte(shift >> 8)
		reg[7] |= byte(shift)
		if key, err = nonReversibleKey(key, reg); err != nil {
			return nil, err
		}
	}
	return xorBytes(key, dukptPINMask), nil
}

func initialKey(bdk, ksn []byte) ([]byte, error) {
	reg := make([]byte, 8)
	copy(reg, ksn[:8])
	reg[7] &= 0xE0
	left, err := encryptECB(bdk, reg)
	if err != nil {
		return nil, err
	}
	right, err := encryptECB(xorBytes(bdk, dukptKeyMask), reg)
	if err != nil {
		return nil, err
	}
	return append(left, right...), nil
}

// nonReversibleKey is the DUKPT non-reversible key generation process.
func nonReversibleKey(key, reg []byte) ([]byte, error) {
	right, err := desHalf(key[:8], key[8:], reg)
	if err != nil {
		return nil, err
	}
	masked := xorBytes(key, dukptKeyMask)
	left, err := desHalf(masked[:8], masked[8:], reg)
	if err != nil {
		return nil, err
	}
	return append(left, right...), nil
}

func desHalf(kl, kr, reg []byte) ([]byte, error) {
	out, err := encryptECB(kl, xorBytes(reg, kr))
	if err != nil {
		return nil, err
	}
	return xorBytes(out, kr), nil
}
