package security

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// CalculateCVV computes the three digit card verification value for a PAN,
// expiry date (YYMM) and service code.
func (m *Module) CalculateCVV(cvk *Key, pan, expiry, serviceCode string) (string, error) {
	if err := requireUsage(cvk, UsageCVK); err != nil {
		return "", err
	}
	data := pan + expiry + serviceCode
	if !isDigits(data) || len(data) > 32 {
		return "", fmt.Errorf("%w: PAN, expiry and service code must be at most 32 digits", ErrInvalidData)
	}
	raw, err := hex.DecodeString(data + strings.Repeat("0", 32-len(data)))
	if err != nil {
		return "", err
	}

	x, err := encryptECB(cvk.material[:8], raw[:8])
	if err != nil {
		return "", err
	}
	x, err = encryptECB(cvk.material, xorBytes(x, raw[8:]))
	if err != nil {
		return "", err
	}
	return decimalize(strings.ToUpper(hex.EncodeToString(x)), 3), nil
}
