package security

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultKSNDescriptor splits a KSN into a 6 digit key set id, a 5 digit
// device id and a 5 digit transaction counter.
const DefaultKSNDescriptor = "6-5-5"

var ksnDescriptorPattern = regexp.MustCompile(`^[0-9]+-[0-9]+-[0-9]+$`)

// KSN is a DUKPT key serial number split by a descriptor.
type KSN struct {
	KeySetID string
	DeviceID string
	Counter  string
}

// ParseKSN splits ksn according to descriptor ("6-5-5" when empty). A KSN
// longer than the descriptor, such as one already padded with F, keeps its
// rightmost digits.
func ParseKSN(ksn, descriptor string) (KSN, error) {
	if descriptor == "" {
		descriptor = DefaultKSNDescriptor
	}
	if !ksnDescriptorPattern.MatchString(descriptor) {
		return KSN{}, fmt.Errorf("%w: descriptor %q", ErrInvalidKSN, descriptor)
	}

	parts := strings.Split(descriptor, "-")
	sizes := make([]int, len(parts))
	total := 0
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n == 0 {
			return KSN{}, fmt.Errorf("%w: descriptor %q", ErrInvalidKSN, descriptor)
		}
		sizes[i] = n
		total += n
	}
	if total > 20 {
		return KSN{}, fmt.Errorf("%w: descriptor %q exceeds 20 digits", ErrInvalidKSN, descriptor)
	}

	ksn = strings.ToUpper(strings.TrimSpace(ksn))
	if len(ksn) < total {
		return KSN{}, fmt.Errorf("%w: %d digits, descriptor needs %d", ErrInvalidKSN, len(ksn), total)
	}
	// Rightmost, not leftmost: an F-padded 20 digit KSN from field 53 keeps
	// its counter. Unpadded KSNs of exactly total digits are unaffected.
	ksn = ksn[len(ksn)-total:]
	if _, err := hex.DecodeString(padHex(ksn)); err != nil {
		return KSN{}, fmt.Errorf("%w: %v", ErrInvalidKSN, err)
	}

	return KSN{
		KeySetID: ksn[:sizes[0]],
		DeviceID: ksn[sizes[0] : sizes[0]+sizes[1]],
		Counter:  ksn[sizes[0]+sizes[1]:],
	}, nil
}

func (k KSN) String() string {
	return k.KeySetID + k.DeviceID + k.Counter
}

// Bytes returns the 10 byte KSN register, left padded with F.
func (k KSN) Bytes() ([]byte, error) {
	s := k.String()
	if s == "" || len(s) > 20 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKSN, s)
	}
	raw, err := hex.DecodeString(strings.Repeat("F", 20-len(s)) + s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKSN, err)
	}
	return raw, nil
}

func padHex(s string) string {
	if len(s)%2 != 0 {
		return "0" + s
	}
	return s
}
