package emv

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidIAD is returned when issuer application data is missing or malformed.
	ErrInvalidIAD = errors.New("invalid issuer application data")
	// ErrUnsupportedCVN is returned for cryptogram versions without a data builder.
	ErrUnsupportedCVN = errors.New("unsupported cryptogram version")
	// ErrMissingTag is returned when a tag required by a data builder is absent.
	ErrMissingTag = errors.New("missing EMV tag")
)

// Scheme identifies the issuer application data layout.
type Scheme int

const (
	SchemeVisa Scheme = iota
	SchemeMChip
)

func (s Scheme) String() string {
	if s == SchemeMChip {
		return "MCHIP"
	}
	return "VISA"
}

// MKDMethod is the ICC master key derivation method.
type MKDMethod int

const (
	MKDOptionA MKDMethod = iota
	MKDOptionB
)

func (m MKDMethod) String() string {
	if m == MKDOptionB {
		return "OPTION_B"
	}
	return "OPTION_A"
}

// SKDMethod is the session key derivation method.
type SKDMethod int

const (
	// SKDVSDC uses the ICC master key directly.
	SKDVSDC SKDMethod = iota
	// SKDMChip derives the session key from ATC and unpredictable number.
	SKDMChip
	// SKDEMVCommon is the EMV common session key derivation from the ATC.
	SKDEMVCommon
)

func (m SKDMethod) String() string {
	switch m {
	case SKDMChip:
		return "MCHIP"
	case SKDEMVCommon:
		return "EMV_CSKD"
	default:
		return "VSDC"
	}
}

// IssuerApplicationData is the parsed content of tag 9F10.
type IssuerApplicationData struct {
	Raw      []byte
	Scheme   Scheme
	DKI      byte
	CVN      byte
	CVR      []byte
	DAC      []byte
	Counters []byte
}

// ParseIAD decodes and parses a hex encoded issuer application data value.
// Visa layouts start with a length byte (06 or 07) followed by the derivation
// key index, the cryptogram version and the card verification results.
// M/Chip layouts carry DKI, CVN, a 6 byte CVR, a 2 byte DAC and 8 bytes of
// counters.
func ParseIAD(value string) (*IssuerApplicationData, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidIAD)
	}
	raw, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIAD, err)
	}

	iad := &IssuerApplicationData{Raw: raw}
	switch {
	case len(raw) >= 7 && len(raw) != 18 && (raw[0] == 0x06 || raw[0] == 0x07) && len(raw) >= int(raw[0])+1:
		iad.Scheme = SchemeVisa
		iad.DKI = raw[1]
		iad.CVN = raw[2]
		iad.CVR = raw[3 : int(raw[0])+1]
	case len(raw) >= 18:
		iad.Scheme = SchemeMChip
		iad.DKI = raw[0]
		iad.CVN = raw[1]
		iad.CVR = raw[2:8]
		iad.DAC = raw[8:10]
		iad.Counters = raw[10:18]
	default:
		return nil, fmt.Errorf("%w: unrecognised layout of %d bytes", ErrInvalidIAD, len(raw))
	}
	return iad, nil
}

// CryptogramSpec selects the key derivation methods and the data builder for
// one cryptogram version.
type CryptogramSpec struct {
	MKD     MKDMethod
	SKD     SKDMethod
	Builder DataBuilder
}

// CryptogramSpec returns the derivation methods declared by the IAD.
func (iad *IssuerApplicationData) CryptogramSpec() (CryptogramSpec, error) {
	switch iad.Scheme {
	case SchemeVisa:
		switch iad.CVN {
		case 0x0A:
			return CryptogramSpec{MKD: MKDOptionA, SKD: SKDVSDC, Builder: visaBuilder{}}, nil
		case 0x12:
			return CryptogramSpec{MKD: MKDOptionA, SKD: SKDEMVCommon, Builder: visaBuilder{fullIAD: true}}, nil
		}
	case SchemeMChip:
		switch iad.CVN {
		case 0x10, 0x11:
			return CryptogramSpec{MKD: MKDOptionA, SKD: SKDMChip, Builder: mchipBuilder{counters: iad.CVN == 0x11}}, nil
		case 0x14, 0x15:
			return CryptogramSpec{MKD: MKDOptionA, SKD: SKDEMVCommon, Builder: mchipBuilder{counters: iad.CVN == 0x15}}, nil
		}
	}
	return CryptogramSpec{}, fmt.Errorf("%w: %s CVN %02X", ErrUnsupportedCVN, iad.Scheme, iad.CVN)
}

// ForPAN switches to master key derivation option B for PANs longer than
// 16 digits.
func (s CryptogramSpec) ForPAN(pan string) CryptogramSpec {
	if len(pan) > 16 {
		s.MKD = MKDOptionB
	}
	return s
}
