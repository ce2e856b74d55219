package emv

import (
	"fmt"
	"strings"
)

// DataBuilder assembles the hex encoded ARQC input from the EMV tags of a
// request. Tag keys are uppercase hex codes and values are hex or digit
// strings as they appear in the message.
type DataBuilder interface {
	Build(tags map[string]string, iad *IssuerApplicationData) (string, error)
}

// baseTags are common to every supported cryptogram version, in input order.
var baseTags = []string{
	TagAmountAuthorised,
	TagAmountOther,
	TagTerminalCountryCode,
	TagTVR,
	TagTransactionCurrency,
	TagTransactionDate,
	TagTransactionType,
	TagUnpredictableNumber,
	TagAIP,
	TagATC,
}

func buildBase(tags map[string]string) (*strings.Builder, error) {
	var sb strings.Builder
	for _, tag := range baseTags {
		value, ok := tags[tag]
		if !ok || value == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingTag, tag)
		}
		sb.WriteString(value)
	}
	return &sb, nil
}

// visaBuilder covers Visa CVN 10 (CVR appended, no padding) and CVN 18
// (full IAD appended, ISO 9797 method 2 padding byte).
type visaBuilder struct {
	fullIAD bool
}

func (b visaBuilder) Build(tags map[string]string, iad *IssuerApplicationData) (string, error) {
	sb, err := buildBase(tags)
	if err != nil {
		return "", err
	}
	if b.fullIAD {
		sb.WriteString(fmt.Sprintf("%X", iad.Raw))
		sb.WriteString("80")
	} else {
		sb.WriteString(fmt.Sprintf("%X", iad.CVR))
	}
	return sb.String(), nil
}

// mchipBuilder covers M/Chip CVN 10/11/14/15. The odd versions also feed
// the counters into the cryptogram.
type mchipBuilder struct {
	counters bool
}

func (b mchipBuilder) Build(tags map[string]string, iad *IssuerApplicationData) (string, error) {
	sb, err := buildBase(tags)
	if err != nil {
		return "", err
	}
	sb.WriteString(fmt.Sprintf("%X", iad.CVR))
	if b.counters {
		sb.WriteString(fmt.Sprintf("%X", iad.Counters))
	}
	sb.WriteString("80")
	return sb.String(), nil
}
