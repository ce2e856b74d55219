// Package emv holds the EMV tag registry, issuer application data parsing and
// the cryptogram input builders used for ARQC generation.
package emv

import (
	"encoding/hex"
	"strings"
)

// Format is the declared data format of an EMV tag.
type Format int

const (
	FormatUnknown Format = iota
	FormatBinary
	FormatNumeric
	FormatCompressedNumeric
	FormatAlpha
	FormatAlphaNumeric
	FormatAlphaNumericSpecial
	FormatConstructed
	FormatProprietary
)

func (f Format) String() string {
	switch f {
	case FormatBinary:
		return "b"
	case FormatNumeric:
		return "n"
	case FormatCompressedNumeric:
		return "cn"
	case FormatAlpha:
		return "a"
	case FormatAlphaNumeric:
		return "an"
	case FormatAlphaNumericSpecial:
		return "ans"
	case FormatConstructed:
		return "constructed"
	case FormatProprietary:
		return "proprietary"
	default:
		return "unknown"
	}
}

// IsBinary reports whether values of this format are carried as raw bytes.
func (f Format) IsBinary() bool {
	return f == FormatBinary || f == FormatConstructed || f == FormatProprietary
}

// Tag describes a registered EMV data element.
type Tag struct {
	Name   string
	Format Format
}

// Well-known tags referenced by the cryptogram code.
const (
	TagAmountAuthorised      = "9F02"
	TagAmountOther           = "9F03"
	TagTerminalCountryCode   = "9F1A"
	TagTVR                   = "95"
	TagTransactionCurrency   = "5F2A"
	TagTransactionDate       = "9A"
	TagTransactionType       = "9C"
	TagUnpredictableNumber   = "9F37"
	TagAIP                   = "82"
	TagATC                   = "9F36"
	TagIssuerAppData         = "9F10"
	TagApplicationCryptogram = "9F26"
	TagPAN                   = "5A"
	TagPANSequenceNumber     = "5F34"
)

var registry = map[string]Tag{
	"42":   {"Issuer Identification Number", FormatNumeric},
	"4F":   {"Application Identifier (card)", FormatBinary},
	"50":   {"Application Label", FormatAlphaNumericSpecial},
	"57":   {"Track 2 Equivalent Data", FormatBinary},
	"5A":   {"Application PAN", FormatCompressedNumeric},
	"5F20": {"Cardholder Name", FormatAlphaNumericSpecial},
	"5F24": {"Application Expiration Date", FormatNumeric},
	"5F25": {"Application Effective Date", FormatNumeric},
	"5F28": {"Issuer Country Code", FormatNumeric},
	"5F2A": {"Transaction Currency Code", FormatNumeric},
	"5F2D": {"Language Preference", FormatAlphaNumeric},
	"5F30": {"Service Code", FormatNumeric},
	"5F34": {"Application PAN Sequence Number", FormatNumeric},
	"5F36": {"Transaction Currency Exponent", FormatNumeric},
	"61":   {"Application Template", FormatConstructed},
	"6F":   {"File Control Information Template", FormatConstructed},
	"70":   {"Record Template", FormatConstructed},
	"71":   {"Issuer Script Template 1", FormatConstructed},
	"72":   {"Issuer Script Template 2", FormatConstructed},
	"77":   {"Response Message Template Format 2", FormatConstructed},
	"80":   {"Response Message Template Format 1", FormatBinary},
	"81":   {"Amount, Authorised (Binary)", FormatBinary},
	"82":   {"Application Interchange Profile", FormatBinary},
	"83":   {"Command Template", FormatBinary},
	"84":   {"Dedicated File Name", FormatBinary},
	"86":   {"Issuer Script Command", FormatBinary},
	"87":   {"Application Priority Indicator", FormatBinary},
	"88":   {"Short File Identifier", FormatBinary},
	"89":   {"Authorisation Code", FormatAlphaNumeric},
	"8A":   {"Authorisation Response Code", FormatAlphaNumeric},
	"8C":   {"CDOL1", FormatBinary},
	"8D":   {"CDOL2", FormatBinary},
	"8E":   {"CVM List", FormatBinary},
	"8F":   {"Certification Authority Public Key Index", FormatBinary},
	"90":   {"Issuer Public Key Certificate", FormatBinary},
	"91":   {"Issuer Authentication Data", FormatBinary},
	"92":   {"Issuer Public Key Remainder", FormatBinary},
	"93":   {"Signed Static Application Data", FormatBinary},
	"94":   {"Application File Locator", FormatBinary},
	"95":   {"Terminal Verification Results", FormatBinary},
	"97":   {"TDOL", FormatBinary},
	"98":   {"TC Hash Value", FormatBinary},
	"99":   {"Transaction PIN Data", FormatBinary},
	"9A":   {"Transaction Date", FormatNumeric},
	"9B":   {"Transaction Status Information", FormatBinary},
	"9C":   {"Transaction Type", FormatNumeric},
	"9D":   {"Directory Definition File Name", FormatBinary},
	"A5":   {"FCI Proprietary Template", FormatConstructed},
	"BF0C": {"FCI Issuer Discretionary Data", FormatConstructed},
	"9F01": {"Acquirer Identifier", FormatNumeric},
	"9F02": {"Amount, Authorised (Numeric)", FormatNumeric},
	"9F03": {"Amount, Other (Numeric)", FormatNumeric},
	"9F04": {"Amount, Other (Binary)", FormatBinary},
	"9F05": {"Application Discretionary Data", FormatBinary},
	"9F06": {"Application Identifier (terminal)", FormatBinary},
	"9F07": {"Application Usage Control", FormatBinary},
	"9F08": {"Application Version Number (card)", FormatBinary},
	"9F09": {"Application Version Number (terminal)", FormatBinary},
	"9F0D": {"Issuer Action Code - Default", FormatBinary},
	"9F0E": {"Issuer Action Code - Denial", FormatBinary},
	"9F0F": {"Issuer Action Code - Online", FormatBinary},
	"9F10": {"Issuer Application Data", FormatBinary},
	"9F11": {"Issuer Code Table Index", FormatNumeric},
	"9F12": {"Application Preferred Name", FormatAlphaNumericSpecial},
	"9F13": {"Last Online ATC Register", FormatBinary},
	"9F14": {"Lower Consecutive Offline Limit", FormatBinary},
	"9F15": {"Merchant Category Code", FormatNumeric},
	"9F16": {"Merchant Identifier", FormatAlphaNumericSpecial},
	"9F17": {"PIN Try Counter", FormatBinary},
	"9F18": {"Issuer Script Identifier", FormatBinary},
	"9F1A": {"Terminal Country Code", FormatNumeric},
	"9F1B": {"Terminal Floor Limit", FormatBinary},
	"9F1C": {"Terminal Identification", FormatAlphaNumeric},
	"9F1D": {"Terminal Risk Management Data", FormatBinary},
	"9F1E": {"Interface Device Serial Number", FormatAlphaNumeric},
	"9F1F": {"Track 1 Discretionary Data", FormatAlphaNumericSpecial},
	"9F20": {"Track 2 Discretionary Data", FormatCompressedNumeric},
	"9F21": {"Transaction Time", FormatNumeric},
	"9F22": {"Certification Authority Public Key Index (terminal)", FormatBinary},
	"9F23": {"Upper Consecutive Offline Limit", FormatBinary},
	"9F26": {"Application Cryptogram", FormatBinary},
	"9F27": {"Cryptogram Information Data", FormatBinary},
	"9F32": {"Issuer Public Key Exponent", FormatBinary},
	"9F33": {"Terminal Capabilities", FormatBinary},
	"9F34": {"Cardholder Verification Method Results", FormatBinary},
	"9F35": {"Terminal Type", FormatNumeric},
	"9F36": {"Application Transaction Counter", FormatBinary},
	"9F37": {"Unpredictable Number", FormatBinary},
	"9F38": {"PDOL", FormatBinary},
	"9F39": {"Point-of-Service Entry Mode", FormatNumeric},
	"9F3A": {"Amount, Reference Currency", FormatBinary},
	"9F3B": {"Application Reference Currency", FormatNumeric},
	"9F3C": {"Transaction Reference Currency Code", FormatNumeric},
	"9F3D": {"Transaction Reference Currency Exponent", FormatNumeric},
	"9F40": {"Additional Terminal Capabilities", FormatBinary},
	"9F41": {"Transaction Sequence Counter", FormatNumeric},
	"9F42": {"Application Currency Code", FormatNumeric},
	"9F43": {"Application Reference Currency Exponent", FormatNumeric},
	"9F44": {"Application Currency Exponent", FormatNumeric},
	"9F45": {"Data Authentication Code", FormatBinary},
	"9F46": {"ICC Public Key Certificate", FormatBinary},
	"9F47": {"ICC Public Key Exponent", FormatBinary},
	"9F48": {"ICC Public Key Remainder", FormatBinary},
	"9F49": {"DDOL", FormatBinary},
	"9F4A": {"Static Data Authentication Tag List", FormatBinary},
	"9F4B": {"Signed Dynamic Application Data", FormatBinary},
	"9F4C": {"ICC Dynamic Number", FormatBinary},
	"9F4D": {"Log Entry", FormatBinary},
	"9F4E": {"Merchant Name and Location", FormatAlphaNumericSpecial},
	"9F4F": {"Log Format", FormatBinary},
	"9F53": {"Transaction Category Code", FormatAlphaNumeric},
	"9F5B": {"Issuer Script Results", FormatBinary},
	"9F6E": {"Third Party Data", FormatBinary},
	"9F7C": {"Customer Exclusive Data", FormatProprietary},
}

// Lookup returns the registry entry for a hex tag code. Case is ignored.
func Lookup(tag string) (Tag, bool) {
	t, ok := registry[strings.ToUpper(strings.TrimSpace(tag))]
	return t, ok
}

// FormatOf returns the declared format of a hex tag code.
func FormatOf(tag string) (Format, bool) {
	t, ok := Lookup(tag)
	if !ok {
		return FormatUnknown, false
	}
	return t.Format, true
}

// EncodeText converts a character value to its wire form for the tag:
// numeric formats become BCD (left padded with 0), compressed numeric
// becomes BCD right padded with F, everything else is taken as ASCII.
func EncodeText(tag, text string) []byte {
	format, _ := FormatOf(tag)
	switch format {
	case FormatNumeric:
		if len(text)%2 != 0 {
			text = "0" + text
		}
		return packDigits(text)
	case FormatCompressedNumeric:
		if len(text)%2 != 0 {
			text += "F"
		}
		return packDigits(text)
	case FormatBinary, FormatConstructed, FormatProprietary:
		return packDigits(text)
	default:
		return []byte(text)
	}
}

// DecodeValue converts a wire value back to text for character formats.
// The boolean result is true when the value should be kept as raw bytes.
func DecodeValue(tag string, value []byte) (string, bool) {
	format, ok := FormatOf(tag)
	if !ok {
		return "", true
	}
	switch format {
	case FormatNumeric:
		return strings.ToUpper(hex.EncodeToString(value)), false
	case FormatCompressedNumeric:
		return strings.TrimRight(strings.ToUpper(hex.EncodeToString(value)), "F"), false
	case FormatAlpha, FormatAlphaNumeric, FormatAlphaNumericSpecial:
		return string(value), false
	default:
		return "", true
	}
}

// packDigits packs pairs of hex digits; anything else becomes nibble F.
func packDigits(s string) []byte {
	out := make([]byte, (len(s)+1)/2)
	for i := range out {
		hi := nibble(s[2*i])
		lo := byte(0x0f)
		if 2*i+1 < len(s) {
			lo = nibble(s[2*i+1])
		}
		out[i] = hi<<4 | lo
	}
	return out
}

func nibble(c byte) byte {
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
