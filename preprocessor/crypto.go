// Package preprocessor finishes built messages cryptographically before
// they are sent: PIN block encryption, ARQC generation and MAC.
package preprocessor

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mkadit/isoperf/builder"
	"github.com/mkadit/isoperf/emv"
	"github.com/mkadit/isoperf/internal/logger"
	"github.com/mkadit/isoperf/iso8583"
	"github.com/mkadit/isoperf/security"
)

var (
	ErrInvalidKey     = errors.New("invalid key")
	ErrMissingField   = errors.New("missing field")
	ErrInvalidMACSlot = errors.New("invalid MAC field")
)

// Target is the message under construction. *builder.MessageBuilder
// implements it; results are written back through Extend so they follow
// the same binary detection as the configured field definitions.
type Target interface {
	Message() *iso8583.Message
	Extend(fields []builder.FieldSpec) (*iso8583.Message, error)
}

// Crypto runs the PIN, ARQC and MAC stages in that order. One instance
// belongs to one sampler; it is not safe for concurrent Apply calls.
type Crypto struct {
	provider security.Provider
	keys     *security.KeyCache
	log      *logger.Logger
}

// Option configures a Crypto.
type Option func(*Crypto)

// WithLogger sets the logger for stage outcomes. A nil logger is ignored.
func WithLogger(l *logger.Logger) Option {
	return func(c *Crypto) {
		if l != nil {
			c.log = l
		}
	}
}

// New returns a Crypto backed by provider with its own key cache.
func New(provider security.Provider, opts ...Option) *Crypto {
	c := &Crypto{
		provider: provider,
		keys:     security.NewKeyCache(provider),
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Apply runs all stages against target. Stage failures are recorded in the
// result and logged; a failing stage never stops the stages after it.
func (c *Crypto) Apply(target Target, cfg Config) Result {
	var res Result
	res.PIN = c.run(StagePIN, func() (string, error) { return c.applyPIN(target, cfg) })
	res.ARQC = c.run(StageARQC, func() (string, error) { return c.applyARQC(target, cfg) })
	// MAC last: it covers the PIN block and the cryptogram
	res.MAC = c.run(StageMAC, func() (string, error) { return c.applyMAC(target, cfg) })
	return res
}

// errSkipped marks a stage whose preconditions are not met.
var errSkipped = errors.New("skipped")

func (c *Crypto) run(stage Stage, fn func() (string, error)) StageResult {
	field, err := fn()
	res := StageResult{Stage: stage, Field: field}
	switch {
	case errors.Is(err, errSkipped):
		res.Status = StatusSkipped
		res.Field = ""
	case err != nil:
		res.Status = StatusFailed
		res.Err = err
		var pe *iso8583.ProviderError
		if errors.As(err, &pe) {
			c.log.Error().EmbedObject(res).Msg("crypto stage failed")
		} else {
			c.log.Warn().EmbedObject(res).Msg("crypto stage skipped")
		}
	default:
		res.Status = StatusSucceeded
		c.log.Debug().EmbedObject(res).Msg("crypto stage done")
	}
	return res
}

func configError(stage Stage, format string, args ...any) error {
	return &iso8583.ConfigurationError{Op: string(stage), Err: fmt.Errorf(format, args...)}
}

// decodeKey decodes a hex key whose length in hex digits is one of allowed.
func decodeKey(stage Stage, name, value string, allowed ...int) ([]byte, error) {
	value = strings.TrimSpace(value)
	ok := false
	for _, n := range allowed {
		ok = ok || len(value) == n
	}
	if !ok {
		return nil, configError(stage, "%w: %s has %d hex digits, want one of %v", ErrInvalidKey, name, len(value), allowed)
	}
	raw, err := hex.DecodeString(value)
	if err != nil {
		return nil, configError(stage, "%w: %s: %v", ErrInvalidKey, name, err)
	}
	return raw, nil
}

// doubleLengthBDK reduces a triple length K1K2K1 key to K1K2. DUKPT
// derivation is only defined for double length base keys.
func doubleLengthBDK(raw []byte) ([]byte, error) {
	if len(raw) != 24 {
		return raw, nil
	}
	if !bytes.Equal(raw[16:], raw[:8]) {
		return nil, configError(StagePIN, "%w: BDK must be double length or K1K2K1", ErrInvalidKey)
	}
	return raw[:16], nil
}

func (c *Crypto) applyPIN(target Target, cfg Config) (string, error) {
	if cfg.PINField == "" || cfg.PINKey == "" {
		return "", errSkipped
	}
	msg := target.Message()
	value, ok := msg.Get(cfg.PINField)
	if !ok || value.Length() == 0 {
		return "", errSkipped
	}

	block := value.Bytes()
	if !value.IsBinary() {
		block = iso8583.DecodeHexPermissive(value.String())
	}

	var encrypted []byte
	if cfg.KSNField != "" {
		ksnValue, err := msg.GetString(cfg.KSNField)
		if err != nil || ksnValue == "" {
			return "", configError(StagePIN, "%w: KSN field %s", ErrMissingField, cfg.KSNField)
		}
		raw, err := decodeKey(StagePIN, "BDK", cfg.PINKey, 32, 48)
		if err != nil {
			return "", err
		}
		if raw, err = doubleLengthBDK(raw); err != nil {
			return "", err
		}
		ksn, err := security.ParseKSN(ksnValue, cfg.KSNDescriptor)
		if err != nil {
			return "", &iso8583.ConfigurationError{Op: string(StagePIN), Err: err}
		}
		bdk, err := c.keys.GetOrLoad(security.PurposePIN, security.UsageBDK, raw)
		if err != nil {
			return "", &iso8583.ProviderError{Op: string(StagePIN), Err: err}
		}
		derived, err := c.provider.DeriveKey(bdk, ksn)
		if err != nil {
			return "", &iso8583.ProviderError{Op: string(StagePIN), Err: err}
		}
		if encrypted, err = c.provider.EncryptDerived(derived, block); err != nil {
			return "", &iso8583.ProviderError{Op: string(StagePIN), Err: err}
		}
	} else {
		raw, err := decodeKey(StagePIN, "PIN key", cfg.PINKey, 16, 32, 48)
		if err != nil {
			return "", err
		}
		zpk, err := c.keys.GetOrLoad(security.PurposePIN, security.UsageZPK, raw)
		if err != nil {
			return "", &iso8583.ProviderError{Op: string(StagePIN), Err: err}
		}
		if encrypted, err = c.provider.EncryptData(zpk, block); err != nil {
			return "", &iso8583.ProviderError{Op: string(StagePIN), Err: err}
		}
	}

	if _, err := target.Extend([]builder.FieldSpec{builder.Field(cfg.PINField, iso8583.EncodeHex(encrypted))}); err != nil {
		return "", err
	}
	return cfg.PINField, nil
}

func (c *Crypto) applyARQC(target Target, cfg Config) (string, error) {
	msg := target.Message()
	if cfg.ICCField == "" || cfg.IMKAC == "" || !msg.Has(cfg.ICCField) {
		return "", errSkipped
	}
	imk, err := decodeKey(StageARQC, "IMK-AC", cfg.IMKAC, 32)
	if err != nil {
		return "", err
	}

	tags := c.collectTags(msg, cfg.ICCField)

	iad, err := emv.ParseIAD(tags[emv.TagIssuerAppData])
	if err != nil {
		return "", &iso8583.ParseError{Op: string(StageARQC), Err: err}
	}
	spec, err := iad.CryptogramSpec()
	if err != nil {
		return "", &iso8583.ParseError{Op: string(StageARQC), Err: err}
	}

	pan := strings.TrimRight(strings.ToUpper(tags[emv.TagPAN]), "F")
	if pan == "" {
		pan = cfg.PAN
	}
	psn := tags[emv.TagPANSequenceNumber]
	if psn == "" {
		psn = cfg.PSN
	}
	if pan == "" {
		return "", configError(StageARQC, "%w: no PAN in tag %s or configuration", ErrMissingField, emv.TagPAN)
	}
	spec = spec.ForPAN(pan)

	input := cfg.TxnData
	if input == "" {
		if input, err = spec.Builder.Build(tags, iad); err != nil {
			return "", &iso8583.ParseError{Op: string(StageARQC), Err: err}
		}
	}
	input += cfg.Padding
	data, err := hex.DecodeString(input)
	if err != nil {
		return "", &iso8583.ParseError{Op: string(StageARQC), Err: fmt.Errorf("cryptogram input: %w", err)}
	}

	key, err := c.keys.GetOrLoad(security.PurposeARQC, security.UsageIMKAC, imk)
	if err != nil {
		return "", &iso8583.ProviderError{Op: string(StageARQC), Err: err}
	}
	arqc, err := c.provider.CalculateARQC(security.ARQCRequest{
		MKD:  spec.MKD,
		SKD:  spec.SKD,
		IMK:  key,
		PAN:  pan,
		PSN:  psn,
		ATC:  iso8583.DecodeHexPermissive(tags[emv.TagATC]),
		UN:   iso8583.DecodeHexPermissive(tags[emv.TagUnpredictableNumber]),
		Data: data,
	})
	if err != nil {
		return "", &iso8583.ProviderError{Op: string(StageARQC), Err: err}
	}

	path := cfg.ICCField + "." + strconv.Itoa(msg.MaxSubfield(cfg.ICCField)+1)
	spec9F26 := builder.TaggedField(path, emv.TagApplicationCryptogram, iso8583.EncodeHex(arqc))
	if _, err := target.Extend([]builder.FieldSpec{spec9F26}); err != nil {
		return "", err
	}
	return path, nil
}

// collectTags maps the tags of the subfields under field to their values.
// Binary values are upper-case hex.
func (c *Crypto) collectTags(msg *iso8583.Message, field string) map[string]string {
	tags := make(map[string]string)
	for _, n := range msg.Children(field) {
		path := field + "." + strconv.Itoa(n)
		tag, ok := msg.Tag(path)
		if !ok || tag == "" {
			c.log.Warn().Str("field", path).Msg("untagged ICC subfield ignored")
			continue
		}
		value, err := msg.GetString(path)
		if err != nil {
			continue
		}
		tags[strings.ToUpper(tag)] = value
	}
	return tags
}

// macField picks the configured field, or the next multiple of 64 covering
// the highest populated field.
func macField(msg *iso8583.Message, configured int) int {
	if configured > 0 {
		return configured
	}
	highest := msg.MaxField()
	if highest <= 0 {
		return 64
	}
	return ((highest-1)/64 + 1) * 64
}

func (c *Crypto) applyMAC(target Target, cfg Config) (string, error) {
	if cfg.MACAlgorithm == "" || cfg.MACKey == "" {
		return "", errSkipped
	}
	raw, err := decodeKey(StageMAC, "MAC key", cfg.MACKey, 32, 48)
	if err != nil {
		return "", err
	}

	msg := target.Message()
	packager := msg.Packager()
	if packager == nil {
		return "", configError(StageMAC, "%w", iso8583.ErrNoPackagerConfigured)
	}
	field := macField(msg, cfg.MACField)
	path := strconv.Itoa(field)
	config, ok := packager.GetFieldConfig(field)
	if !ok {
		return "", configError(StageMAC, "%w: field %d is not declared", ErrInvalidMACSlot, field)
	}
	if config.Type != iso8583.FieldTypeB || config.Length != iso8583.LengthFixed {
		return "", configError(StageMAC, "%w: field %d must be fixed length binary", ErrInvalidMACSlot, field)
	}
	length, _ := packager.FieldByteLength(field)

	key, err := c.keys.GetOrLoad(security.PurposeMAC, security.UsageTAK, raw)
	if err != nil {
		return "", &iso8583.ProviderError{Op: string(StageMAC), Err: err}
	}

	if _, err := target.Extend([]builder.FieldSpec{builder.Field(path, strings.Repeat("0", 2*length))}); err != nil {
		return "", err
	}
	packed, err := msg.Pack()
	if err != nil {
		_ = msg.Unset(path)
		return "", &iso8583.ConfigurationError{Op: string(StageMAC), Err: fmt.Errorf("pack: %w", err)}
	}
	end := len(packed) - len(msg.Trailer()) - length
	if end < 0 {
		_ = msg.Unset(path)
		return "", configError(StageMAC, "%w: packed message shorter than MAC", ErrInvalidMACSlot)
	}

	mac, err := c.provider.GenerateMAC(key, cfg.MACAlgorithm, packed[:end])
	if err != nil {
		_ = msg.Unset(path)
		return "", &iso8583.ProviderError{Op: string(StageMAC), Err: err}
	}

	value := iso8583.EncodeHex(mac)
	if len(value) < 2*length {
		value += strings.Repeat("F", 2*length-len(value))
	}
	if _, err := target.Extend([]builder.FieldSpec{builder.Field(path, value[:2*length])}); err != nil {
		_ = msg.Unset(path)
		return "", err
	}
	return path, nil
}
