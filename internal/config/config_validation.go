package config

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/mkadit/isoperf/builder"
	"github.com/mkadit/isoperf/iso8583"
)

// validate checks the merged configuration before a run starts.
func (cfg *Config) validate() error {
	if cfg.Channel.Address == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidChannelConfig)
	}
	if _, _, err := cfg.Framing(); err != nil {
		return err
	}
	if _, err := cfg.HeaderBytes(); err != nil {
		return err
	}
	if _, err := cfg.TrailerBytes(); err != nil {
		return err
	}

	if cfg.Sampler.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout %s", ErrInvalidSamplerConfig, cfg.Sampler.Timeout)
	}
	if _, err := cfg.ValidationLevel(); err != nil {
		return err
	}

	if cfg.Runner.Iterations < 1 || cfg.Runner.Concurrency < 1 {
		return fmt.Errorf("%w: iterations and concurrency must be positive", ErrInvalidRunnerConfig)
	}

	if len(cfg.RequestFields()) == 0 {
		return fmt.Errorf("%w: no fields", ErrInvalidPlanConfig)
	}
	return nil
}

// Framing parses Channel.Framing. ok is false when it is empty and the
// packager framing applies.
func (cfg *Config) Framing() (framing iso8583.LengthIndicatorConfig, ok bool, err error) {
	spec := strings.TrimSpace(cfg.Channel.Framing)
	if spec == "" {
		return framing, false, nil
	}
	kind, size, found := strings.Cut(spec, ":")
	if !found {
		return framing, false, fmt.Errorf("%w: framing %q is not type:length", ErrInvalidChannelConfig, spec)
	}
	switch strings.ToLower(kind) {
	case "binary":
		framing.Type = iso8583.LengthIndicatorBinary
	case "ascii":
		framing.Type = iso8583.LengthIndicatorASCII
	case "hex":
		framing.Type = iso8583.LengthIndicatorHex
	default:
		return framing, false, fmt.Errorf("%w: unknown framing type %q", ErrInvalidChannelConfig, kind)
	}
	framing.Length, err = strconv.Atoi(size)
	if err != nil || framing.Length < 1 || framing.Length > 4 {
		return framing, false, fmt.Errorf("%w: framing length %q", ErrInvalidChannelConfig, size)
	}
	return framing, true, nil
}

func (cfg *Config) HeaderBytes() ([]byte, error) {
	return decodeBlob("header", cfg.Channel.Header)
}

func (cfg *Config) TrailerBytes() ([]byte, error) {
	return decodeBlob("trailer", cfg.Channel.Trailer)
}

func decodeBlob(name, value string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidChannelConfig, name, err)
	}
	return b, nil
}

func (cfg *Config) ValidationLevel() (iso8583.ValidationLevel, error) {
	switch strings.ToLower(cfg.Sampler.Validation) {
	case "", "none":
		return iso8583.ValidationNone, nil
	case "basic":
		return iso8583.ValidationBasic, nil
	case "strict":
		return iso8583.ValidationStrict, nil
	}
	return iso8583.ValidationNone, fmt.Errorf("%w: unknown validation %q", ErrInvalidSamplerConfig, cfg.Sampler.Validation)
}

// BinaryTagList splits BinaryTags into tag codes.
func (cfg *Config) BinaryTagList() []string {
	return builder.ParseBinaryTags(cfg.BinaryTags)
}
