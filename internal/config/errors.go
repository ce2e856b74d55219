package config

import "errors"

// Validation errors returned by [Config.validate].
var (
	// ErrInvalidChannelConfig indicates a missing address or a malformed
	// framing, header or trailer.
	ErrInvalidChannelConfig = errors.New("invalid channel configuration")
	// ErrInvalidSamplerConfig indicates a negative timeout or an unknown
	// validation level.
	ErrInvalidSamplerConfig = errors.New("invalid sampler configuration")
	ErrInvalidRunnerConfig  = errors.New("invalid runner configuration")
	// ErrInvalidPlanConfig indicates a request without fields.
	ErrInvalidPlanConfig = errors.New("invalid plan configuration")
)
