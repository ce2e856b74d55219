// Package config loads the run configuration of isoperf.
//
// Configuration is assembled from several sources. For every field the
// first source that sets it wins:
//  1. Environment variables
//  2. Command-line flags
//  3. YAML or JSON plan file
//  4. Built-in defaults
package config

import (
	"time"

	"github.com/mkadit/isoperf/builder"
	"github.com/mkadit/isoperf/preprocessor"
)

// Config is the top-level run configuration.
//
// Struct tags:
//   - envPrefix, env: environment variable names (caarlos0/env).
//   - yaml, json: plan file keys.
type Config struct {
	// Packager is the path of a JSON packager definition. Empty selects
	// the built-in field table.
	// Env: PACKAGER
	Packager string `env:"PACKAGER" yaml:"packager" json:"packager"`

	Channel Channel             `envPrefix:"CHANNEL_" yaml:"channel" json:"channel"`
	Crypto  preprocessor.Config `envPrefix:"CRYPTO_" yaml:"crypto" json:"crypto"`
	Sampler Sampler             `envPrefix:"SAMPLER_" yaml:"sampler" json:"sampler"`
	Runner  Runner              `envPrefix:"RUNNER_" yaml:"runner" json:"runner"`

	// BinaryTags lists TLV tags outside the EMV registry that carry binary
	// data, separated by commas, semicolons, colons, dots or spaces.
	// Env: BINARY_TAGS
	BinaryTags string `env:"BINARY_TAGS" yaml:"binary_tags" json:"binary_tags"`

	// Fields define the request. Templates supply fields the request does
	// not define itself.
	Fields    []builder.FieldSpec `env:"-" yaml:"fields" json:"fields"`
	Templates []builder.Template  `env:"-" yaml:"templates" json:"templates"`

	// LogLevel is a zerolog level name.
	// Env: LOG_LEVEL
	LogLevel string `env:"LOG_LEVEL" yaml:"log_level" json:"log_level"`

	// FilePath is the plan file, read after environment and flags.
	// Env: CONFIG
	FilePath string `env:"CONFIG" yaml:"-" json:"-"`
}

// Channel describes the connection to the host.
type Channel struct {
	// Address is the host in "host:port" form.
	// Env: CHANNEL_ADDRESS
	Address string `env:"ADDRESS" yaml:"address" json:"address"`

	// Framing overrides the packager length indicator, as "type:length"
	// with type binary, ascii or hex, e.g. "binary:2".
	// Env: CHANNEL_FRAMING
	Framing string `env:"FRAMING" yaml:"framing" json:"framing"`

	// Header and Trailer are hex blobs around every request.
	Header  string `env:"HEADER" yaml:"header" json:"header"`
	Trailer string `env:"TRAILER" yaml:"trailer" json:"trailer"`

	DialTimeout time.Duration `env:"DIAL_TIMEOUT" yaml:"dial_timeout" json:"dial_timeout"`
}

// Sampler holds the response evaluation settings.
type Sampler struct {
	Name string `env:"NAME" yaml:"name" json:"name"`

	// Timeout bounds the wait for each response.
	// Env: SAMPLER_TIMEOUT
	Timeout time.Duration `env:"TIMEOUT" yaml:"timeout" json:"timeout"`

	ResponseCodeField   string `env:"RESPONSE_CODE_FIELD" yaml:"response_code_field" json:"response_code_field"`
	SuccessResponseCode string `env:"SUCCESS_RESPONSE_CODE" yaml:"success_response_code" json:"success_response_code"`

	// Validation is none, basic or strict.
	// Env: SAMPLER_VALIDATION
	Validation string `env:"VALIDATION" yaml:"validation" json:"validation"`
}

// Runner holds the load shape.
type Runner struct {
	Iterations  int `env:"ITERATIONS" yaml:"iterations" json:"iterations"`
	Concurrency int `env:"CONCURRENCY" yaml:"concurrency" json:"concurrency"`

	// STANField is renumbered for every sample when set.
	// Env: RUNNER_STAN_FIELD
	STANField string `env:"STAN_FIELD" yaml:"stan_field" json:"stan_field"`
}

// Defaults returns the values used for anything no source sets.
func Defaults() *Config {
	return &Config{
		Channel: Channel{
			DialTimeout: 5 * time.Second,
		},
		Crypto: preprocessor.Config{
			PINField: "52",
		},
		Sampler: Sampler{
			Timeout:    time.Minute,
			Validation: "none",
		},
		Runner: Runner{
			Iterations:  1,
			Concurrency: 1,
		},
		LogLevel: "info",
	}
}

// Load merges environment, flags, the plan file and defaults, then
// validates the result. flags may be nil.
func Load(flags *Config) (*Config, error) {
	return newConfigBuilder().
		withEnv().
		withFlags(flags).
		withFile().
		withDefaults().
		build()
}

// RequestFields returns the request definition with template fields merged
// in. Request fields win over template fields, earlier templates over
// later ones.
func (cfg *Config) RequestFields() []builder.FieldSpec {
	request := builder.Template{Fields: append([]builder.FieldSpec(nil), cfg.Fields...)}
	for i := range cfg.Templates {
		request.Merge(&cfg.Templates[i])
	}
	return request.Fields
}
