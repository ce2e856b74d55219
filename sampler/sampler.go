// Package sampler sends built and cryptographically finished messages and
// judges the responses.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mkadit/isoperf/builder"
	"github.com/mkadit/isoperf/internal/logger"
	"github.com/mkadit/isoperf/iso8583"
	"github.com/mkadit/isoperf/preprocessor"
	"github.com/mkadit/isoperf/security"
	"github.com/mkadit/isoperf/transport"
)

// Config describes one request of a plan.
type Config struct {
	Name   string
	Fields []builder.FieldSpec
	Crypto preprocessor.Config
	// Timeout bounds the wait for a response. Zero waits until the context
	// passed to Sample is done.
	Timeout time.Duration
	// ResponseCodeField is read from the response. A sample succeeds when
	// either this or SuccessResponseCode is empty, or when the two match.
	ResponseCodeField   string
	SuccessResponseCode string
	// Validation runs the packager validator on the finished request.
	Validation iso8583.ValidationLevel
}

// Sampler runs one request at a time: build, preprocess, send, evaluate.
// It owns its builder and crypto pipeline and is not safe for concurrent
// use; a Runner gives every worker its own Sampler.
type Sampler struct {
	cfg       Config
	builder   *builder.MessageBuilder
	crypto    *preprocessor.Crypto
	transport transport.Transport
	log       *logger.Logger
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithLogger sets the logger shared by the builder and crypto stages.
func WithLogger(l *logger.Logger) Option {
	return func(s *Sampler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithBuilder replaces the default builder, e.g. to configure binary tags
// or a header.
func WithBuilder(b *builder.MessageBuilder) Option {
	return func(s *Sampler) {
		if b != nil {
			s.builder = b
		}
	}
}

// New returns a Sampler sending over t. Messages are built for packager
// and finished with keys imported into provider.
func New(t transport.Transport, packager *iso8583.CompiledPackager, provider security.Provider, cfg Config, opts ...Option) *Sampler {
	s := &Sampler{
		cfg:       cfg,
		transport: t,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.builder == nil {
		s.builder = builder.New(packager, builder.WithLogger(s.log))
	}
	s.crypto = preprocessor.New(provider, preprocessor.WithLogger(s.log))
	s.cfg.Fields = append([]builder.FieldSpec(nil), cfg.Fields...)
	return s
}

// Message returns the request as it was last built.
func (s *Sampler) Message() *iso8583.Message {
	return s.builder.Message()
}

// AddField appends a field to the request definition and applies it to the
// current message, so it is present in this and every later sample.
func (s *Sampler) AddField(path, content, tag string) error {
	spec := builder.TaggedField(path, tag, content)
	if _, err := s.builder.Extend([]builder.FieldSpec{spec}); err != nil {
		return err
	}
	s.log.Debug().Stringer("field", spec).Msg("add field")
	s.cfg.Fields = append(s.cfg.Fields, spec)
	return nil
}

// Sample builds the request from the configured fields followed by extra,
// finishes it, sends it and evaluates the response. Failures are reported
// in the returned Result.
func (s *Sampler) Sample(ctx context.Context, extra ...builder.FieldSpec) *Result {
	res := &Result{ID: uuid.New(), Label: s.cfg.Name}

	if err := s.build(extra); err != nil {
		res.Err = err
		return s.done(res)
	}

	res.Crypto = s.crypto.Apply(s.builder, s.cfg.Crypto)
	if err := res.Crypto.Err(); err != nil {
		s.log.Warn().Err(err).Str("id", res.ID.String()).Msg("sending request with failed crypto stages")
	}

	msg := s.builder.Message()
	if s.cfg.Validation != iso8583.ValidationNone {
		msg.SetValidationLevel(s.cfg.Validation)
		if err := msg.Validate(); err != nil {
			res.Err = err
			return s.done(res)
		}
	}

	size, err := s.builder.PackedSize()
	if err != nil {
		res.Err = fmt.Errorf("pack request: %w", err)
		return s.done(res)
	}
	res.SentBytes = size
	res.Request = s.builder.Dump(true)

	res.Start = time.Now()
	resp, err := s.transport.SendAndReceive(ctx, msg, s.cfg.Timeout)
	res.Elapsed = time.Since(res.Start)
	if err != nil {
		res.Timeout = errors.Is(err, transport.ErrTimeout)
		res.Err = err
		return s.done(res)
	}
	defer resp.Release()

	s.evaluate(res, resp)
	return s.done(res)
}

func (s *Sampler) build(extra []builder.FieldSpec) error {
	if _, err := s.builder.Define(s.cfg.Fields); err != nil {
		return err
	}
	if len(extra) == 0 {
		return nil
	}
	_, err := s.builder.Extend(extra)
	return err
}

func (s *Sampler) evaluate(res *Result, resp *iso8583.Message) {
	if s.cfg.ResponseCodeField != "" {
		res.ResponseCode, _ = resp.GetString(s.cfg.ResponseCodeField)
	}
	res.Success = s.cfg.ResponseCodeField == "" ||
		s.cfg.SuccessResponseCode == "" ||
		s.cfg.SuccessResponseCode == res.ResponseCode
	res.Response = resp.DumpString()

	packed, err := resp.Pack()
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to calculate response size")
		return
	}
	res.ReceivedBytes = len(packed)
}

func (s *Sampler) done(res *Result) *Result {
	if res.Err != nil {
		s.log.Error().EmbedObject(res).Msg("sample failed")
		return res
	}
	s.log.Debug().EmbedObject(res).Msg("sample")
	return res
}
