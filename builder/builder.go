// Package builder turns ordered field definitions into ISO8583 messages.
package builder

import (
	"fmt"
	"strings"

	"github.com/mkadit/isoperf/emv"
	"github.com/mkadit/isoperf/internal/logger"
	"github.com/mkadit/isoperf/iso8583"
)

// MessageBuilder owns one message and applies FieldSpec lists to it.
// Whether textual content is hex for binary data is decided from the
// packager schema and, for TLV subfields, from the tag.
type MessageBuilder struct {
	msg        *iso8583.Message
	probe      *iso8583.SchemaProbe
	binaryTags map[string]struct{}
	log        *logger.Logger
}

// Option configures a MessageBuilder.
type Option func(*MessageBuilder)

// WithBinaryTags adds tags that are treated as binary when the EMV registry
// does not know them.
func WithBinaryTags(tags ...string) Option {
	return func(b *MessageBuilder) {
		for _, t := range tags {
			if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
				b.binaryTags[t] = struct{}{}
			}
		}
	}
}

// WithLogger sets the logger used to trace field writes. A nil logger is ignored.
func WithLogger(l *logger.Logger) Option {
	return func(b *MessageBuilder) {
		if l != nil {
			b.log = l
		}
	}
}

// WithHeader sets the message header, which Define keeps.
func WithHeader(header []byte) Option {
	return func(b *MessageBuilder) {
		b.msg.SetHeader(header)
	}
}

// WithTrailer sets the bytes appended after the packed fields.
func WithTrailer(trailer []byte) Option {
	return func(b *MessageBuilder) {
		b.msg.SetTrailer(trailer)
	}
}

// New returns a builder for messages of packager. A nil packager selects
// iso8583.DefaultPackager.
func New(packager *iso8583.CompiledPackager, opts ...Option) *MessageBuilder {
	if packager == nil {
		packager = iso8583.DefaultPackager()
	}
	b := &MessageBuilder{
		msg:        iso8583.NewMessage(iso8583.WithPackager(packager)),
		probe:      iso8583.NewSchemaProbe(packager),
		binaryTags: make(map[string]struct{}),
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Message returns the message being built.
func (b *MessageBuilder) Message() *iso8583.Message {
	return b.msg
}

// Define replaces all field content with fields. Header, trailer and
// packager are kept.
func (b *MessageBuilder) Define(fields []FieldSpec) (*iso8583.Message, error) {
	if err := b.check(fields); err != nil {
		return b.msg, err
	}
	b.msg.Clear()
	return b.msg, b.apply(fields)
}

// Extend applies fields on top of the current content. Later entries for
// the same path win. Nothing is applied when any entry is invalid.
func (b *MessageBuilder) Extend(fields []FieldSpec) (*iso8583.Message, error) {
	if err := b.check(fields); err != nil {
		return b.msg, err
	}
	return b.msg, b.apply(fields)
}

func (b *MessageBuilder) check(fields []FieldSpec) error {
	for _, f := range fields {
		if _, err := f.check(); err != nil {
			return &iso8583.ConfigurationError{Op: "build message", Err: err}
		}
	}
	return nil
}

func (b *MessageBuilder) apply(fields []FieldSpec) error {
	for _, f := range fields {
		path, tag := f.normalized()
		if path == "" {
			continue
		}
		if err := b.set(path, tag, f.Content); err != nil {
			return &iso8583.ConfigurationError{Op: "build message", Err: fmt.Errorf("field %q: %w", path, err)}
		}
	}
	return nil
}

func (b *MessageBuilder) set(path, tag, content string) error {
	if tag == "" {
		if b.IsBinaryField(path) {
			return b.msg.SetBytes(path, iso8583.DecodeHexPermissive(content))
		}
		return b.msg.SetString(path, content)
	}

	binary := b.IsBinaryField(path) || b.IsBinaryTag(tag)
	b.log.Trace().Str("path", path).Str("tag", tag).Bool("binary", binary).Msg("tagged subfield")
	if binary {
		return b.msg.SetTagged(path, tag, iso8583.DecodeHexPermissive(content), true)
	}
	return b.msg.SetTagged(path, tag, []byte(content), false)
}

// IsBinaryField reports whether the schema declares path as binary.
func (b *MessageBuilder) IsBinaryField(path string) bool {
	return b.probe.IsBinary(path)
}

// IsBinaryTag reports whether a TLV tag carries binary data. The EMV
// registry is consulted first; unknown tags are binary only when they were
// configured with WithBinaryTags.
func (b *MessageBuilder) IsBinaryTag(tag string) bool {
	tag = strings.ToUpper(strings.TrimSpace(tag))
	if format, ok := emv.FormatOf(tag); ok {
		return format.IsBinary()
	}
	_, ok := b.binaryTags[tag]
	return ok
}

// PackedSize is the number of bytes the message packs to.
func (b *MessageBuilder) PackedSize() (int, error) {
	packed, err := b.msg.Pack()
	if err != nil {
		return 0, err
	}
	return len(packed), nil
}

// Dump renders the message tree, followed by a hexdump of the packed bytes
// when hexdump is set.
func (b *MessageBuilder) Dump(hexdump bool) string {
	out := b.msg.DumpString()
	if !hexdump {
		return out
	}
	packed, err := b.msg.Pack()
	if err != nil {
		return out + "pack failed: " + err.Error() + "\n"
	}
	return out + iso8583.Hexdump(packed)
}
