package iso8583

import (
	"encoding/hex"
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// maskedFields hold cardholder or key material and are never logged verbatim.
var maskedFields = map[int]bool{
	2:  true,
	14: true,
	35: true,
	45: true,
	52: true,
}

// Dump writes an indented XML-like rendering of the message tree to w.
// Binary values are shown as uppercase hex and tagged subfields carry
// their tag.
func (m *Message) Dump(w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sb strings.Builder
	sb.WriteString("<isomsg>\n")
	if len(m.header) > 0 {
		fmt.Fprintf(&sb, "  <header>%s</header>\n", EncodeHex(m.header))
	}
	m.dumpChildren(&sb, 0, 1)
	if len(m.trailer) > 0 {
		fmt.Fprintf(&sb, "  <trailer>%s</trailer>\n", EncodeHex(m.trailer))
	}
	sb.WriteString("</isomsg>\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// DumpString returns the Dump rendering as a string.
func (m *Message) DumpString() string {
	var sb strings.Builder
	_ = m.Dump(&sb)
	return sb.String()
}

func (m *Message) dumpChildren(sb *strings.Builder, idx, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, c := range m.nodes[idx].children {
		n := &m.nodes[c]
		if !n.present() {
			continue
		}

		attrs := `id="` + strconv.Itoa(n.num) + `"`
		if n.tag != "" {
			attrs += ` tag="` + html.EscapeString(n.tag) + `"`
		}

		if len(n.children) > 0 {
			fmt.Fprintf(sb, "%s<isomsg %s>\n", indent, attrs)
			m.dumpChildren(sb, c, depth+1)
			fmt.Fprintf(sb, "%s</isomsg>\n", indent)
			continue
		}

		kind := ""
		if n.value.IsBinary() {
			kind = ` type="binary"`
		}
		fmt.Fprintf(sb, "%s<field %s value=\"%s\"%s/>\n", indent, attrs, html.EscapeString(n.value.String()), kind)
	}
}

// Hexdump renders raw bytes as offset, hex and ASCII columns.
func Hexdump(data []byte) string {
	return hex.Dump(data)
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler. Sensitive
// fields are masked.
func (m *Message) MarshalZerologObject(e *zerolog.Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fields := zerolog.Dict()
	for _, c := range m.nodes[0].children {
		n := &m.nodes[c]
		if !n.present() {
			continue
		}
		if n.num == 0 {
			e.Str("mti", n.value.String())
			continue
		}
		key := strconv.Itoa(n.num)
		switch {
		case len(n.children) > 0:
			fields.Int(key, len(n.children))
		case maskedFields[n.num]:
			fields.Str(key, maskValue(n.value))
		default:
			fields.Str(key, n.value.String())
		}
	}
	e.Dict("fields", fields)
}

// maskValue keeps the first six and last four characters of long character
// values and hides binary values entirely.
func maskValue(f Field) string {
	if f.IsBinary() {
		return strings.Repeat("*", 2*f.Length())
	}
	s := f.String()
	if len(s) <= 10 {
		return strings.Repeat("*", len(s))
	}
	return s[:6] + strings.Repeat("*", len(s)-10) + s[len(s)-4:]
}
