// Package transport moves packed ISO8583 messages over TCP using the
// length-indicator framing of the packager.
package transport

//go:generate mockgen -source=transport.go -destination=../internal/mock/transport_mock.go -package=mock

import (
	"context"
	"errors"
	"time"

	"github.com/mkadit/isoperf/iso8583"
)

var (
	// ErrTimeout is returned when no response arrives within the timeout.
	ErrTimeout = errors.New("timed out waiting for response")
	ErrClosed  = errors.New("channel closed")
)

// Transport sends a request and waits for its response.
type Transport interface {
	SendAndReceive(ctx context.Context, req *iso8583.Message, timeout time.Duration) (*iso8583.Message, error)
}

// DefaultFraming is used when the packager declares no length indicator.
var DefaultFraming = iso8583.LengthIndicatorConfig{Type: iso8583.LengthIndicatorBinary, Length: 2}

func framingOf(p *iso8583.CompiledPackager) iso8583.LengthIndicatorConfig {
	if p == nil || p.LengthIndicator().Type == iso8583.LengthIndicatorNone {
		return DefaultFraming
	}
	return p.LengthIndicator()
}
