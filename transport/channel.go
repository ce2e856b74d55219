package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/mkadit/isoperf/internal/logger"
	"github.com/mkadit/isoperf/iso8583"
)

// Channel is a client connection to an ISO8583 host. Requests on one
// channel are serialised: each call writes a frame and reads the next one.
type Channel struct {
	addr        string
	packager    *iso8583.CompiledPackager
	framing     iso8583.LengthIndicatorConfig
	dialTimeout time.Duration
	log         *logger.Logger

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	closed bool
}

var _ Transport = (*Channel)(nil)

// ChannelOption configures a Channel.
type ChannelOption func(*Channel)

// WithFraming overrides the packager's length indicator.
func WithFraming(framing iso8583.LengthIndicatorConfig) ChannelOption {
	return func(c *Channel) {
		c.framing = framing
	}
}

// WithDialTimeout bounds connection setup. Zero leaves it to the context.
func WithDialTimeout(d time.Duration) ChannelOption {
	return func(c *Channel) {
		c.dialTimeout = d
	}
}

// WithChannelLogger sets the logger for connection events.
func WithChannelLogger(l *logger.Logger) ChannelOption {
	return func(c *Channel) {
		if l != nil {
			c.log = l
		}
	}
}

// NewChannel returns an unconnected channel to addr. Responses are unpacked
// with packager.
func NewChannel(addr string, packager *iso8583.CompiledPackager, opts ...ChannelOption) *Channel {
	c := &Channel{
		addr:        addr,
		packager:    packager,
		framing:     framingOf(packager),
		dialTimeout: 5 * time.Second,
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the host unless already connected.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Channel) connectLocked(ctx context.Context) error {
	if c.closed {
		return ErrClosed
	}
	if c.conn != nil {
		return nil
	}
	d := net.Dialer{Timeout: c.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.addr, err)
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.log.Debug().Str("addr", c.addr).Msg("channel connected")
	return nil
}

// disconnectLocked drops the connection after an I/O failure; a late
// response would otherwise be read as the answer to the next request.
func (c *Channel) disconnectLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
		c.reader = nil
	}
}

// SendAndReceive packs req, sends it and waits up to timeout for a
// response. A timeout of zero waits until ctx is done.
func (c *Channel) SendAndReceive(ctx context.Context, req *iso8583.Message, timeout time.Duration) (*iso8583.Message, error) {
	packed, err := req.Pack()
	if err != nil {
		return nil, fmt.Errorf("pack request: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(ctx); err != nil {
		return nil, err
	}
	conn := c.conn

	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		c.disconnectLocked()
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := iso8583.WriteFrame(conn, packed, c.framing); err != nil {
		c.disconnectLocked()
		return nil, c.ioError(ctx, "send", err)
	}
	data, err := iso8583.ReadFrame(c.reader, c.framing)
	if err != nil {
		c.disconnectLocked()
		return nil, c.ioError(ctx, "receive", err)
	}

	resp := iso8583.NewMessage(iso8583.WithPackager(c.packager))
	if err := resp.Unpack(data); err != nil {
		resp.Release()
		return nil, fmt.Errorf("unpack response: %w", err)
	}
	return resp, nil
}

func (c *Channel) ioError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrTimeout
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Close closes the connection; later calls return ErrClosed.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}
