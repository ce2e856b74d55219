package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/mkadit/isoperf/internal/logger"
	"github.com/mkadit/isoperf/iso8583"
)

// Handler answers one request. Returning a nil response sends nothing,
// which a client observes as a timeout. The response must be a new message;
// the server releases both after writing.
type Handler func(req *iso8583.Message) (*iso8583.Message, error)

// EchoHandler answers every request with a copy of it, the MTI turned into
// its response class and field 39 set to responseCode.
func EchoHandler(responseCode string) Handler {
	return func(req *iso8583.Message) (*iso8583.Message, error) {
		return req.CreateResponse(responseCode)
	}
}

// Server is a minimal ISO8583 host for local runs and tests.
type Server struct {
	packager *iso8583.CompiledPackager
	framing  iso8583.LengthIndicatorConfig
	handler  Handler
	log      *logger.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithHandler sets the function that answers each request.
func WithHandler(h Handler) ServerOption {
	return func(s *Server) {
		s.handler = h
	}
}

// WithServerFraming overrides the packager's length indicator.
func WithServerFraming(framing iso8583.LengthIndicatorConfig) ServerOption {
	return func(s *Server) {
		s.framing = framing
	}
}

// WithServerLogger sets the logger for connection events.
func WithServerLogger(l *logger.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// NewServer returns a server that approves everything with "00" unless a
// handler is given.
func NewServer(packager *iso8583.CompiledPackager, opts ...ServerOption) *Server {
	s := &Server{
		packager: packager,
		framing:  framingOf(packager),
		handler:  EchoHandler("00"),
		log:      logger.Nop(),
		conns:    make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen binds addr. Use "127.0.0.1:0" for an ephemeral port.
func (s *Server) Listen(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	return nil
}

// Addr is the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx is done or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	if l == nil {
		return errors.New("server is not listening")
	}

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	s.log.Info().Str("addr", l.Addr().String()).Msg("mock host listening")
	for {
		conn, err := l.Accept()
		if err != nil {
			s.wg.Wait()
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.forget(conn)
			s.serveConn(conn)
		}()
	}
}

func (s *Server) forget(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	_ = conn.Close()
}

func (s *Server) serveConn(conn net.Conn) {
	reader := bufio.NewReader(conn)
	for {
		data, err := iso8583.ReadFrame(reader, s.framing)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.Warn().Err(err).Msg("read request")
			}
			return
		}

		req := iso8583.NewMessage(iso8583.WithPackager(s.packager))
		if err := req.Unpack(data); err != nil {
			s.log.Warn().Err(err).Msg("unpack request")
			req.Release()
			continue
		}

		resp, err := s.handler(req)
		req.Release()
		if err != nil {
			s.log.Warn().Err(err).Msg("handler failed")
			continue
		}
		if resp == nil {
			continue
		}

		packed, err := resp.Pack()
		resp.Release()
		if err != nil {
			s.log.Warn().Err(err).Msg("pack response")
			continue
		}
		if err := iso8583.WriteFrame(conn, packed, s.framing); err != nil {
			s.log.Warn().Err(err).Msg("write response")
			return
		}
	}
}

// Close stops accepting and closes open connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for conn := range s.conns {
		_ = conn.Close()
	}
	return err
}
