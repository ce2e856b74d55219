package transport

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkadit/isoperf/iso8583"
)

func startServer(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()
	srv := NewServer(iso8583.DefaultPackager(), opts...)
	require.NoError(t, srv.Listen("127.0.0.1:0"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return srv
}

func newRequest(t *testing.T, stan string) *iso8583.Message {
	t.Helper()
	msg := iso8583.NewMessage(iso8583.WithPackager(iso8583.DefaultPackager()))
	require.NoError(t, msg.SetMTI("0200"))
	require.NoError(t, msg.SetString("11", stan))
	require.NoError(t, msg.SetString("41", "TERM0001"))
	return msg
}

func TestChannel_RoundTrip(t *testing.T) {
	srv := startServer(t)
	ch := NewChannel(srv.Addr().String(), iso8583.DefaultPackager())
	defer ch.Close()

	for _, stan := range []string{"000001", "000002"} {
		resp, err := ch.SendAndReceive(context.Background(), newRequest(t, stan), time.Second)
		require.NoError(t, err)
		assert.Equal(t, "0210", resp.MTI())
		rc, _ := resp.GetString("39")
		assert.Equal(t, "00", rc)
		got, _ := resp.GetString("11")
		assert.Equal(t, stan, got)
	}
}

func TestChannel_ASCIIFraming(t *testing.T) {
	framing := iso8583.LengthIndicatorConfig{Type: iso8583.LengthIndicatorASCII, Length: 4}
	srv := startServer(t, WithServerFraming(framing), WithHandler(EchoHandler("05")))
	ch := NewChannel(srv.Addr().String(), iso8583.DefaultPackager(), WithFraming(framing))
	defer ch.Close()

	resp, err := ch.SendAndReceive(context.Background(), newRequest(t, "000001"), time.Second)
	require.NoError(t, err)
	rc, _ := resp.GetString("39")
	assert.Equal(t, "05", rc)
}

func TestChannel_Timeout(t *testing.T) {
	var calls atomic.Int32
	srv := startServer(t, WithHandler(func(req *iso8583.Message) (*iso8583.Message, error) {
		if calls.Add(1) == 1 {
			return nil, nil
		}
		return req.CreateResponse("00")
	}))
	ch := NewChannel(srv.Addr().String(), iso8583.DefaultPackager())
	defer ch.Close()

	start := time.Now()
	_, err := ch.SendAndReceive(context.Background(), newRequest(t, "000001"), 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)

	// the channel reconnects for the next request
	resp, err := ch.SendAndReceive(context.Background(), newRequest(t, "000002"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "0210", resp.MTI())
}

func TestChannel_ContextCancel(t *testing.T) {
	srv := startServer(t, WithHandler(func(*iso8583.Message) (*iso8583.Message, error) { return nil, nil }))
	ch := NewChannel(srv.Addr().String(), iso8583.DefaultPackager())
	defer ch.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := ch.SendAndReceive(ctx, newRequest(t, "000001"), 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChannel_Errors(t *testing.T) {
	srv := startServer(t)
	addr := srv.Addr().String()

	ch := NewChannel(addr, iso8583.DefaultPackager())
	require.NoError(t, ch.Connect(context.Background()))
	require.NoError(t, ch.Close())
	_, err := ch.SendAndReceive(context.Background(), newRequest(t, "000001"), time.Second)
	assert.ErrorIs(t, err, ErrClosed)

	unpackable := iso8583.NewMessage()
	_, err = NewChannel(addr, iso8583.DefaultPackager()).SendAndReceive(context.Background(), unpackable, time.Second)
	assert.ErrorIs(t, err, iso8583.ErrNoPackagerConfigured)

	refused := NewChannel("127.0.0.1:1", iso8583.DefaultPackager(), WithDialTimeout(time.Second))
	_, err = refused.SendAndReceive(context.Background(), newRequest(t, "000001"), time.Second)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTimeout))
}
