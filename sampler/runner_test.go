package sampler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/mkadit/isoperf/internal/mock"
	"github.com/mkadit/isoperf/iso8583"
	"github.com/mkadit/isoperf/security"
	"github.com/mkadit/isoperf/transport"
)

func TestRunner_Loopback(t *testing.T) {
	var mu sync.Mutex
	stans := make(map[string]int)
	srv := startServer(t, func(req *iso8583.Message) (*iso8583.Message, error) {
		stan, _ := req.GetString("11")
		mu.Lock()
		stans[stan]++
		mu.Unlock()
		return req.CreateResponse("00")
	})

	provider := security.NewModule()
	var channels []*transport.Channel
	factory := func(worker int) (*Sampler, error) {
		ch := transport.NewChannel(srv.Addr().String(), iso8583.DefaultPackager())
		channels = append(channels, ch)
		return New(ch, iso8583.DefaultPackager(), provider, Config{
			Fields:              purchase(),
			Timeout:             2 * time.Second,
			ResponseCodeField:   "39",
			SuccessResponseCode: "00",
		}), nil
	}
	t.Cleanup(func() {
		for _, ch := range channels {
			_ = ch.Close()
		}
	})

	var seen atomic.Int32
	r := NewRunner(factory,
		WithIterations(50),
		WithConcurrency(5),
		WithSTAN("11"),
		WithResultHandler(func(*Result) { seen.Add(1) }),
	)
	snap, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, channels, 5)
	assert.Equal(t, int32(50), seen.Load())
	assert.Equal(t, 50, snap.Samples)
	assert.Equal(t, 50, snap.Succeeded)
	assert.Zero(t, snap.Failed)
	assert.Equal(t, map[string]int{"00": 50}, snap.ResponseCodes)
	assert.Positive(t, snap.SentBytes)
	assert.LessOrEqual(t, snap.MinLatency, snap.MeanLatency)
	assert.LessOrEqual(t, snap.MeanLatency, snap.MaxLatency)
	assert.Positive(t, snap.Throughput)

	require.Len(t, stans, 50)
	assert.Equal(t, 1, stans["000001"])
	assert.Equal(t, 1, stans["000050"])
}

func TestRunner_Cancelled(t *testing.T) {
	tr := mock.NewMockTransport(gomock.NewController(t))
	factory := func(int) (*Sampler, error) {
		return New(tr, nil, security.NewModule(), Config{Fields: purchase()}), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	snap, err := NewRunner(factory, WithIterations(10)).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, snap.Samples)
}

func TestRunner_FactoryError(t *testing.T) {
	boom := errors.New("dial failed")
	calls := 0
	factory := func(worker int) (*Sampler, error) {
		calls++
		if worker == 1 {
			return nil, boom
		}
		return New(nil, nil, security.NewModule(), Config{}), nil
	}

	_, err := NewRunner(factory, WithIterations(10), WithConcurrency(3)).Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestRunner_ConcurrencyBounds(t *testing.T) {
	r := NewRunner(nil, WithIterations(3), WithConcurrency(10))
	assert.Equal(t, 3, r.concurrency)

	r = NewRunner(nil, WithConcurrency(-1))
	assert.Equal(t, 1, r.concurrency)
}

func TestNextSTAN(t *testing.T) {
	var counter atomic.Uint64
	assert.Equal(t, "000001", nextSTAN(&counter))
	assert.Equal(t, "000002", nextSTAN(&counter))

	counter.Store(999998)
	assert.Equal(t, "999999", nextSTAN(&counter))
	assert.Equal(t, "000001", nextSTAN(&counter))
}

func TestSummary(t *testing.T) {
	s := NewSummary()
	s.Add(&Result{Success: true, ResponseCode: "00", Elapsed: 10 * time.Millisecond, SentBytes: 100, ReceivedBytes: 102})
	s.Add(&Result{Success: false, ResponseCode: "05", Elapsed: 30 * time.Millisecond, SentBytes: 100, ReceivedBytes: 102})
	s.Add(&Result{Timeout: true, Err: transport.ErrTimeout, Elapsed: time.Second, SentBytes: 100})
	s.Add(&Result{Err: errors.New("refused")})
	s.finish()

	snap := s.Snapshot()
	assert.Equal(t, 4, snap.Samples)
	assert.Equal(t, 1, snap.Succeeded)
	assert.Equal(t, 3, snap.Failed)
	assert.Equal(t, 1, snap.Timeouts)
	assert.Equal(t, 1, snap.Errors)
	assert.Equal(t, int64(300), snap.SentBytes)
	assert.Equal(t, int64(204), snap.ReceivedBytes)
	assert.Equal(t, 10*time.Millisecond, snap.MinLatency)
	assert.Equal(t, 30*time.Millisecond, snap.MaxLatency)
	assert.Equal(t, 20*time.Millisecond, snap.MeanLatency)
	assert.Equal(t, map[string]int{"00": 1, "05": 1}, snap.ResponseCodes)

	snap.ResponseCodes["00"] = 99
	assert.Equal(t, 1, s.Snapshot().ResponseCodes["00"])
}
