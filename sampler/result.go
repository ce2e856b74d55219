package sampler

import (
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mkadit/isoperf/preprocessor"
)

// Result is the outcome of one Sample call.
type Result struct {
	ID    uuid.UUID
	Label string

	Start   time.Time
	Elapsed time.Duration

	// Request is the dump of the sent message including a hexdump.
	Request   string
	SentBytes int
	Crypto    preprocessor.Result

	Response      string
	ResponseCode  string
	ReceivedBytes int

	Success bool
	Timeout bool
	Err     error
}

func (r *Result) MarshalZerologObject(e *zerolog.Event) {
	e.Str("id", r.ID.String())
	if r.Label != "" {
		e.Str("label", r.Label)
	}
	e.Bool("success", r.Success).
		Dur("elapsed", r.Elapsed).
		Int("sent_bytes", r.SentBytes).
		Int("received_bytes", r.ReceivedBytes)
	if r.ResponseCode != "" {
		e.Str("response_code", r.ResponseCode)
	}
	if r.Timeout {
		e.Bool("timeout", true)
	}
	if r.Err != nil {
		e.AnErr("error", r.Err)
	}
}

// Summary aggregates the results of a run. It is safe for concurrent use.
type Summary struct {
	mu sync.Mutex

	samples   int
	succeeded int
	timeouts  int
	errors    int
	sent      int64
	received  int64
	total     time.Duration
	minimum   time.Duration
	maximum   time.Duration
	codes     map[string]int
	started   time.Time
	finished  time.Time
}

func NewSummary() *Summary {
	return &Summary{codes: make(map[string]int), started: time.Now()}
}

// Add records one result. Latency only counts samples that got a response.
func (s *Summary) Add(r *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples++
	s.sent += int64(r.SentBytes)
	s.received += int64(r.ReceivedBytes)
	switch {
	case r.Timeout:
		s.timeouts++
	case r.Err != nil:
		s.errors++
	default:
		if r.Success {
			s.succeeded++
		}
		if r.ResponseCode != "" {
			s.codes[r.ResponseCode]++
		}
		s.total += r.Elapsed
		if s.minimum == 0 || r.Elapsed < s.minimum {
			s.minimum = r.Elapsed
		}
		s.maximum = max(s.maximum, r.Elapsed)
	}
}

func (s *Summary) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = time.Now()
}

// Snapshot is a copy of the summary counters.
type Snapshot struct {
	Samples       int
	Succeeded     int
	Failed        int
	Timeouts      int
	Errors        int
	SentBytes     int64
	ReceivedBytes int64
	MinLatency    time.Duration
	MaxLatency    time.Duration
	MeanLatency   time.Duration
	ResponseCodes map[string]int
	Duration      time.Duration
	// Throughput is samples per second over Duration.
	Throughput float64
}

func (s *Summary) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Samples:       s.samples,
		Succeeded:     s.succeeded,
		Failed:        s.samples - s.succeeded,
		Timeouts:      s.timeouts,
		Errors:        s.errors,
		SentBytes:     s.sent,
		ReceivedBytes: s.received,
		MinLatency:    s.minimum,
		MaxLatency:    s.maximum,
		ResponseCodes: maps.Clone(s.codes),
	}
	if answered := s.samples - s.timeouts - s.errors; answered > 0 {
		snap.MeanLatency = s.total / time.Duration(answered)
	}
	end := s.finished
	if end.IsZero() {
		end = time.Now()
	}
	snap.Duration = end.Sub(s.started)
	if secs := snap.Duration.Seconds(); secs > 0 {
		snap.Throughput = float64(s.samples) / secs
	}
	return snap
}

func (s Snapshot) MarshalZerologObject(e *zerolog.Event) {
	codes := zerolog.Dict()
	for code, n := range s.ResponseCodes {
		codes.Int(code, n)
	}
	e.Int("samples", s.Samples).
		Int("succeeded", s.Succeeded).
		Int("failed", s.Failed).
		Int("timeouts", s.Timeouts).
		Int("errors", s.Errors).
		Int64("sent_bytes", s.SentBytes).
		Int64("received_bytes", s.ReceivedBytes).
		Dur("min", s.MinLatency).
		Dur("mean", s.MeanLatency).
		Dur("max", s.MaxLatency).
		Dur("duration", s.Duration).
		Float64("throughput", s.Throughput).
		Dict("response_codes", codes)
}
