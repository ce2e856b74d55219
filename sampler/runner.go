package sampler

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/mkadit/isoperf/builder"
	"github.com/mkadit/isoperf/internal/logger"
)

// Factory creates the Sampler of one worker. Workers are numbered from 0.
type Factory func(worker int) (*Sampler, error)

// Runner repeats a sample with bounded concurrency and aggregates the
// results.
type Runner struct {
	factory     Factory
	iterations  int
	concurrency int
	stanField   string
	onResult    func(*Result)
	log         *logger.Logger
}

// RunnerOption defines a function signature for configuring a Runner.
type RunnerOption func(*Runner)

// WithIterations sets the total number of samples.
func WithIterations(n int) RunnerOption {
	return func(r *Runner) {
		r.iterations = n
	}
}

// WithConcurrency sets the number of workers, each with its own Sampler.
func WithConcurrency(n int) RunnerOption {
	return func(r *Runner) {
		r.concurrency = n
	}
}

// WithSTAN numbers every sample in field, as a six digit trace number that
// wraps from 999999 to 000001.
func WithSTAN(field string) RunnerOption {
	return func(r *Runner) {
		r.stanField = field
	}
}

// WithResultHandler sets a callback invoked for every result. It may be
// called from several goroutines at once.
func WithResultHandler(fn func(*Result)) RunnerOption {
	return func(r *Runner) {
		r.onResult = fn
	}
}

// WithRunnerLogger sets the logger for run progress.
func WithRunnerLogger(l *logger.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRunner returns a Runner taking samplers from factory. Without options
// it runs a single iteration on one worker.
func NewRunner(factory Factory, opts ...RunnerOption) *Runner {
	r := &Runner{
		factory:     factory,
		iterations:  1,
		concurrency: 1,
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.concurrency = max(1, min(r.concurrency, r.iterations))
	return r
}

// Run executes all iterations and returns the summary. A cancelled ctx
// stops starting new samples and is reported together with the partial
// summary. Failed samples are not errors; only a failing Factory is.
func (r *Runner) Run(ctx context.Context) (Snapshot, error) {
	summary := NewSummary()

	samplers := make(chan *Sampler, r.concurrency)
	for w := 0; w < r.concurrency; w++ {
		s, err := r.factory(w)
		if err != nil {
			return summary.Snapshot(), fmt.Errorf("create sampler %d: %w", w, err)
		}
		samplers <- s
	}

	var stan atomic.Uint64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	r.log.Info().Int("iterations", r.iterations).Int("concurrency", r.concurrency).Msg("run started")
	for i := 0; i < r.iterations; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// SetLimit guarantees a free sampler
			s := <-samplers
			defer func() { samplers <- s }()

			var extra []builder.FieldSpec
			if r.stanField != "" {
				extra = append(extra, builder.Field(r.stanField, nextSTAN(&stan)))
			}
			res := s.Sample(gctx, extra...)
			summary.Add(res)
			if r.onResult != nil {
				r.onResult(res)
			}
			return nil
		})
	}
	_ = g.Wait()
	summary.finish()

	snap := summary.Snapshot()
	r.log.Info().EmbedObject(snap).Msg("run finished")
	return snap, ctx.Err()
}

func nextSTAN(counter *atomic.Uint64) string {
	n := (counter.Add(1)-1)%999999 + 1
	return fmt.Sprintf("%06d", n)
}
