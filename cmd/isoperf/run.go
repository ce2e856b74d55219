package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/mkadit/isoperf/builder"
	"github.com/mkadit/isoperf/internal/config"
	"github.com/mkadit/isoperf/internal/logger"
	"github.com/mkadit/isoperf/iso8583"
	"github.com/mkadit/isoperf/sampler"
	"github.com/mkadit/isoperf/security"
	"github.com/mkadit/isoperf/transport"
)

func runCmd(ctx context.Context, log *logger.Logger, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var flags config.Config
	fs.StringVar(&flags.FilePath, "c", "", "Plan file (YAML or JSON)")
	fs.StringVar(&flags.FilePath, "config", "", "Plan file (alias)")
	fs.StringVar(&flags.Channel.Address, "a", "", "Host address host:port")
	fs.StringVar(&flags.Packager, "packager", "", "Packager JSON file")
	fs.IntVar(&flags.Runner.Iterations, "n", 0, "Number of samples")
	fs.IntVar(&flags.Runner.Concurrency, "concurrency", 0, "Concurrent connections")
	fs.DurationVar(&flags.Sampler.Timeout, "timeout", 0, "Response timeout (e.g. 5s)")
	fs.StringVar(&flags.LogLevel, "log-level", "", "Log level")
	mock := fs.String("mock", "", "Answer with a local mock host using this response code")
	dump := fs.Bool("dump", false, "Print every request and response")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *mock != "" && flags.Channel.Address == "" {
		flags.Channel.Address = "127.0.0.1:0"
	}

	cfg, err := config.Load(&flags)
	if err != nil {
		return err
	}
	if err := log.SetLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log.Debug().
		Str("address", cfg.Channel.Address).
		Int("fields", len(cfg.RequestFields())).
		Int("iterations", cfg.Runner.Iterations).
		Msg("received configs")

	packager, err := loadPackager(cfg.Packager)
	if err != nil {
		return err
	}
	framing, hasFraming, _ := cfg.Framing()

	addr := cfg.Channel.Address
	if *mock != "" {
		opts := []transport.ServerOption{
			transport.WithHandler(transport.EchoHandler(*mock)),
			transport.WithServerLogger(log.GetChildLogger()),
		}
		if hasFraming {
			opts = append(opts, transport.WithServerFraming(framing))
		}
		srv, err := startServer(ctx, addr, packager, opts...)
		if err != nil {
			return err
		}
		defer srv.Close()
		addr = srv.Addr().String()
	}

	factory, closeAll, err := newFactory(cfg, log, addr, packager)
	if err != nil {
		return err
	}
	defer closeAll()

	var mu sync.Mutex
	runner := sampler.NewRunner(factory,
		sampler.WithIterations(cfg.Runner.Iterations),
		sampler.WithConcurrency(cfg.Runner.Concurrency),
		sampler.WithSTAN(cfg.Runner.STANField),
		sampler.WithRunnerLogger(log),
		sampler.WithResultHandler(func(res *sampler.Result) {
			if !*dump {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(stdout, "--- %s\n%s", res.ID, res.Request)
			if res.Response != "" {
				fmt.Fprintf(stdout, "%s", res.Response)
			}
		}),
	)

	snap, err := runner.Run(ctx)
	printSummary(stdout, snap)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newFactory(cfg *config.Config, log *logger.Logger, addr string, packager *iso8583.CompiledPackager) (sampler.Factory, func(), error) {
	header, err := cfg.HeaderBytes()
	if err != nil {
		return nil, nil, err
	}
	trailer, err := cfg.TrailerBytes()
	if err != nil {
		return nil, nil, err
	}
	level, err := cfg.ValidationLevel()
	if err != nil {
		return nil, nil, err
	}
	framing, hasFraming, err := cfg.Framing()
	if err != nil {
		return nil, nil, err
	}

	sampleCfg := sampler.Config{
		Name:                cfg.Sampler.Name,
		Fields:              cfg.RequestFields(),
		Crypto:              cfg.Crypto,
		Timeout:             cfg.Sampler.Timeout,
		ResponseCodeField:   cfg.Sampler.ResponseCodeField,
		SuccessResponseCode: cfg.Sampler.SuccessResponseCode,
		Validation:          level,
	}
	provider := security.NewModule()

	var channels []*transport.Channel
	factory := func(worker int) (*sampler.Sampler, error) {
		wlog := &logger.Logger{Logger: log.With().Int("worker", worker).Logger()}

		opts := []transport.ChannelOption{
			transport.WithDialTimeout(cfg.Channel.DialTimeout),
			transport.WithChannelLogger(wlog),
		}
		if hasFraming {
			opts = append(opts, transport.WithFraming(framing))
		}
		ch := transport.NewChannel(addr, packager, opts...)
		channels = append(channels, ch)

		b := builder.New(packager,
			builder.WithBinaryTags(cfg.BinaryTagList()...),
			builder.WithHeader(header),
			builder.WithTrailer(trailer),
			builder.WithLogger(wlog),
		)
		return sampler.New(ch, packager, provider, sampleCfg,
			sampler.WithBuilder(b),
			sampler.WithLogger(wlog),
		), nil
	}
	closeAll := func() {
		for _, ch := range channels {
			_ = ch.Close()
		}
	}
	return factory, closeAll, nil
}

func loadPackager(path string) (*iso8583.CompiledPackager, error) {
	if path == "" {
		return iso8583.DefaultPackager(), nil
	}
	return iso8583.LoadPackagerFromFile(path)
}

func startServer(ctx context.Context, addr string, packager *iso8583.CompiledPackager, opts ...transport.ServerOption) (*transport.Server, error) {
	srv := transport.NewServer(packager, opts...)
	if err := srv.Listen(addr); err != nil {
		return nil, err
	}
	go func() {
		_ = srv.Serve(ctx)
	}()
	return srv, nil
}

func printSummary(w io.Writer, s sampler.Snapshot) {
	fmt.Fprintf(w, "samples:     %d (%d ok, %d failed, %d timeouts, %d errors)\n",
		s.Samples, s.Succeeded, s.Failed, s.Timeouts, s.Errors)
	fmt.Fprintf(w, "latency:     min %s, mean %s, max %s\n", s.MinLatency, s.MeanLatency, s.MaxLatency)
	fmt.Fprintf(w, "bytes:       %d sent, %d received\n", s.SentBytes, s.ReceivedBytes)
	fmt.Fprintf(w, "throughput:  %.1f/s over %s\n", s.Throughput, s.Duration)

	codes := make([]string, 0, len(s.ResponseCodes))
	for code := range s.ResponseCodes {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "rc %-8s %d\n", code, s.ResponseCodes[code])
	}
}
