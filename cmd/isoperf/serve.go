package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/mkadit/isoperf/internal/config"
	"github.com/mkadit/isoperf/internal/logger"
	"github.com/mkadit/isoperf/transport"
)

// serveCmd runs a mock host until the process is interrupted.
func serveCmd(ctx context.Context, log *logger.Logger, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("a", "127.0.0.1:8583", "Listen address host:port")
	rc := fs.String("rc", "00", "Response code set in field 39")
	packagerPath := fs.String("packager", "", "Packager JSON file")
	framingSpec := fs.String("framing", "", "Length indicator as type:length, e.g. binary:2")
	level := fs.String("log-level", "info", "Log level")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := log.SetLevel(*level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	packager, err := loadPackager(*packagerPath)
	if err != nil {
		return err
	}
	cfg := config.Config{Channel: config.Channel{Framing: *framingSpec}}
	framing, hasFraming, err := cfg.Framing()
	if err != nil {
		return err
	}

	opts := []transport.ServerOption{
		transport.WithHandler(transport.EchoHandler(*rc)),
		transport.WithServerLogger(log),
	}
	if hasFraming {
		opts = append(opts, transport.WithServerFraming(framing))
	}
	srv := transport.NewServer(packager, opts...)
	if err := srv.Listen(*addr); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "listening on %s\n", srv.Addr())
	return srv.Serve(ctx)
}
