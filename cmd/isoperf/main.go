package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mkadit/isoperf/internal/logger"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

const usage = `usage: isoperf <command> [flags]

commands:
  run       send a request plan against a host
  serve     start a mock host answering every request
  kcv       key check value of a DES key
  cvv       card verification value
  pinblock  clear PIN block
  genkey    random DES key with odd parity
  enckey    encrypt a DES key under a key encryption key
  version   print build information
`

type command func(ctx context.Context, log *logger.Logger, args []string, stdout io.Writer) error

var commands = map[string]command{
	"run":      runCmd,
	"serve":    serveCmd,
	"kcv":      kcvCmd,
	"cvv":      cvvCmd,
	"pinblock": pinBlockCmd,
	"genkey":   genKeyCmd,
	"enckey":   encKeyCmd,
	"version": func(_ context.Context, _ *logger.Logger, _ []string, stdout io.Writer) error {
		printBuildInfo(stdout)
		return nil
	},
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.NewLogger("isoperf")
	if err := cmd(ctx, log, os.Args[2:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Error().Err(err).Str("command", os.Args[1]).Msg("command failed")
		stop()
		os.Exit(1)
	}
}

func printBuildInfo(w io.Writer) {
	if buildVersion == "" {
		buildVersion = "N/A"
	}

	if buildDate == "" {
		buildDate = "N/A"
	}

	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Fprintf(w, "Build version: %s\n", buildVersion)
	fmt.Fprintf(w, "Build date: %s\n", buildDate)
	fmt.Fprintf(w, "Build commit: %s\n", buildCommit)
}
