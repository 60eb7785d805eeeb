// livechat is a terminal chat client. It keeps a websocket session to a
// chat server alive, reconnecting after a fixed delay, and shows the
// deduplicated transcript in a full-screen view or, with --plain, as
// plain lines on stdout.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/omochice/livechat/internal/client"
	"github.com/omochice/livechat/internal/config"
	"github.com/omochice/livechat/internal/logging"
	"github.com/omochice/livechat/internal/metrics"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("livechat", pflag.ContinueOnError)
	flags := config.BindFlags(flagSet)
	plain := flagSet.Bool("plain", false, "line-oriented mode without the full-screen view")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(flags, os.LookupEnv)
	if err != nil {
		return err
	}

	// The full-screen view owns the terminal, so logs only go to
	// LIVECHAT_LOG_FILE there.
	var fallback io.Writer = io.Discard
	if *plain {
		fallback = os.Stderr
	}
	logger := logging.Configure("livechat", logging.Runtime, fallback)
	defer logging.Close()

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, m, logger)
	}

	opts, err := client.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	opts.Logger = logger
	opts.Metrics = m

	c, err := client.New(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *plain {
		return runPlain(ctx, c, cfg.Identity, os.Stdin, os.Stdout)
	}
	return runTUI(ctx, c, cfg.Identity)
}

func runTUI(ctx context.Context, c *client.Client, identity string) error {
	program := tea.NewProgram(newModel(identity, c.Submit), tea.WithAltScreen(), tea.WithContext(ctx))
	c.Subscribe(&programObserver{program: program})
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Shutdown()

	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func serveMetrics(addr string, m *metrics.Metrics, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	logger.Info().Str("addr", addr).Msg("serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}
