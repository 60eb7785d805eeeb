// relay is a development chat server. Every frame a participant sends is
// broadcast to all participants, the sender included, attributed to the
// identity from the "user" query parameter.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/omochice/livechat/internal/chat"
	"github.com/omochice/livechat/internal/logging"
	"github.com/omochice/livechat/internal/transport/ws"
	"github.com/omochice/livechat/pkg/protocol"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("relay", pflag.ContinueOnError)
	addr := flagSet.StringP("addr", "a", ":3001", "address to listen on")
	codecName := flagSet.String("codec", "json", "wire codec (json, cbor, protobuf)")
	respond := flagSet.Bool("respond", false, "answer every message with a response frame")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	logger := logging.Configure("relay", logging.Runtime, os.Stderr)
	defer logging.Close()

	codec, err := protocol.CodecByName(*codecName)
	if err != nil {
		return err
	}

	hubOpts := []chat.HubOption{chat.WithHubLogger(logger)}
	if *respond {
		hubOpts = append(hubOpts, chat.WithResponder())
	}
	srv := ws.NewServer(*addr, chat.NewHub(codec, hubOpts...), codec.Binary(), logger)
	if err := srv.Listen(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr()).Str("codec", codec.Name()).Bool("respond", *respond).Msg("relay listening")
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		logger.Info().Stringer("signal", sig).Msg("shutting down")
		srv.Stop()
	}
	logger.Info().Msg("relay stopped")
	return nil
}
