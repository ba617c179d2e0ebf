package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/mama165/sdk-go/logs"
	"github.com/omochice/line-chat/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run loads the configuration, serves until a signal or a listener failure
// and stops every session before returning.
func run() error {
	cfg, err := server.LoadConfig()
	if err != nil {
		return err
	}

	port := flag.Int("port", cfg.Port, "TCP port to listen on")
	wsAddr := flag.String("ws", cfg.WebSocketAddr, "WebSocket listen address (e.g. :6001), empty to disable")
	flag.Parse()
	cfg.Port = *port
	cfg.WebSocketAddr = *wsAddr

	if arg := flag.Arg(0); arg != "" {
		p, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", arg, err)
		}
		cfg.Port = p
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	srv := server.New(cfg, log)
	log.Info("Chat server starting", "port", cfg.Port, "websocket", cfg.WebSocketAddr)
	if err := srv.Listen(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return errors.New("server stopped unexpectedly")
	case <-ctx.Done():
		log.Info("Shutdown signal received")
		srv.Stop()
		return <-errCh
	}
}
