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

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/omochice/line-chat/internal/client"
)

const defaultURL = "ws://127.0.0.1:6001/"

// errNotConnected means the connection failure was already printed.
var errNotConnected = errors.New("not connected")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	stop()
	if err != nil && !errors.Is(err, errNotConnected) {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
	}
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	cfg, err := client.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.WebSocketURL == "" {
		cfg.WebSocketURL = defaultURL
	}

	fs := flag.NewFlagSet("websocket-client", flag.ContinueOnError)
	url := fs.String("server", cfg.WebSocketURL, "WebSocket server address (e.g. ws://localhost:6001/)")
	colored := fs.Bool("color", cfg.Color, "highlight server announcements")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.WebSocketURL = *url
	cfg.Color = *colored

	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	conn, err := client.DialWebSocket(ctx, cfg.WebSocketURL)
	if err != nil {
		msg := "Connection error: " + err.Error()
		if cfg.Color {
			msg = color.Red.Sprint(msg)
		}
		fmt.Fprintln(stdout, msg)
		return errNotConnected
	}
	log.Debug("Connected", "url", cfg.WebSocketURL)

	return client.New(conn, stdin, stdout, log, client.WithColor(cfg.Color)).Run(ctx)
}
