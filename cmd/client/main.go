package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/omochice/line-chat/internal/client"
)

// errNotConnected means the connection failure was already printed.
var errNotConnected = errors.New("not connected")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	stop()
	if err != nil && !errors.Is(err, errNotConnected) {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if err != nil {
		return 1
	}
	return 0
}

// run connects to host and port given as positional arguments, falling back
// to the environment, and relays stdin until the server hangs up.
func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	cfg, err := client.LoadConfig()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	colored := fs.Bool("color", cfg.Color, "highlight server announcements")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.Color = *colored

	if host := fs.Arg(0); host != "" {
		cfg.Host = host
	}
	if arg := fs.Arg(1); arg != "" {
		port, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", arg, err)
		}
		cfg.Port = port
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	conn, err := client.Dial(ctx, cfg)
	if err != nil {
		msg := "Connection error: " + err.Error()
		if cfg.Color {
			msg = color.Red.Sprint(msg)
		}
		fmt.Fprintln(stdout, msg)
		return errNotConnected
	}
	log.Debug("Connected", "remote", conn.RemoteAddr())

	return client.New(conn, stdin, stdout, log, client.WithColor(cfg.Color)).Run(ctx)
}
