package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/pflag"

	"RelayMessenger/internal/assistant"
	"RelayMessenger/internal/client"
	"RelayMessenger/internal/relayctl"
)

func main() {
	os.Exit(run())
}

func run() int {
	fs := pflag.NewFlagSet("relayctl", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	relayctl.GlobalFlags(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	level := slog.LevelWarn
	if verbose, _ := fs.GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level, TimeFormat: time.Kitchen}))

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	cfg, err := relayctl.LoadConfig(fs, home)
	if err != nil {
		fmt.Fprintln(os.Stderr, "relayctl:", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	token, err := relayctl.LoadToken(cfg.TokenFile)
	if err != nil {
		logger.Warn("ignoring unreadable token file", "path", cfg.TokenFile, "err", err)
	}
	api, err := client.New(cfg.ServerURL, client.WithToken(token))
	if err != nil {
		fmt.Fprintln(os.Stderr, "relayctl:", err)
		return 1
	}

	in := bufio.NewReader(os.Stdin)
	app := &relayctl.App{
		API:       api,
		Listener:  &assistant.ConsoleListener{In: in, Out: os.Stdout, Prompt: "> "},
		Speaker:   assistant.ConsoleSpeaker{Out: os.Stdout},
		TokenFile: cfg.TokenFile,
		In:        in,
		Out:       os.Stdout,
		Logger:    logger,
	}
	if cfg.GeminiAPIKey != "" {
		completer, err := assistant.NewGeminiCompleter(ctx, cfg.GeminiAPIKey, cfg.Model)
		if err != nil {
			fmt.Fprintln(os.Stderr, "relayctl:", err)
			return 1
		}
		app.Completer = completer
	}

	if err := app.Run(ctx, fs.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "relayctl:", err)
		if errors.Is(err, relayctl.ErrUsage) {
			return 2
		}
		return 1
	}
	return 0
}
