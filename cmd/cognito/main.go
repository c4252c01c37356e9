// Package main provides the cognito CLI.
//
//	cognito train     train on dataset.txt and save cognito_model.ckpt
//	cognito interact  load the trained model and chat; type "quit" to exit
//	cognito version   print the version
//
// Settings come from COGNITO_* environment variables; see internal/app.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cognito-lm/cognito/internal/app"
)

const version = "v0.1.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) != 1 {
		usage()
		return 2
	}

	cfg, err := app.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cognito: %v\n", err)
		return 2
	}
	logger := app.NewLogger(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "train":
		err = app.Train(ctx, cfg, logger)
	case "interact":
		err = app.Interact(ctx, cfg, os.Stdin, os.Stdout, logger)
	case "version":
		fmt.Printf("cognito %s\n", version)
		return 0
	default:
		usage()
		return 2
	}

	if errors.Is(err, context.Canceled) {
		logger.Info("interrupted")
		return 130
	}
	if err != nil {
		logger.Error("command failed", "command", args[0], "error", err)
		return 1
	}
	return 0
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: cognito <train|interact|version>")
}
