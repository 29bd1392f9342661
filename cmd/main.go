package main

import (
	"context"
	"os"

	"github.com/desertthunder/spotskill/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})
	defer runner.Close()

	app := &cli.Command{
		Name:     "spotskill",
		Usage:    "Control Spotify playback from voice assistant intents",
		Version:  "0.1.0",
		Flags:    rootFlags(),
		Before:   runner.Load,
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		runner.Close()
		logger.Fatalf("application error: %v", err)
	}
}
