package main

import (
	"github.com/ravan/echo-counter/internal/cmd"
	"github.com/urfave/cli/v2"
	"log/slog"

	"os"
)

func main() {
	serve := cmd.NewServeCommand()
	app := &cli.App{
		Name:     "echo",
		Usage:    "TCP echo service with a shared request counter",
		Action:   serve.Action,
		Flags:    []cli.Flag{cmd.ConfigFlag()},
		Commands: []*cli.Command{serve, cmd.NewSendCommand()},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Error running echo", slog.Any("error", err))
		os.Exit(1)
	}
}
