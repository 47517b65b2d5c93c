package cmd

import (
	"github.com/ravan/echo-counter/internal/config"
	"github.com/ravan/echo-counter/internal/server"
	"github.com/urfave/cli/v2"
	"os"
)

func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "start the echo service",
		Flags: []cli.Flag{ConfigFlag()},
		Action: func(ctx *cli.Context) error {
			conf, err := getConfig(ctx)
			if err != nil {
				return err
			}
			return server.Run(conf)
		},
	}
}

// ConfigFlag is shared by the app and its commands.
func ConfigFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "configuration file for the echo service",
	}
}

func getConfig(ctx *cli.Context) (*config.Configuration, error) {
	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = ctx.String("config")
	}
	conf, err := config.GetConfig(configFile)
	if err != nil {
		return nil, err
	}
	return conf, nil
}
