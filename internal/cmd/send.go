package cmd

import (
	"bufio"
	"fmt"
	"github.com/urfave/cli/v2"
	"io"
	"log/slog"
	"net"
	"time"
)

func NewSendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "send messages to a running echo service and print the replies",
		ArgsUsage: "MESSAGE...",
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() == 0 {
				return cli.Exit("at least one message is required", 1)
			}
			return sendMessages(ctx.String("address"), ctx.Duration("timeout"), ctx.Args().Slice(), ctx.App.Writer)
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "address",
				Aliases: []string{"a"},
				Value:   "127.0.0.1:7000",
				Usage:   "address of the echo service",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Value:   5 * time.Second,
				Usage:   "how long to wait for each reply",
			},
		},
	}
}

// sendMessages writes each message on one connection and waits for its reply
// before sending the next, so every message arrives in its own read.
func sendMessages(address string, timeout time.Duration, messages []string, out io.Writer) error {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Debug("Error closing connection", slog.Any("error", err))
		}
	}()

	reader := bufio.NewReader(conn)
	for _, msg := range messages {
		if _, err := io.WriteString(conn, msg); err != nil {
			return fmt.Errorf("failed to send %q: %w", msg, err)
		}
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
		reply, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read reply to %q: %w", msg, err)
		}
		if _, err := io.WriteString(out, reply); err != nil {
			return err
		}
	}
	return nil
}
