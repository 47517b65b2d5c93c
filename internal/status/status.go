package status

import (
	"context"
	"errors"
	"github.com/gofiber/fiber/v2"
	"github.com/ravan/echo-counter/internal/stats"
	"log/slog"
	"time"
)

const shutdownTimeout = 3 * time.Second

// NewApp exposes /healthz and /stats for the running service.
func NewApp(serviceName string, provider stats.Provider) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
	})
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(stats.Collect(provider()))
	})
	return app
}

// Serve runs app on address until ctx is done.
func Serve(ctx context.Context, app *fiber.App, address string) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Status endpoint listening on", slog.String("address", address))
		errCh <- app.Listen(address)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		err := app.ShutdownWithTimeout(shutdownTimeout)
		if listenErr := <-errCh; listenErr != nil {
			err = errors.Join(err, listenErr)
		}
		return err
	}
}
