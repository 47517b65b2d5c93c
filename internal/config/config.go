package config

import (
	"fmt"
	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"
)

type Configuration struct {
	ServiceName   string     `mapstructure:"serviceName" validate:"required"`
	LogLevel      string     `mapstructure:"logLevel" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Address       string     `mapstructure:"address" validate:"required"`
	Port          int        `mapstructure:"port" validate:"required,min=1,max=65535"`
	ReadBuffer    string     `mapstructure:"readBuffer" validate:"required"`
	ReadTimeout   string     `mapstructure:"readTimeout"`
	Framing       string     `mapstructure:"framing" validate:"oneof=read line"`
	Delay         string     `mapstructure:"delay"`
	Threshold     Threshold  `mapstructure:"threshold"`
	Logging       Logging    `mapstructure:"logging"`
	Mirror        Mirror     `mapstructure:"mirror"`
	Stats         Stats      `mapstructure:"stats"`
	Status        Status     `mapstructure:"status"`
	OpenTelemetry OtelConfig `mapstructure:"otel"`
}

type Threshold struct {
	First  int `mapstructure:"first" validate:"gt=0"`
	Second int `mapstructure:"second" validate:"gtfield=First"`
}

type Logging struct {
	QueueSize    int    `mapstructure:"queueSize" validate:"gt=0"`
	Format       string `mapstructure:"format" validate:"required"`
	DropWhenFull bool   `mapstructure:"dropWhenFull"`
}

type Mirror struct {
	Enabled bool   `mapstructure:"enabled"`
	File    string `mapstructure:"file" validate:"required_if=Enabled true"`
}

type Stats struct {
	Enabled  bool   `mapstructure:"enabled"`
	Interval string `mapstructure:"interval" validate:"required_if=Enabled true"`
}

type Status struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address" validate:"required_if=Enabled true"`
}

// ListenAddress is the host:port the echo listener binds to.
func (c *Configuration) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Address, c.Port)
}

// MaxReadBuffer caps the per-connection read buffer.
const MaxReadBuffer = 1 << 20

// ReadBufferSize parses ReadBuffer, which accepts values like "1024", "1KiB" or "4kB".
func (c *Configuration) ReadBufferSize() (int, error) {
	size, err := humanize.ParseBytes(c.ReadBuffer)
	if err != nil {
		return 0, fmt.Errorf("invalid readBuffer %q: %w", c.ReadBuffer, err)
	}
	if size == 0 {
		return 0, fmt.Errorf("readBuffer must be positive")
	}
	if size > MaxReadBuffer {
		return 0, fmt.Errorf("readBuffer %q exceeds %s", c.ReadBuffer, humanize.IBytes(MaxReadBuffer))
	}
	return int(size), nil
}

func (c *Configuration) ReadTimeoutDuration() (time.Duration, error) {
	return parseOptionalDuration("readTimeout", c.ReadTimeout)
}

func (s Stats) IntervalDuration() (time.Duration, error) {
	return parseOptionalDuration("stats.interval", s.Interval)
}

func parseOptionalDuration(key, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

func GetConfig(configFile string) (*Configuration, error) {
	c := &Configuration{}
	v := viper.New()
	v.SetDefault("serviceName", "echo-counter")
	v.SetDefault("logLevel", "info")
	v.SetDefault("address", "127.0.0.1")
	v.SetDefault("port", 7000)
	v.SetDefault("readBuffer", "1KiB")
	v.SetDefault("readTimeout", "0s")
	v.SetDefault("framing", "read")
	v.SetDefault("delay", "")
	v.SetDefault("threshold.first", 3)
	v.SetDefault("threshold.second", 5)
	v.SetDefault("logging.queueSize", 100)
	v.SetDefault("logging.format", "[LOG] [[ .Text ]]")
	v.SetDefault("logging.dropWhenFull", false)
	v.SetDefault("mirror.enabled", true)
	v.SetDefault("mirror.file", "log.txt")
	v.SetDefault("stats.enabled", false)
	v.SetDefault("stats.interval", "30s")
	v.SetDefault("status.enabled", false)
	v.SetDefault("status.address", "127.0.0.1:7001")
	v.SetDefault("otel.trace.enabled", false)
	v.SetDefault("otel.trace.tracer-name", "echo-counter")
	v.SetDefault("otel.metrics.enabled", false)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if configFile != "" {
		d, f := path.Split(configFile)
		if d == "" {
			d = "."
		}
		v.SetConfigName(f[0 : len(f)-len(filepath.Ext(f))])
		v.AddConfigPath(d)
		err := v.ReadInConfig()
		if err != nil {
			slog.Error("Error when reading config file.", slog.Any("error", err))
		}
	}

	if err := v.Unmarshal(c); err != nil {
		slog.Error("Error unmarshalling config", slog.Any("err", err))
		return nil, err
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	err := validate.Struct(c)
	if err != nil {
		return nil, err
	}
	if _, err := c.ReadBufferSize(); err != nil {
		return nil, err
	}
	if _, err := c.ReadTimeoutDuration(); err != nil {
		return nil, err
	}
	if _, err := c.Stats.IntervalDuration(); err != nil {
		return nil, err
	}
	return c, nil
}
