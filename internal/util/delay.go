package util

import (
	"context"
	"log/slog"
	"regexp"
	"time"
)

// Delay is an optional simulated latency applied around writing a response.
// The syntax is "<100ms>" (both sides), "50ms" (before), ">50ms" (after) and
// "10ms<>20ms".
type Delay struct {
	Enabled        bool
	BeforeDuration time.Duration
	AfterDuration  time.Duration
}

func (d *Delay) ApplyBefore(ctx context.Context, remote string) {
	if d.Enabled && d.BeforeDuration > 0 {
		slog.Debug("latency before", "remote", remote, "ms", d.BeforeDuration.Milliseconds())
		sleep(ctx, d.BeforeDuration)
	}
}

func (d *Delay) ApplyAfter(ctx context.Context, remote string) {
	if d.Enabled && d.AfterDuration > 0 {
		slog.Debug("latency after", "remote", remote, "ms", d.AfterDuration.Milliseconds())
		sleep(ctx, d.AfterDuration)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

const (
	aroundPattern = "^<([0-9a-z]*)>$"
	beforePattern = "^([0-9a-z]*)[<]?$"
	afterPattern  = "^[>]([0-9a-z]*)$"
	bothPattern   = "^([0-9a-z]*)[<][>]([0-9a-z]*)$"
)

var (
	aroundRegexp = regexp.MustCompile(aroundPattern)
	beforeRegexp = regexp.MustCompile(beforePattern)
	afterRegexp  = regexp.MustCompile(afterPattern)
	bothRegexp   = regexp.MustCompile(bothPattern)
)

func ParseDelay(delay string) *Delay {
	before := "0ms"
	after := "0ms"
	if delay != "" {
		if aroundMatch := aroundRegexp.FindStringSubmatch(delay); aroundMatch != nil {
			before = aroundMatch[1]
			after = aroundMatch[1]
		} else if bothMatch := bothRegexp.FindStringSubmatch(delay); bothMatch != nil {
			before = bothMatch[1]
			after = bothMatch[2]
		} else if afterMatch := afterRegexp.FindStringSubmatch(delay); afterMatch != nil {
			after = afterMatch[1]
		} else if beforeMatch := beforeRegexp.FindStringSubmatch(delay); beforeMatch != nil {
			before = beforeMatch[1]
		} else {
			before = delay
		}
	}

	disabled := false
	beforeDuration, err := parseDelayPart(before)
	if err != nil {
		disabled = true
		slog.Error("failed to parse duration", "delay", delay, "duration", before)
	}
	afterDuration, err := parseDelayPart(after)
	if err != nil {
		disabled = true
		slog.Error("failed to parse duration", "delay", delay, "duration", after)
	}
	return &Delay{
		Enabled:        !disabled && (beforeDuration > 0 || afterDuration > 0),
		BeforeDuration: beforeDuration,
		AfterDuration:  afterDuration,
	}
}

func parseDelayPart(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
