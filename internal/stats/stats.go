package stats

import (
	"context"
	"github.com/dustin/go-humanize"
	psutil "github.com/shirou/gopsutil/mem"
	"log/slog"
	"time"
)

// Counters is the service side of a report.
type Counters struct {
	Requests         int    `json:"requests"`
	OpenConnections  int    `json:"openConnections"`
	TotalConnections int    `json:"totalConnections"`
	LogWritten       int64  `json:"logWritten"`
	LogDropped       int64  `json:"logDropped"`
	ThresholdPhase   string `json:"thresholdPhase"`
	ThresholdResult  string `json:"thresholdResult,omitempty"`
}

type Report struct {
	Counters
	MemUsed        string  `json:"memUsed,omitempty"`
	MemTotal       string  `json:"memTotal,omitempty"`
	MemUsedPercent float64 `json:"memUsedPercent,omitempty"`
}

type Provider func() Counters

// Collect combines the service counters with host memory usage. Memory
// fields stay empty when the host cannot be inspected.
func Collect(c Counters) Report {
	r := Report{Counters: c}
	memInfo, err := psutil.VirtualMemory()
	if err != nil {
		slog.Debug("failed to read host memory", slog.Any("error", err))
		return r
	}
	r.MemUsed = humanize.IBytes(memInfo.Used)
	r.MemTotal = humanize.IBytes(memInfo.Total)
	r.MemUsedPercent = memInfo.UsedPercent
	return r
}

// Run logs a report every interval until ctx is done.
func Run(ctx context.Context, interval time.Duration, provider Provider) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			Log(Collect(provider()))
		}
	}
}

func Log(r Report) {
	slog.Info("stats",
		"requests", humanize.Comma(int64(r.Requests)),
		"connections", r.OpenConnections,
		"totalConnections", r.TotalConnections,
		"logWritten", r.LogWritten,
		"logDropped", r.LogDropped,
		"threshold", r.ThresholdPhase,
		"memUsed", r.MemUsed,
		"memTotal", r.MemTotal,
	)
}
