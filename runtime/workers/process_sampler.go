package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/havaian/gossip/observability"
)

// RealtimeCounter exposes the size of the room registry.
type RealtimeCounter interface {
	RoomCount() int
	ConnectionCount() int
}

// ProcessSampler refreshes the process and realtime gauges on a fixed period.
type ProcessSampler struct {
	log      *slog.Logger
	counter  RealtimeCounter
	interval time.Duration
}

func NewProcessSampler(log *slog.Logger, counter RealtimeCounter, interval time.Duration) *ProcessSampler {
	return &ProcessSampler{log: log, counter: counter, interval: interval}
}

func (w *ProcessSampler) Run(ctx context.Context) error {
	w.log.Info("Starting process sampler")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Sample()
		}
	}
}

func (w *ProcessSampler) Sample() {
	observability.ActiveConnections.Set(float64(w.counter.ConnectionCount()))
	observability.WatchedRooms.Set(float64(w.counter.RoomCount()))

	stats, err := observability.CollectProcessStats()
	if err != nil {
		w.log.Error("Failed to collect self stats", "error", err)
		return
	}
	observability.ProcessRSS.Set(float64(stats.RSSBytes))
	observability.ProcessCPU.Set(stats.CPUPercent)
}
