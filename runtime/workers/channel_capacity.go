package workers

import (
	"context"
	"log/slog"
	"reflect"
	"time"

	"github.com/havaian/gossip/observability"
)

type NamedChannel struct {
	Name    string
	Channel any
}

// Usage is a sampled fill level of a channel.
type Usage struct {
	Name     string
	Length   int
	Capacity int
}

// Percent is 0 for unbuffered channels.
func (u Usage) Percent() int {
	if u.Capacity == 0 {
		return 0
	}
	return u.Length * 100 / u.Capacity
}

// ChannelCapacityWorker periodically reports the length and capacity of the
// internal channels and warns when one fills above the threshold.
// Reading len and cap of a channel never blocks.
type ChannelCapacityWorker struct {
	log              *slog.Logger
	channels         []NamedChannel
	metricInterval   time.Duration
	thresholdPercent int
}

func NewChannelCapacityWorker(log *slog.Logger, channels []NamedChannel, metricInterval time.Duration, thresholdPercent int) *ChannelCapacityWorker {
	return &ChannelCapacityWorker{
		log:              log,
		channels:         channels,
		metricInterval:   metricInterval,
		thresholdPercent: thresholdPercent,
	}
}

func (w *ChannelCapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping channel capacity sampling")
			return nil
		case <-ticker.C:
			w.Sample()
		}
	}
}

// Sample reads every channel once and updates the gauges.
func (w *ChannelCapacityWorker) Sample() []Usage {
	usages := make([]Usage, 0, len(w.channels))
	for _, nc := range w.channels {
		v := reflect.ValueOf(nc.Channel)
		if v.Kind() != reflect.Chan {
			w.log.Error("Provided object is not a channel", "name", nc.Name)
			continue
		}
		usage := Usage{Name: nc.Name, Length: v.Len(), Capacity: v.Cap()}
		observability.ChannelLength.WithLabelValues(nc.Name).Set(float64(usage.Length))
		observability.ChannelCapacity.WithLabelValues(nc.Name).Set(float64(usage.Capacity))
		if w.thresholdPercent > 0 && usage.Percent() >= w.thresholdPercent {
			w.log.Warn("Channel almost full", "name", nc.Name, "length", usage.Length, "capacity", usage.Capacity)
		}
		usages = append(usages, usage)
	}
	return usages
}
