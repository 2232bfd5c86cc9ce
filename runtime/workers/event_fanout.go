package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/havaian/gossip/contract"
	"github.com/havaian/gossip/domain/event"
	"github.com/havaian/gossip/observability"
)

const defaultSinkTimeout = 500 * time.Millisecond

// EventFanout delivers domain events to the permanent sinks (index, metrics)
// and to every connection subscribed to the event's room.
//
// A single EventFanout drains the bus, so each sink sees events in publication
// order. Delivery is best-effort: a failing or slow sink is logged and skipped,
// it never stops delivery to the others.
type EventFanout struct {
	log         *slog.Logger
	events      <-chan event.DomainEvent
	registry    contract.IRegistry
	sinks       []contract.EventSink
	sinkTimeout time.Duration
}

func NewEventFanout(log *slog.Logger, events <-chan event.DomainEvent, registry contract.IRegistry, sinkTimeout time.Duration) *EventFanout {
	if sinkTimeout <= 0 {
		sinkTimeout = defaultSinkTimeout
	}
	return &EventFanout{log: log, events: events, registry: registry, sinkTimeout: sinkTimeout}
}

func (w *EventFanout) Add(sinks ...contract.EventSink) *EventFanout {
	w.sinks = append(w.sinks, sinks...)
	return w
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.events:
			w.Fanout(ctx, evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fanout")
			return nil
		}
	}
}

// Fanout sends one event to each sink in turn.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	for _, sink := range w.sinks {
		w.deliver(ctx, sink, evt)
	}
	for _, sink := range w.registry.GetSinksForRoom(evt.RoomID()) {
		w.deliver(ctx, sink, evt)
	}
}

func (w *EventFanout) deliver(ctx context.Context, sink contract.EventSink, evt event.DomainEvent) {
	sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
	defer cancel()

	start := time.Now()
	if err := sink.Consume(sinkCtx, evt); err != nil {
		observability.EventsDropped.WithLabelValues("sink_error").Inc()
		w.log.Debug("Sink delivery failed", "event", evt.Name(), "room_id", evt.RoomID(), "error", err)
	}
	observability.SinkLatency.Observe(time.Since(start).Seconds())
}
