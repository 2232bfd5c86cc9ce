package runtime

import (
	"log/slog"

	"github.com/havaian/gossip/domain/event"
	"github.com/havaian/gossip/observability"
)

// Hub owns the event bus between the moderation engine and the fan-out worker.
// Publish never blocks: when the buffer is full the event is dropped and logged.
type Hub struct {
	log    *slog.Logger
	events chan event.DomainEvent
}

func NewHub(log *slog.Logger, bufferSize int) *Hub {
	return &Hub{log: log, events: make(chan event.DomainEvent, bufferSize)}
}

func (h *Hub) Publish(e event.DomainEvent) {
	select {
	case h.events <- e:
		observability.EventsPublished.WithLabelValues(string(e.Name())).Inc()
	default:
		observability.EventsDropped.WithLabelValues("bus_full").Inc()
		h.log.Warn("Event bus full, event dropped", "event", e.Name(), "room_id", e.RoomID())
	}
}

// Events is the receiving side consumed by the fan-out worker.
func (h *Hub) Events() <-chan event.DomainEvent {
	return h.events
}
