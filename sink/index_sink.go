package sink

import (
	"context"
	"log/slog"

	"github.com/havaian/gossip/domain/event"
	"github.com/havaian/gossip/repositories"
)

// IndexSink keeps the full-text index in step with the message store.
type IndexSink struct {
	index repositories.IMessageIndex
	log   *slog.Logger
}

func NewIndexSink(index repositories.IMessageIndex, log *slog.Logger) IndexSink {
	return IndexSink{index: index, log: log}
}

func (s IndexSink) Consume(ctx context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.NewMessage:
		return s.index.Index(evt.Message)
	case event.MessageUpdated:
		return s.index.Index(evt.Message)
	case event.MessagesCleared:
		_, err := s.index.DeleteRoom(ctx, evt.Room)
		return err
	default:
		return nil
	}
}
