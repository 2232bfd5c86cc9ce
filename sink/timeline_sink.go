package sink

import (
	"context"
	"sync"
	"time"

	"github.com/havaian/gossip/domain/event"
)

const defaultTimelineSize = 50

// Entry is one message that went on screen.
type Entry struct {
	RoomID      string    `json:"roomId"`
	MessageID   string    `json:"messageId"`
	Content     string    `json:"content"`
	DisplayedAt time.Time `json:"displayedAt"`
}

// Timeline remembers the last messages displayed in each room.
// Clearing a room clears its timeline.
type Timeline struct {
	mu      sync.RWMutex
	size    int
	entries map[string][]Entry
	now     func() time.Time
}

func NewTimeline(size int) *Timeline {
	if size <= 0 {
		size = defaultTimelineSize
	}
	return &Timeline{
		size:    size,
		entries: make(map[string][]Entry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch evt := e.(type) {
	case event.MessageDisplayed:
		entries := append(t.entries[evt.RoomID()], Entry{
			RoomID:      evt.Message.RoomID,
			MessageID:   evt.Message.ID,
			Content:     evt.Message.Content,
			DisplayedAt: t.now(),
		})
		if len(entries) > t.size {
			entries = entries[len(entries)-t.size:]
		}
		t.entries[evt.RoomID()] = entries
	case event.MessagesCleared:
		delete(t.entries, evt.Room)
	}
	return nil
}

// History returns the displayed messages of a room, most recent first.
func (t *Timeline) History(roomID string) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entries := t.entries[roomID]
	out := make([]Entry, len(entries))
	for i, entry := range entries {
		out[len(entries)-1-i] = entry
	}
	return out
}
