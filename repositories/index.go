//go:generate go run go.uber.org/mock/mockgen -source=index.go -destination=../mocks/mock_message_index.go -package=mocks
package repositories

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/blugelabs/bluge"
	"github.com/blugelabs/bluge/search"
	"github.com/havaian/gossip/domain"
)

const (
	fieldContent = "content"
	fieldRoom    = "room"
	fieldStatus  = "status"
	fieldID      = "_id"
)

// IMessageIndex is the full-text view of stored messages.
type IMessageIndex interface {
	Index(message domain.Message) error
	DeleteRoom(ctx context.Context, roomID string) (int, error)
	Search(ctx context.Context, roomID, terms string, limit int) ([]string, error)
}

type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

// Index inserts or replaces the document of a message, keyed by its id.
func (m *MessageIndex) Index(message domain.Message) error {
	doc := bluge.NewDocument(message.ID).
		AddField(bluge.NewTextField(fieldContent, message.Content)).
		AddField(bluge.NewKeywordField(fieldRoom, message.RoomID)).
		AddField(bluge.NewKeywordField(fieldStatus, string(message.Status)))
	if err := m.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("index message %s: %w", message.ID, err)
	}
	return nil
}

// DeleteRoom removes every document of a room and returns how many were removed.
func (m *MessageIndex) DeleteRoom(ctx context.Context, roomID string) (int, error) {
	ids, err := m.collect(ctx, bluge.NewAllMatches(roomQuery(roomID)))
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	batch := bluge.NewBatch()
	for _, id := range ids {
		batch.Delete(bluge.Identifier(id))
	}
	if err = m.writer.Batch(batch); err != nil {
		return 0, fmt.Errorf("purge room %s: %w", roomID, err)
	}
	m.log.Debug("Purged room from index", "room_id", roomID, "count", len(ids))
	return len(ids), nil
}

// Search returns the ids of a room's messages matching terms, best match first.
func (m *MessageIndex) Search(ctx context.Context, roomID, terms string, limit int) ([]string, error) {
	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField(fieldContent)).
		AddMust(roomQuery(roomID))
	return m.collect(ctx, bluge.NewTopNSearch(limit, query))
}

func roomQuery(roomID string) bluge.Query {
	return bluge.NewTermQuery(roomID).SetField(fieldRoom)
}

func (m *MessageIndex) collect(ctx context.Context, request bluge.SearchRequest) ([]string, error) {
	reader, err := m.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("open index reader: %w", err)
	}
	defer func() { _ = reader.Close() }()

	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	var ids []string
	var match *search.DocumentMatch
	for match, err = iterator.Next(); err == nil && match != nil; match, err = iterator.Next() {
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			if field == fieldID {
				ids = append(ids, string(value))
				return false
			}
			return true
		})
		if visitErr != nil {
			return nil, visitErr
		}
	}
	if err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return ids, nil
}
