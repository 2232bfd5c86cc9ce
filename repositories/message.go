//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/havaian/gossip/domain"
	"github.com/havaian/gossip/errors"
	"github.com/samber/lo"
)

type IMessageRepository interface {
	Create(message domain.Message) error
	Get(id string) (domain.Message, error)
	Update(id string, fn func(*domain.Message) error) (domain.Message, error)
	List(query MessageQuery) ([]domain.Message, *string, error)
	DeleteByRoom(roomID string) ([]string, error)
	Count() (int, error)
}

// MessageQuery selects a room's messages newest first.
// Cursor is the value returned by the previous page.
type MessageQuery struct {
	RoomID string
	Status *domain.MessageStatus
	Cursor *string
	Limit  int
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) *MessageRepository {
	return &MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

type DiskMessage struct {
	ID            string     `json:"id"`
	Room          string     `json:"room"`
	Content       string     `json:"content"`
	Language      string     `json:"language,omitempty"`
	Status        string     `json:"status"`
	IsDisplaying  bool       `json:"is_displaying"`
	ApprovedBy    *string    `json:"approved_by,omitempty"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	RejectedBy    *string    `json:"rejected_by,omitempty"`
	RejectedAt    *time.Time `json:"rejected_at,omitempty"`
	OriginAddress string     `json:"origin_address,omitempty"`
	At            time.Time  `json:"at"`
}

// messageKey is formatted as "msg:{room_id}:{timestamp_padded}:{id}" so that a
// prefix scan returns a room's messages in chronological order. The 19-digit
// zero padding keeps lexicographical order equal to numeric order and the id
// breaks ties between messages created in the same nanosecond.
func messageKey(roomID string, at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", roomID, at.UnixNano(), id))
}

func messageRoomPrefix(roomID string) []byte {
	return []byte(fmt.Sprintf("msg:%s:", roomID))
}

// messageIndexKey points from a message id to its primary key.
func messageIndexKey(id string) []byte {
	return []byte("msgid:" + id)
}

func (m *MessageRepository) Create(message domain.Message) error {
	return update(m.db, func(txn *badger.Txn) error {
		return createMessage(txn, message)
	})
}

func (m *MessageRepository) Get(id string) (domain.Message, error) {
	var message domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		message, _, err = getMessage(txn, id)
		return err
	})
	return message, err
}

// Update re-reads the message inside a read-write transaction and applies fn to it.
// Room and creation time are restored after fn since they are part of the key.
func (m *MessageRepository) Update(id string, fn func(*domain.Message) error) (domain.Message, error) {
	var updated domain.Message
	err := update(m.db, func(txn *badger.Txn) error {
		var err error
		updated, err = updateMessage(txn, id, fn)
		return err
	})
	return updated, err
}

func createMessage(txn *badger.Txn, message domain.Message) error {
	key := messageKey(message.RoomID, message.CreatedAt, message.ID)
	if err := setJSON(txn, key, fromMessage(message)); err != nil {
		return err
	}
	return txn.Set(messageIndexKey(message.ID), key)
}

func getMessage(txn *badger.Txn, id string) (domain.Message, []byte, error) {
	key, err := primaryKey(txn, id)
	if err != nil {
		return domain.Message{}, nil, err
	}
	var disk DiskMessage
	if err = getJSON(txn, key, &disk); err != nil {
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return domain.Message{}, nil, errors.ErrMessageNotFound
		}
		return domain.Message{}, nil, err
	}
	return toMessage(disk), key, nil
}

func updateMessage(txn *badger.Txn, id string, fn func(*domain.Message) error) (domain.Message, error) {
	stored, key, err := getMessage(txn, id)
	if err != nil {
		return domain.Message{}, err
	}
	message := stored
	if err = fn(&message); err != nil {
		return domain.Message{}, err
	}
	message.ID, message.RoomID, message.CreatedAt = stored.ID, stored.RoomID, stored.CreatedAt
	return message, setJSON(txn, key, fromMessage(message))
}

func primaryKey(txn *badger.Txn, id string) ([]byte, error) {
	item, err := txn.Get(messageIndexKey(id))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return nil, errors.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// List retrieves messages for a room using a reverse prefix scan, so the newest
// come first. It stops once the limit is reached and returns the cursor of the
// last visited key.
func (m *MessageRepository) List(query MessageQuery) ([]domain.Message, *string, error) {
	limit := query.Limit
	if limit <= 0 && m.limitMessages != nil {
		limit = *m.limitMessages
	}

	var diskMessages []DiskMessage
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messageRoomPrefix(query.RoomID)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch query.Cursor {
		case nil:
			// Past the newest possible timestamp, then walk backwards
			seekKey = append(bytes.Clone(prefix), []byte("9999999999999999999")...)
		default:
			seekKey = append(bytes.Clone(prefix), []byte(*query.Cursor)...)
		}

		it.Seek(seekKey)
		if query.Cursor != nil && it.ValidForPrefix(prefix) && bytes.Equal(it.Item().Key(), seekKey) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(diskMessages) == limit {
				m.log.Debug("Message page limit reached", "room_id", query.RoomID, "limit", limit)
				break
			}
			item := it.Item()
			var disk DiskMessage
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &disk)
			}); err != nil {
				return err
			}
			lastKey = string(item.Key()[len(prefix):])
			if query.Status != nil && disk.Status != string(*query.Status) {
				continue
			}
			diskMessages = append(diskMessages, disk)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	messages := lo.Map(diskMessages, func(item DiskMessage, _ int) domain.Message {
		return toMessage(item)
	})
	if lastKey == "" {
		return messages, nil, nil
	}
	return messages, &lastKey, nil
}

// DeleteByRoom removes every message of a room and returns the deleted ids.
// Keys are collected first, then deleted through a write batch so large rooms
// never hit the transaction size limit.
func (m *MessageRepository) DeleteByRoom(roomID string) ([]string, error) {
	var keys [][]byte
	var ids []string
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messageRoomPrefix(roomID)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			id := string(key[bytes.LastIndexByte(key, ':')+1:])
			keys = append(keys, key, messageIndexKey(id))
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	batch := m.db.NewWriteBatch()
	defer batch.Cancel()
	for _, key := range keys {
		if err = batch.Delete(key); err != nil {
			return nil, err
		}
	}
	if err = batch.Flush(); err != nil {
		return nil, err
	}
	m.log.Debug("Room messages deleted", "room_id", roomID, "count", len(ids))
	return ids, nil
}

func (m *MessageRepository) Count() (int, error) {
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte("msgid:")
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func fromMessage(message domain.Message) DiskMessage {
	return DiskMessage{
		ID:            message.ID,
		Room:          message.RoomID,
		Content:       message.Content,
		Language:      message.Language,
		Status:        string(message.Status),
		IsDisplaying:  message.IsDisplaying,
		ApprovedBy:    message.ApprovedBy,
		ApprovedAt:    message.ApprovedAt,
		RejectedBy:    message.RejectedBy,
		RejectedAt:    message.RejectedAt,
		OriginAddress: message.OriginAddress,
		At:            message.CreatedAt.UTC(),
	}
}

func toMessage(disk DiskMessage) domain.Message {
	return domain.Message{
		ID:            disk.ID,
		RoomID:        disk.Room,
		Content:       disk.Content,
		Language:      disk.Language,
		Status:        domain.MessageStatus(disk.Status),
		IsDisplaying:  disk.IsDisplaying,
		ApprovedBy:    disk.ApprovedBy,
		ApprovedAt:    disk.ApprovedAt,
		RejectedBy:    disk.RejectedBy,
		RejectedAt:    disk.RejectedAt,
		OriginAddress: disk.OriginAddress,
		CreatedAt:     disk.At.UTC(),
	}
}
