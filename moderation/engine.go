// Package moderation holds the message state machine.
//
// Every write to a room or its messages runs inside that room's critical
// section and re-reads the records it mutates in a single store transaction.
// Events are published only once the transaction committed, so a failed
// operation never emits anything.
package moderation

import (
	"context"
	"log/slog"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/havaian/gossip/auth"
	"github.com/havaian/gossip/contract"
	"github.com/havaian/gossip/domain"
	"github.com/havaian/gossip/domain/event"
	"github.com/havaian/gossip/errors"
	"github.com/havaian/gossip/observability"
	"github.com/havaian/gossip/repositories"
)

const defaultSearchLimit = 20

type Engine struct {
	log              *slog.Logger
	store            *repositories.Store
	messages         repositories.IMessageRepository
	rooms            repositories.IRoomRepository
	publisher        contract.Publisher
	index            repositories.IMessageIndex
	censor           *Censor
	detectLanguage   bool
	maxContentLength int
	locks            *roomLocks
	now              func() time.Time
}

func NewEngine(
	log *slog.Logger,
	store *repositories.Store,
	messages repositories.IMessageRepository,
	rooms repositories.IRoomRepository,
	publisher contract.Publisher,
	maxContentLength int,
) *Engine {
	return &Engine{
		log:              log,
		store:            store,
		messages:         messages,
		rooms:            rooms,
		publisher:        publisher,
		maxContentLength: maxContentLength,
		locks:            newRoomLocks(),
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// WithCensor masks forbidden words of every submission.
func (e *Engine) WithCensor(censor *Censor) *Engine {
	e.censor = censor
	return e
}

// WithLanguageDetection tags submissions with their ISO 639-1 language.
func (e *Engine) WithLanguageDetection() *Engine {
	e.detectLanguage = true
	return e
}

func (e *Engine) WithIndex(index repositories.IMessageIndex) *Engine {
	e.index = index
	return e
}

// Submit stores an anonymous message as pending and bumps the room counter.
// Both writes share one transaction under the room lock, so the counter always
// matches the stored messages and a room closed in between never receives the message.
func (e *Engine) Submit(roomID, content, originAddress string) (domain.Message, error) {
	room, err := e.rooms.Get(roomID)
	if err != nil {
		return domain.Message{}, err
	}
	if err = room.CheckSubmission(); err != nil {
		return domain.Message{}, err
	}
	if err = auth.ValidateContent(content, e.maxContentLength); err != nil {
		return domain.Message{}, err
	}

	message := domain.NewMessage(roomID, content, originAddress, e.now())
	if e.censor != nil {
		message.Content, _ = e.censor.Censor(message.Content)
	}
	if e.detectLanguage {
		if info := whatlanggo.Detect(message.Content); info.IsReliable() {
			message.Language = info.Lang.Iso6391()
		}
	}

	unlock := e.locks.lock(roomID)
	defer unlock()
	err = e.store.Update(func(tx *repositories.Tx) error {
		room, err := tx.Room(roomID)
		if err != nil {
			return err
		}
		if err = room.CheckSubmission(); err != nil {
			return err
		}
		room.MessageCount++
		if _, err = tx.SaveRoom(room); err != nil {
			return err
		}
		return tx.CreateMessage(message)
	})
	if err != nil {
		return domain.Message{}, err
	}

	observability.MessagesSubmitted.Inc()
	e.log.Debug("Message submitted", "room_id", roomID, "message_id", message.ID)
	e.publisher.Publish(event.NewMessage{Message: message})
	return message, nil
}

// Approve moves a message of the room to approved, whatever its status.
// Approving again stamps the new actor and time.
func (e *Engine) Approve(capability domain.Capability, roomID, messageID string) (domain.Message, error) {
	if err := authorizeModeration(capability, roomID); err != nil {
		return domain.Message{}, err
	}
	unlock := e.locks.lock(roomID)
	defer unlock()

	var approved domain.Message
	err := e.store.Update(func(tx *repositories.Tx) error {
		if _, err := tx.Room(roomID); err != nil {
			return err
		}
		var err error
		approved, err = tx.UpdateMessage(messageID, func(m *domain.Message) error {
			if m.RoomID != roomID {
				return errors.ErrRoomMismatch
			}
			m.Approve(capability.ActorID, e.now())
			return nil
		})
		return err
	})
	if err != nil {
		return domain.Message{}, err
	}

	e.transitioned("approve", roomID, messageID, capability.ActorID)
	e.publisher.Publish(event.MessageUpdated{Message: approved})
	return approved, nil
}

// Reject moves a message of the room to rejected. A displayed message
// stops being displayed and the room no longer points at it, in the same transaction.
func (e *Engine) Reject(capability domain.Capability, roomID, messageID string) (domain.Message, error) {
	if err := authorizeModeration(capability, roomID); err != nil {
		return domain.Message{}, err
	}
	unlock := e.locks.lock(roomID)
	defer unlock()

	var rejected domain.Message
	err := e.store.Update(func(tx *repositories.Tx) error {
		room, err := tx.Room(roomID)
		if err != nil {
			return err
		}
		rejected, err = tx.UpdateMessage(messageID, func(m *domain.Message) error {
			if m.RoomID != roomID {
				return errors.ErrRoomMismatch
			}
			m.Reject(capability.ActorID, e.now())
			return nil
		})
		if err != nil {
			return err
		}
		if room.IsCurrent(messageID) {
			room.CurrentMessageID = nil
			_, err = tx.SaveRoom(room)
		}
		return err
	})
	if err != nil {
		return domain.Message{}, err
	}

	e.transitioned("reject", roomID, messageID, capability.ActorID)
	e.publisher.Publish(event.MessageUpdated{Message: rejected})
	return rejected, nil
}

// Display makes an approved message the current message of its room.
// Clearing the previous message, flagging the new one and pointing the room
// at it commit together, so the room never has two displayed messages.
func (e *Engine) Display(capability domain.Capability, roomID, messageID string) (domain.Message, error) {
	if err := authorizeModeration(capability, roomID); err != nil {
		return domain.Message{}, err
	}
	unlock := e.locks.lock(roomID)
	defer unlock()

	var displayed domain.Message
	err := e.store.Update(func(tx *repositories.Tx) error {
		room, err := tx.Room(roomID)
		if err != nil {
			return err
		}
		message, err := tx.Message(messageID)
		if err != nil {
			return err
		}
		if message.RoomID != roomID {
			return errors.ErrRoomMismatch
		}
		if !message.CanDisplay() {
			return errors.ErrMessageNotApproved
		}

		if room.CurrentMessageID != nil && *room.CurrentMessageID != messageID {
			_, err = tx.UpdateMessage(*room.CurrentMessageID, func(m *domain.Message) error {
				m.IsDisplaying = false
				return nil
			})
			if err != nil && !errors.Is(err, errors.ErrMessageNotFound) {
				return err
			}
		}
		displayed, err = tx.UpdateMessage(messageID, func(m *domain.Message) error {
			m.IsDisplaying = true
			return nil
		})
		if err != nil {
			return err
		}
		room.CurrentMessageID = &messageID
		_, err = tx.SaveRoom(room)
		return err
	})
	if err != nil {
		return domain.Message{}, err
	}

	e.transitioned("display", roomID, messageID, capability.ActorID)
	e.publisher.Publish(event.MessageDisplayed{Message: displayed})
	e.publisher.Publish(event.MessageUpdated{Message: displayed})
	return displayed, nil
}

// ToggleAccepting opens or closes the room to new submissions.
func (e *Engine) ToggleAccepting(capability domain.Capability, roomID string, accepting bool) (domain.Room, error) {
	if err := authorizeModeration(capability, roomID); err != nil {
		return domain.Room{}, err
	}
	unlock := e.locks.lock(roomID)
	defer unlock()

	var room domain.Room
	err := e.store.Update(func(tx *repositories.Tx) error {
		stored, err := tx.Room(roomID)
		if err != nil {
			return err
		}
		stored.AcceptingMessages = accepting
		room, err = tx.SaveRoom(stored)
		return err
	})
	if err != nil {
		return domain.Room{}, err
	}

	e.log.Info("Room submissions toggled", "room_id", roomID, "accepting", accepting, "actor_id", capability.ActorID)
	e.publisher.Publish(event.RoomUpdated{Room: room})
	return room, nil
}

// ClearAll deletes every message of the room and resets its current message.
func (e *Engine) ClearAll(capability domain.Capability, roomID string) (int, error) {
	if err := authorizeModeration(capability, roomID); err != nil {
		return 0, err
	}
	count, err := e.purge(roomID, false)
	if err != nil {
		return 0, err
	}
	e.log.Info("Room messages cleared", "room_id", roomID, "count", count, "actor_id", capability.ActorID)
	return count, nil
}

// DeleteRoom removes the room and cascades to its messages.
func (e *Engine) DeleteRoom(capability domain.Capability, roomID string) error {
	if !capability.IsAdmin() {
		return errors.ErrInsufficientRole
	}
	count, err := e.purge(roomID, true)
	if err != nil {
		return err
	}
	e.log.Info("Room deleted", "room_id", roomID, "messages", count, "actor_id", capability.ActorID)
	return nil
}

// purge first takes the room off screen in one transaction, then batch-deletes
// the messages. Submissions wait on the room lock, so none lands in between.
func (e *Engine) purge(roomID string, deleteRoom bool) (int, error) {
	unlock := e.locks.lock(roomID)
	defer unlock()

	err := e.store.Update(func(tx *repositories.Tx) error {
		room, err := tx.Room(roomID)
		if err != nil {
			return err
		}
		if room.CurrentMessageID == nil {
			return nil
		}
		_, err = tx.UpdateMessage(*room.CurrentMessageID, func(m *domain.Message) error {
			m.IsDisplaying = false
			return nil
		})
		if err != nil && !errors.Is(err, errors.ErrMessageNotFound) {
			return err
		}
		room.CurrentMessageID = nil
		_, err = tx.SaveRoom(room)
		return err
	})
	if err != nil {
		return 0, err
	}
	ids, err := e.messages.DeleteByRoom(roomID)
	if err != nil {
		return 0, err
	}
	if deleteRoom {
		if err = e.rooms.Delete(roomID); err != nil {
			return 0, err
		}
	}

	observability.ModerationTransitions.WithLabelValues("clear").Inc()
	e.publisher.Publish(event.MessagesCleared{Room: roomID})
	return len(ids), nil
}

// Room returns the room to anyone allowed to view it.
func (e *Engine) Room(capability domain.Capability, roomID string) (domain.Room, error) {
	if err := authorizeView(capability, roomID); err != nil {
		return domain.Room{}, err
	}
	return e.rooms.Get(roomID)
}

// CurrentMessage returns the displayed message of the room, or nil when none is.
func (e *Engine) CurrentMessage(capability domain.Capability, roomID string) (*domain.Message, error) {
	room, err := e.Room(capability, roomID)
	if err != nil {
		return nil, err
	}
	if room.CurrentMessageID == nil {
		return nil, nil
	}
	message, err := e.messages.Get(*room.CurrentMessageID)
	if errors.Is(err, errors.ErrMessageNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// ListMessages pages through a room's messages, newest first.
func (e *Engine) ListMessages(capability domain.Capability, query repositories.MessageQuery) ([]domain.Message, *string, error) {
	if err := authorizeModeration(capability, query.RoomID); err != nil {
		return nil, nil, err
	}
	if query.Status != nil && !query.Status.IsValid() {
		return nil, nil, errors.ErrInvalidInput
	}
	if _, err := e.rooms.Get(query.RoomID); err != nil {
		return nil, nil, err
	}
	return e.messages.List(query)
}

// Search finds a room's messages by content, best match first.
// Messages cleared after being indexed are skipped.
func (e *Engine) Search(ctx context.Context, capability domain.Capability, roomID, terms string, limit int) ([]domain.Message, error) {
	if err := authorizeModeration(capability, roomID); err != nil {
		return nil, err
	}
	if e.index == nil {
		return []domain.Message{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	ids, err := e.index.Search(ctx, roomID, terms, limit)
	if err != nil {
		return nil, err
	}
	observability.SearchQueries.Inc()

	messages := make([]domain.Message, 0, len(ids))
	for _, id := range ids {
		message, err := e.messages.Get(id)
		if errors.Is(err, errors.ErrMessageNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if message.RoomID == roomID {
			messages = append(messages, message)
		}
	}
	return messages, nil
}

func (e *Engine) transitioned(operation, roomID, messageID, actorID string) {
	observability.ModerationTransitions.WithLabelValues(operation).Inc()
	e.log.Debug("Message transitioned", "operation", operation, "room_id", roomID, "message_id", messageID, "actor_id", actorID)
}

func authorizeView(capability domain.Capability, roomID string) error {
	if !capability.Active {
		return errors.ErrAccountDisabled
	}
	if !capability.CanView(roomID) {
		return errors.ErrRoomAccessDenied
	}
	return nil
}

func authorizeModeration(capability domain.Capability, roomID string) error {
	if err := authorizeView(capability, roomID); err != nil {
		return err
	}
	if !capability.CanModerate(roomID) {
		return errors.ErrInsufficientRole
	}
	return nil
}
