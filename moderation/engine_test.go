package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/havaian/gossip/contract"
	"github.com/havaian/gossip/domain"
	"github.com/havaian/gossip/domain/event"
	"github.com/havaian/gossip/errors"
	"github.com/havaian/gossip/repositories"
	"github.com/havaian/gossip/runtime"
	"github.com/havaian/gossip/runtime/workers"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (p *recordingPublisher) Publish(e event.DomainEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) names() []event.Name {
	p.mu.Lock()
	defer p.mu.Unlock()
	return lo.Map(p.events, func(e event.DomainEvent, _ int) event.Name { return e.Name() })
}

type fixture struct {
	engine    *Engine
	messages  *repositories.MessageRepository
	rooms     *repositories.RoomRepository
	publisher *recordingPublisher
	room      domain.Room
}

var (
	moderator = domain.Capability{ActorID: "moderator-1", Role: domain.RoleModerator, Active: true}
	second    = domain.Capability{ActorID: "moderator-2", Role: domain.RoleModerator, Active: true}
	presenter = domain.Capability{ActorID: "presenter-1", Role: domain.RolePresenter, Active: true}
)

func openDB(t *testing.T) *badger.DB {
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newFixture(t *testing.T, publisher contract.Publisher) fixture {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db := openDB(t)
	messages := repositories.NewMessageRepository(db, log, lo.ToPtr(100))
	rooms := repositories.NewRoomRepository(db)

	now := time.Now().UTC()
	room := domain.Room{
		ID:                uuid.NewString(),
		Name:              "Town hall",
		IsActive:          true,
		AcceptingMessages: true,
		CreatorID:         "admin-1",
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, rooms.Create(room))

	recorder, _ := publisher.(*recordingPublisher)
	return fixture{
		engine:    NewEngine(log, repositories.NewStore(db), messages, rooms, publisher, 500),
		messages:  messages,
		rooms:     rooms,
		publisher: recorder,
		room:      room,
	}
}

func (f fixture) otherRoom(t *testing.T) domain.Room {
	room := f.room
	room.ID = uuid.NewString()
	room.Name = "Other room"
	require.NoError(t, f.rooms.Create(room))
	return room
}

func (f fixture) approved(t *testing.T, content string) domain.Message {
	message, err := f.engine.Submit(f.room.ID, content, "127.0.0.1")
	require.NoError(t, err)
	approved, err := f.engine.Approve(moderator, f.room.ID, message.ID)
	require.NoError(t, err)
	return approved
}

func TestEngine_Submit_Success(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, &recordingPublisher{})

	// When an audience member submits a message
	message, err := f.engine.Submit(f.room.ID, "  hello world  ", "10.0.0.1")

	// Then it is stored as pending with trimmed content
	req.NoError(err)
	req.Equal(domain.StatusPending, message.Status)
	req.Equal("hello world", message.Content)
	req.False(message.IsDisplaying)
	stored, err := f.messages.Get(message.ID)
	req.NoError(err)
	req.Equal(f.room.ID, stored.RoomID)

	// And the room counter was incremented
	room, err := f.rooms.Get(f.room.ID)
	req.NoError(err)
	req.EqualValues(1, room.MessageCount)

	// And a new-message event was published
	req.Equal([]event.Name{event.NewMessageName}, f.publisher.names())
}

func TestEngine_Submit_ClosedRoom(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, &recordingPublisher{})

	// Given a room that stopped accepting messages
	_, err := f.engine.ToggleAccepting(moderator, f.room.ID, false)
	req.NoError(err)

	// When a message is submitted
	_, err = f.engine.Submit(f.room.ID, "hello", "")

	// Then it is refused as closed and nothing is stored
	req.ErrorIs(err, errors.ErrRoomClosed)
	req.Equal(errors.KindInvalidState, errors.KindOf(err))
	messages, _, err := f.messages.List(repositories.MessageQuery{RoomID: f.room.ID})
	req.NoError(err)
	req.Empty(messages)
	req.Equal([]event.Name{event.RoomUpdateName}, f.publisher.names())
}

func TestEngine_Submit_InactiveRoom(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, &recordingPublisher{})

	// Given an inactive room that still accepts messages
	_, err := f.rooms.Update(f.room.ID, func(r *domain.Room) error {
		r.IsActive = false
		r.AcceptingMessages = true
		return nil
	})
	req.NoError(err)

	// When a message is submitted
	_, err = f.engine.Submit(f.room.ID, "hello", "")

	// Then the room is reported inactive
	req.ErrorIs(err, errors.ErrRoomInactive)
	req.Equal(errors.KindInvalidState, errors.KindOf(err))
	count, err := f.messages.Count()
	req.NoError(err)
	req.Zero(count)
}

func TestEngine_Submit_Rejections(t *testing.T) {
	f := newFixture(t, &recordingPublisher{})

	tests := []struct {
		name    string
		roomID  string
		content string
		want    error
	}{
		{name: "Unknown room", roomID: uuid.NewString(), content: "hello", want: errors.ErrRoomNotFound},
		{name: "Empty content", roomID: f.room.ID, content: "", want: errors.ErrInvalidContent},
		{name: "Blank content", roomID: f.room.ID, content: "   \n\t", want: errors.ErrInvalidContent},
		{name: "Oversized content", roomID: f.room.ID, content: strings.Repeat("a", 501), want: errors.ErrInvalidContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Submit(tt.roomID, tt.content, "")
			require.ErrorIs(t, err, tt.want)
		})
	}
	require.Empty(t, f.publisher.names())
}

func TestEngine_Approve_IsIdempotent(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, &recordingPublisher{})
	message, err := f.engine.Submit(f.room.ID, "hello", "")
	req.NoError(err)

	// When two moderators approve the same message
	first, err := f.engine.Approve(moderator, f.room.ID, message.ID)
	req.NoError(err)
	time.Sleep(time.Millisecond)
	again, err := f.engine.Approve(second, f.room.ID, message.ID)
	req.NoError(err)

	// Then the second actor and time are recorded
	req.Equal(domain.StatusApproved, again.Status)
	req.Equal(second.ActorID, *again.ApprovedBy)
	req.True(again.ApprovedAt.After(*first.ApprovedAt))
	req.Nil(again.RejectedBy)
	stored, err := f.messages.Get(message.ID)
	req.NoError(err)
	req.Equal(second.ActorID, *stored.ApprovedBy)
}

func TestEngine_Approve_Errors(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, &recordingPublisher{})
	message, err := f.engine.Submit(f.room.ID, "hello", "")
	req.NoError(err)

	// Unknown message
	_, err = f.engine.Approve(moderator, f.room.ID, uuid.NewString())
	req.ErrorIs(err, errors.ErrMessageNotFound)

	// Unknown room, even with a message of another room
	_, err = f.engine.Approve(moderator, uuid.NewString(), message.ID)
	req.ErrorIs(err, errors.ErrRoomNotFound)
	_, err = f.engine.Reject(moderator, uuid.NewString(), message.ID)
	req.ErrorIs(err, errors.ErrRoomNotFound)
	_, err = f.engine.Display(moderator, uuid.NewString(), message.ID)
	req.ErrorIs(err, errors.ErrRoomNotFound)

	// Message of another room
	other := f.otherRoom(t)
	_, err = f.engine.Approve(moderator, other.ID, message.ID)
	req.ErrorIs(err, errors.ErrRoomMismatch)
	req.Equal(errors.KindInvalidInput, errors.KindOf(err))

	// Presenters cannot moderate
	_, err = f.engine.Approve(presenter, f.room.ID, message.ID)
	req.ErrorIs(err, errors.ErrInsufficientRole)

	// Disabled accounts cannot do anything
	_, err = f.engine.Approve(domain.Capability{ActorID: "x", Role: domain.RoleAdmin}, f.room.ID, message.ID)
	req.ErrorIs(err, errors.ErrAccountDisabled)

	// Then nothing but the submission was published
	req.Equal([]event.Name{event.NewMessageName}, f.publisher.names())
	stored, err := f.messages.Get(message.ID)
	req.NoError(err)
	req.Equal(domain.StatusPending, stored.Status)
}

func TestEngine_Display_SwitchesCurrentMessage(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, &recordingPublisher{})
	a := f.approved(t, "message A")
	b := f.approved(t, "message B")

	// When A then B are displayed
	_, err := f.engine.Display(moderator, f.room.ID, a.ID)
	req.NoError(err)
	_, err = f.engine.Display(moderator, f.room.ID, b.ID)
	req.NoError(err)

	// Then only B is displaying and the room points at it
	storedA, err := f.messages.Get(a.ID)
	req.NoError(err)
	req.False(storedA.IsDisplaying)
	storedB, err := f.messages.Get(b.ID)
	req.NoError(err)
	req.True(storedB.IsDisplaying)
	room, err := f.rooms.Get(f.room.ID)
	req.NoError(err)
	req.Equal(b.ID, *room.CurrentMessageID)

	current, err := f.engine.CurrentMessage(presenter, f.room.ID)
	req.NoError(err)
	req.Equal(b.ID, current.ID)
}

func TestEngine_Display_RequiresApproval(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, &recordingPublisher{})
	message, err := f.engine.Submit(f.room.ID, "hello", "")
	req.NoError(err)

	// When a pending message is displayed
	_, err = f.engine.Display(moderator, f.room.ID, message.ID)

	// Then it is refused and the room keeps no current message
	req.ErrorIs(err, errors.ErrMessageNotApproved)
	req.Equal(errors.KindInvalidState, errors.KindOf(err))
	room, err := f.rooms.Get(f.room.ID)
	req.NoError(err)
	req.Nil(room.CurrentMessageID)
	req.Equal([]event.Name{event.NewMessageName}, f.publisher.names())
}

func TestEngine_Reject_ClearsDisplayedMessage(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, &recordingPublisher{})
	message := f.approved(t, "hello")
	_, err := f.engine.Display(moderator, f.room.ID, message.ID)
	req.NoError(err)

	// When the displayed message is rejected
	rejected, err := f.engine.Reject(second, f.room.ID, message.ID)

	// Then it is no longer displayed and the room forgot it
	req.NoError(err)
	req.Equal(domain.StatusRejected, rejected.Status)
	req.False(rejected.IsDisplaying)
	req.Equal(second.ActorID, *rejected.RejectedBy)
	req.Nil(rejected.ApprovedBy)
	req.Nil(rejected.ApprovedAt)
	room, err := f.rooms.Get(f.room.ID)
	req.NoError(err)
	req.Nil(room.CurrentMessageID)

	current, err := f.engine.CurrentMessage(moderator, f.room.ID)
	req.NoError(err)
	req.Nil(current)
}

func TestEngine_ClearAll(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, &recordingPublisher{})
	message := f.approved(t, "first")
	f.approved(t, "second")
	_, err := f.engine.Display(moderator, f.room.ID, message.ID)
	req.NoError(err)

	// When the room is cleared
	count, err := f.engine.ClearAll(moderator, f.room.ID)

	// Then no message is left and nothing is displayed
	req.NoError(err)
	req.Equal(2, count)
	messages, _, err := f.engine.ListMessages(moderator, repositories.MessageQuery{RoomID: f.room.ID})
	req.NoError(err)
	req.Empty(messages)
	current, err := f.engine.CurrentMessage(presenter, f.room.ID)
	req.NoError(err)
	req.Nil(current)

	names := f.publisher.names()
	req.Equal(event.MessagesClearedName, names[len(names)-1])
	last := f.publisher.events[len(f.publisher.events)-1]
	req.Equal(map[string]string{"roomId": f.room.ID}, last.Payload())
}

func TestEngine_DeleteRoom_Cascades(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, &recordingPublisher{})
	message := f.approved(t, "hello")
	admin := domain.Capability{ActorID: "admin-1", Role: domain.RoleAdmin, Active: true}

	// Moderators cannot delete rooms
	req.ErrorIs(f.engine.DeleteRoom(moderator, f.room.ID), errors.ErrInsufficientRole)

	// When an admin deletes the room
	req.NoError(f.engine.DeleteRoom(admin, f.room.ID))

	// Then the room and its messages are gone
	_, err := f.rooms.Get(f.room.ID)
	req.ErrorIs(err, errors.ErrRoomNotFound)
	_, err = f.messages.Get(message.ID)
	req.ErrorIs(err, errors.ErrMessageNotFound)
}

func TestEngine_ListMessages_NewestFirst(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, &recordingPublisher{})
	for i := 0; i < 5; i++ {
		_, err := f.engine.Submit(f.room.ID, fmt.Sprintf("message %d", i), "")
		req.NoError(err)
	}
	approved := f.approved(t, "approved one")

	// When listing everything
	messages, _, err := f.engine.ListMessages(moderator, repositories.MessageQuery{RoomID: f.room.ID})
	req.NoError(err)

	// Then the newest comes first
	req.Len(messages, 6)
	req.Equal(approved.ID, messages[0].ID)
	req.Equal("message 0", messages[5].Content)

	// When filtering on approved
	messages, _, err = f.engine.ListMessages(moderator, repositories.MessageQuery{
		RoomID: f.room.ID,
		Status: lo.ToPtr(domain.StatusApproved),
	})
	req.NoError(err)
	req.Len(messages, 1)

	// Presenters cannot list
	_, _, err = f.engine.ListMessages(presenter, repositories.MessageQuery{RoomID: f.room.ID})
	req.ErrorIs(err, errors.ErrInsufficientRole)
}

func TestEngine_ConcurrentDisplay_SingleDisplayedMessage(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, &recordingPublisher{})

	var ids []string
	for i := 0; i < 20; i++ {
		ids = append(ids, f.approved(t, fmt.Sprintf("message %d", i)).ID)
	}

	// When every message is displayed at the same time
	var wg sync.WaitGroup
	errs := make(chan error, len(ids))
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.engine.Display(moderator, f.room.ID, id)
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	// Then exactly one message is displayed and the room points at it
	messages, _, err := f.messages.List(repositories.MessageQuery{RoomID: f.room.ID, Limit: 100})
	req.NoError(err)
	displayed := lo.Filter(messages, func(m domain.Message, _ int) bool { return m.IsDisplaying })
	req.Len(displayed, 1)
	room, err := f.rooms.Get(f.room.ID)
	req.NoError(err)
	req.Equal(displayed[0].ID, *room.CurrentMessageID)
}

func TestEngine_ConcurrentSubmit_CountsEveryMessage(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, &recordingPublisher{})
	const submissions = 200

	// When the audience submits all at once
	var wg sync.WaitGroup
	errs := make(chan error, submissions)
	for i := 0; i < submissions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.engine.Submit(f.room.ID, fmt.Sprintf("question %d", i), "10.0.0.1")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	// Then every submission is accepted
	for err := range errs {
		req.NoError(err)
	}
	// And the room counter matches the stored messages
	messages, _, err := f.messages.List(repositories.MessageQuery{RoomID: f.room.ID, Limit: submissions + 1})
	req.NoError(err)
	req.Len(messages, submissions)
	room, err := f.rooms.Get(f.room.ID)
	req.NoError(err)
	req.EqualValues(submissions, room.MessageCount)
	req.Len(f.publisher.names(), submissions)
}

// displayInvariant checks that at most one message of the room is displayed
// and that it is the room's current message. Every engine write holds the room
// lock, so reading under it sees a committed state.
func (f fixture) displayInvariant(roomID string) error {
	unlock := f.engine.locks.lock(roomID)
	defer unlock()

	room, err := f.rooms.Get(roomID)
	if err != nil {
		return err
	}
	messages, _, err := f.messages.List(repositories.MessageQuery{RoomID: roomID, Limit: 10000})
	if err != nil {
		return err
	}
	displayed := lo.Filter(messages, func(m domain.Message, _ int) bool { return m.IsDisplaying })
	switch {
	case len(displayed) > 1:
		return fmt.Errorf("%d messages displayed", len(displayed))
	case len(displayed) == 1 && !room.IsCurrent(displayed[0].ID):
		return fmt.Errorf("displayed message %s is not the current message", displayed[0].ID)
	case len(displayed) == 0 && room.CurrentMessageID != nil:
		return fmt.Errorf("current message %s is not displayed", *room.CurrentMessageID)
	}
	return nil
}

func TestEngine_MixedWriters_KeepSingleDisplayedMessage(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, &recordingPublisher{})

	var ids []string
	for i := 0; i < 10; i++ {
		ids = append(ids, f.approved(t, fmt.Sprintf("message %d", i)).ID)
	}

	var wg sync.WaitGroup
	var submitted sync.Map
	errs := make(chan error, 1024)
	check := func(err error, allowed ...error) {
		for _, target := range allowed {
			if errors.Is(err, target) {
				return
			}
		}
		if err != nil {
			errs <- err
			return
		}
		if err = f.displayInvariant(f.room.ID); err != nil {
			errs <- err
		}
	}

	// Given an audience submitting while moderators display, reject and toggle the room
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				message, err := f.engine.Submit(f.room.ID, fmt.Sprintf("audience %d-%d", w, i), "10.0.0.2")
				if err == nil {
					submitted.Store(message.ID, true)
				}
				check(err, errors.ErrRoomClosed)
			}
		}(w)
	}
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, err := f.engine.Display(moderator, f.room.ID, ids[(w+i)%len(ids)])
				check(err, errors.ErrMessageNotApproved)
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 3; i++ {
			time.Sleep(time.Millisecond)
			_, err := f.engine.Reject(second, f.room.ID, ids[i])
			check(err)
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			_, err := f.engine.ToggleAccepting(moderator, f.room.ID, i%2 == 1)
			check(err)
		}
	}()
	wg.Wait()
	close(errs)

	// Then no operation failed unexpectedly and the invariant held after each one
	for err := range errs {
		req.NoError(err)
	}
	req.NoError(f.displayInvariant(f.room.ID))

	// And the counter matches the stored messages
	accepted := 0
	submitted.Range(func(_, _ any) bool {
		accepted++
		return true
	})
	messages, _, err := f.messages.List(repositories.MessageQuery{RoomID: f.room.ID, Limit: 10000})
	req.NoError(err)
	req.Len(messages, len(ids)+accepted)
	room, err := f.rooms.Get(f.room.ID)
	req.NoError(err)
	req.EqualValues(len(ids)+accepted, room.MessageCount)
	req.True(room.AcceptingMessages)
}

func TestEngine_Censor_And_Language(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, &recordingPublisher{})
	censor, err := NewCensor([]string{"badger"}, '*', logs.GetLoggerFromLevel(slog.LevelDebug))
	req.NoError(err)
	f.engine.WithCensor(censor).WithLanguageDetection()

	// When a message with a forbidden word is submitted
	content := "The badger is hiding in the garden behind the old house and nobody knows where it went"
	message, err := f.engine.Submit(f.room.ID, content, "")

	// Then the word is masked
	req.NoError(err)
	req.Equal(strings.Replace(content, "badger", "******", 1), message.Content)

	// And the language is only tagged when detection is reliable
	req.Contains([]string{"", "en"}, message.Language)
}

type recordingSink struct {
	mu     sync.Mutex
	events []event.Name
}

func (s *recordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e.Name())
	return nil
}

func (s *recordingSink) received() []event.Name {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Name(nil), s.events...)
}

func TestEngine_Scenario_SubscriberReceivesEventsInOrder(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	hub := runtime.NewHub(log, 64)
	registry := runtime.NewRegistry()
	f := newFixture(t, hub)

	// Given a subscriber on the room and a running fan-out
	sink := &recordingSink{}
	registry.Subscribe("connection-1", f.room.ID, sink)
	other := &recordingSink{}
	registry.Subscribe("connection-2", uuid.NewString(), other)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fanout := workers.NewEventFanout(log, hub.Events(), registry, time.Second)
	go func() { _ = fanout.Run(ctx) }()

	// When a message is submitted, approved then displayed
	message, err := f.engine.Submit(f.room.ID, "hello", "")
	req.NoError(err)
	_, err = f.engine.Approve(moderator, f.room.ID, message.ID)
	req.NoError(err)
	_, err = f.engine.Display(moderator, f.room.ID, message.ID)
	req.NoError(err)

	// Then the subscriber received the four events in order
	expected := []event.Name{
		event.NewMessageName,
		event.MessageUpdateName,
		event.DisplayMessageName,
		event.MessageUpdateName,
	}
	req.Eventually(func() bool { return len(sink.received()) == len(expected) }, time.Second, 10*time.Millisecond)
	req.Equal(expected, sink.received())

	// And a subscriber of another room received nothing
	req.Empty(other.received())
}
