package repositories

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/havaian/gossip/domain"
	"github.com/havaian/gossip/errors"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *badger.DB {
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newMessageRepository(t *testing.T) *MessageRepository {
	return NewMessageRepository(openDB(t), logs.GetLoggerFromLevel(slog.LevelDebug), lo.ToPtr(50))
}

func seedMessages(t *testing.T, repo *MessageRepository, roomID string, count int, base time.Time) []domain.Message {
	var messages []domain.Message
	for i := 0; i < count; i++ {
		message := domain.NewMessage(roomID, fmt.Sprintf("message %d", i), "", base.Add(time.Duration(i)*time.Second))
		require.NoError(t, repo.Create(message))
		messages = append(messages, message)
	}
	return messages
}

func TestMessageRepository_CreateAndGet(t *testing.T) {
	req := require.New(t)
	repo := newMessageRepository(t)

	// Given a stored message
	message := domain.NewMessage("room-1", "hello", "10.0.0.1", time.Now().UTC())
	req.NoError(repo.Create(message))

	// When fetching it by id
	fetched, err := repo.Get(message.ID)

	// Then every field survives the round trip
	req.NoError(err)
	req.Equal(message.ID, fetched.ID)
	req.Equal("room-1", fetched.RoomID)
	req.Equal("hello", fetched.Content)
	req.Equal(domain.StatusPending, fetched.Status)
	req.Equal("10.0.0.1", fetched.OriginAddress)
	req.True(message.CreatedAt.Equal(fetched.CreatedAt))

	// And an unknown id is reported as not found
	_, err = repo.Get(uuid.NewString())
	req.ErrorIs(err, errors.ErrMessageNotFound)
}

func TestMessageRepository_Update_KeepsImmutableFields(t *testing.T) {
	req := require.New(t)
	repo := newMessageRepository(t)
	message := domain.NewMessage("room-1", "hello", "", time.Now().UTC())
	req.NoError(repo.Create(message))

	// When an update tries to move the message
	updated, err := repo.Update(message.ID, func(m *domain.Message) error {
		m.RoomID = "room-2"
		m.CreatedAt = time.Time{}
		m.Approve("moderator-1", time.Now().UTC())
		return nil
	})

	// Then the status changed but room and creation time did not
	req.NoError(err)
	req.Equal(domain.StatusApproved, updated.Status)
	req.Equal("room-1", updated.RoomID)
	fetched, err := repo.Get(message.ID)
	req.NoError(err)
	req.Equal("room-1", fetched.RoomID)
	req.True(message.CreatedAt.Equal(fetched.CreatedAt))

	// And an error from fn aborts the update
	_, err = repo.Update(message.ID, func(m *domain.Message) error {
		m.Status = domain.StatusRejected
		return errors.ErrRoomMismatch
	})
	req.ErrorIs(err, errors.ErrRoomMismatch)
	fetched, err = repo.Get(message.ID)
	req.NoError(err)
	req.Equal(domain.StatusApproved, fetched.Status)
}

func TestMessageRepository_List_Pagination(t *testing.T) {
	req := require.New(t)
	repo := newMessageRepository(t)
	base := time.Now().UTC()
	seeded := seedMessages(t, repo, "room-1", 5, base)
	seedMessages(t, repo, "room-2", 3, base)

	// When reading the first page of two
	page, cursor, err := repo.List(MessageQuery{RoomID: "room-1", Limit: 2})
	req.NoError(err)
	req.NotNil(cursor)
	req.Equal([]string{seeded[4].ID, seeded[3].ID}, lo.Map(page, func(m domain.Message, _ int) string { return m.ID }))

	// When reading the next page with the cursor
	page, cursor, err = repo.List(MessageQuery{RoomID: "room-1", Limit: 2, Cursor: cursor})
	req.NoError(err)
	req.Equal([]string{seeded[2].ID, seeded[1].ID}, lo.Map(page, func(m domain.Message, _ int) string { return m.ID }))

	// When reading the last page
	page, _, err = repo.List(MessageQuery{RoomID: "room-1", Limit: 2, Cursor: cursor})
	req.NoError(err)
	req.Len(page, 1)
	req.Equal(seeded[0].ID, page[0].ID)
}

func TestMessageRepository_List_StatusFilter(t *testing.T) {
	req := require.New(t)
	repo := newMessageRepository(t)
	seeded := seedMessages(t, repo, "room-1", 4, time.Now().UTC())
	_, err := repo.Update(seeded[1].ID, func(m *domain.Message) error {
		m.Reject("moderator-1", time.Now().UTC())
		return nil
	})
	req.NoError(err)

	// When listing only rejected messages
	page, _, err := repo.List(MessageQuery{RoomID: "room-1", Status: lo.ToPtr(domain.StatusRejected)})

	// Then only the rejected one comes back
	req.NoError(err)
	req.Len(page, 1)
	req.Equal(seeded[1].ID, page[0].ID)
}

func TestMessageRepository_DeleteByRoom(t *testing.T) {
	req := require.New(t)
	repo := newMessageRepository(t)
	seeded := seedMessages(t, repo, "room-1", 3, time.Now().UTC())
	kept := seedMessages(t, repo, "room-10", 2, time.Now().UTC())

	// When clearing room-1
	ids, err := repo.DeleteByRoom("room-1")

	// Then only its messages are gone, a room sharing its prefix is untouched
	req.NoError(err)
	req.ElementsMatch(lo.Map(seeded, func(m domain.Message, _ int) string { return m.ID }), ids)
	_, err = repo.Get(seeded[0].ID)
	req.ErrorIs(err, errors.ErrMessageNotFound)
	page, _, err := repo.List(MessageQuery{RoomID: "room-10"})
	req.NoError(err)
	req.Len(page, len(kept))
	count, err := repo.Count()
	req.NoError(err)
	req.Equal(2, count)
}

func newRoom(name string, active bool, at time.Time) domain.Room {
	return domain.Room{
		ID:                uuid.NewString(),
		Name:              name,
		IsActive:          active,
		AcceptingMessages: true,
		CreatorID:         "admin-1",
		CreatedAt:         at,
		UpdatedAt:         at,
	}
}

func TestRoomRepository_CRUD(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(openDB(t))
	room := newRoom("Town hall", true, time.Now().UTC())
	req.NoError(repo.Create(room))

	// When bumping the counter twice
	for i := 0; i < 2; i++ {
		_, err := repo.Update(room.ID, func(r *domain.Room) error {
			r.MessageCount++
			return nil
		})
		req.NoError(err)
	}

	// Then the counter is persisted
	fetched, err := repo.Get(room.ID)
	req.NoError(err)
	req.EqualValues(2, fetched.MessageCount)
	req.Equal("Town hall", fetched.Name)

	// When deleting it
	req.NoError(repo.Delete(room.ID))

	// Then it is gone
	_, err = repo.Get(room.ID)
	req.ErrorIs(err, errors.ErrRoomNotFound)
	req.ErrorIs(repo.Delete(room.ID), errors.ErrRoomNotFound)
	_, err = repo.Update(room.ID, func(r *domain.Room) error { return nil })
	req.ErrorIs(err, errors.ErrRoomNotFound)
}

func TestRoomRepository_ListAndCount(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(openDB(t))
	base := time.Now().UTC()
	oldest := newRoom("oldest", true, base)
	middle := newRoom("middle", false, base.Add(time.Minute))
	newest := newRoom("newest", true, base.Add(2*time.Minute))
	for _, room := range []domain.Room{oldest, middle, newest} {
		req.NoError(repo.Create(room))
	}

	// When listing active rooms
	rooms, total, err := repo.List(RoomFilter{IsActive: lo.ToPtr(true)})
	req.NoError(err)
	req.Equal(2, total)
	req.Equal([]string{newest.ID, oldest.ID}, lo.Map(rooms, func(r domain.Room, _ int) string { return r.ID }))

	// When paginating every room
	rooms, total, err = repo.List(RoomFilter{Page: 2, Limit: 2})
	req.NoError(err)
	req.Equal(3, total)
	req.Len(rooms, 1)
	req.Equal(oldest.ID, rooms[0].ID)

	// Then counts split active rooms
	all, active, err := repo.Count()
	req.NoError(err)
	req.Equal(3, all)
	req.Equal(2, active)
}

func newIdentity(email string, role domain.Role) domain.Identity {
	now := time.Now().UTC()
	return domain.Identity{
		ID:           uuid.NewString(),
		Name:         "Operator",
		Email:        email,
		PasswordHash: "hash",
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestUserRepository_EmailIsUnique(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(openDB(t))
	alice := newIdentity("alice@example.com", domain.RoleAdmin)
	req.NoError(repo.Create(alice))

	// When another identity reuses the email
	err := repo.Create(newIdentity("alice@example.com", domain.RoleModerator))

	// Then it is refused
	req.ErrorIs(err, errors.ErrEmailInUse)
	count, err := repo.Count()
	req.NoError(err)
	req.Equal(1, count)

	// And the email resolves to the first identity with its hash
	fetched, err := repo.GetByEmail("alice@example.com")
	req.NoError(err)
	req.Equal(alice.ID, fetched.ID)
	req.Equal("hash", fetched.PasswordHash)

	_, err = repo.GetByEmail("nobody@example.com")
	req.ErrorIs(err, errors.ErrIdentityNotFound)
}

func TestUserRepository_UpdateMovesEmailIndex(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(openDB(t))
	alice := newIdentity("alice@example.com", domain.RoleModerator)
	bob := newIdentity("bob@example.com", domain.RoleModerator)
	req.NoError(repo.Create(alice))
	req.NoError(repo.Create(bob))

	// When alice changes her email
	_, err := repo.Update(alice.ID, func(i *domain.Identity) error {
		i.Email = "alice@new.example.com"
		return nil
	})
	req.NoError(err)

	// Then the new email resolves and the old one is free
	fetched, err := repo.GetByEmail("alice@new.example.com")
	req.NoError(err)
	req.Equal(alice.ID, fetched.ID)
	req.NoError(repo.Create(newIdentity("alice@example.com", domain.RolePresenter)))

	// And taking bob's email is refused
	_, err = repo.Update(alice.ID, func(i *domain.Identity) error {
		i.Email = "bob@example.com"
		return nil
	})
	req.ErrorIs(err, errors.ErrEmailInUse)
}

func TestUserRepository_ListAndDelete(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(openDB(t))
	admin := newIdentity("admin@example.com", domain.RoleAdmin)
	moderator := newIdentity("mod@example.com", domain.RoleModerator)
	req.NoError(repo.Create(admin))
	req.NoError(repo.Create(moderator))

	// When filtering on moderators
	identities, total, err := repo.List(UserFilter{Role: lo.ToPtr(domain.RoleModerator)})
	req.NoError(err)
	req.Equal(1, total)
	req.Equal(moderator.ID, identities[0].ID)

	// When deleting the moderator
	req.NoError(repo.Delete(moderator.ID))

	// Then both the record and its email are released
	_, err = repo.Get(moderator.ID)
	req.ErrorIs(err, errors.ErrIdentityNotFound)
	req.NoError(repo.Create(newIdentity("mod@example.com", domain.RoleModerator)))
}

func TestStore_Update_IsAllOrNothing(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	store := NewStore(db)
	rooms := NewRoomRepository(db)
	messages := NewMessageRepository(db, logs.GetLoggerFromLevel(slog.LevelDebug), nil)

	room := newRoom("Town hall", true, time.Now().UTC())
	req.NoError(rooms.Create(room))
	shown := domain.NewMessage(room.ID, "shown", "", time.Now().UTC())
	req.NoError(messages.Create(shown))

	// When a transaction writes the room and two messages, then fails
	failure := fmt.Errorf("late failure")
	err := store.Update(func(tx *Tx) error {
		stored, err := tx.Room(room.ID)
		if err != nil {
			return err
		}
		stored.MessageCount++
		stored.CurrentMessageID = &shown.ID
		if _, err = tx.SaveRoom(stored); err != nil {
			return err
		}
		if _, err = tx.UpdateMessage(shown.ID, func(m *domain.Message) error {
			m.IsDisplaying = true
			return nil
		}); err != nil {
			return err
		}
		if err = tx.CreateMessage(domain.NewMessage(room.ID, "new", "", time.Now().UTC())); err != nil {
			return err
		}
		return failure
	})

	// Then none of the writes is visible
	req.ErrorIs(err, failure)
	stored, err := rooms.Get(room.ID)
	req.NoError(err)
	req.Zero(stored.MessageCount)
	req.Nil(stored.CurrentMessageID)
	fetched, err := messages.Get(shown.ID)
	req.NoError(err)
	req.False(fetched.IsDisplaying)
	count, err := messages.Count()
	req.NoError(err)
	req.Equal(1, count)

	// And a successful transaction commits every write together
	err = store.Update(func(tx *Tx) error {
		stored, err := tx.Room(room.ID)
		if err != nil {
			return err
		}
		stored.CurrentMessageID = &shown.ID
		if _, err = tx.SaveRoom(stored); err != nil {
			return err
		}
		_, err = tx.UpdateMessage(shown.ID, func(m *domain.Message) error {
			m.IsDisplaying = true
			return nil
		})
		return err
	})
	req.NoError(err)
	stored, err = rooms.Get(room.ID)
	req.NoError(err)
	req.Equal(shown.ID, *stored.CurrentMessageID)
	fetched, err = messages.Get(shown.ID)
	req.NoError(err)
	req.True(fetched.IsDisplaying)

	// And an unknown room is reported as such
	err = store.Update(func(tx *Tx) error {
		_, err := tx.Room(uuid.NewString())
		return err
	})
	req.ErrorIs(err, errors.ErrRoomNotFound)
}
