//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	stderrors "errors"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/havaian/gossip/domain"
	"github.com/havaian/gossip/errors"
	"github.com/samber/lo"
)

type IRoomRepository interface {
	Create(room domain.Room) error
	Get(id string) (domain.Room, error)
	Update(id string, fn func(*domain.Room) error) (domain.Room, error)
	Delete(id string) error
	List(filter RoomFilter) ([]domain.Room, int, error)
	Count() (total int, active int, err error)
}

// RoomFilter lists rooms newest first. Page starts at 1, a zero Limit returns everything.
type RoomFilter struct {
	IsActive *bool
	Page     int
	Limit    int
}

type RoomRepository struct {
	db *badger.DB
}

func NewRoomRepository(db *badger.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

type DiskRoom struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	IsActive          bool      `json:"is_active"`
	AcceptingMessages bool      `json:"accepting_messages"`
	CurrentMessage    *string   `json:"current_message,omitempty"`
	MessageCount      int64     `json:"message_count"`
	Creator           string    `json:"creator"`
	Moderator         string    `json:"moderator,omitempty"`
	Presenter         string    `json:"presenter,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func roomKey(id string) []byte {
	return []byte("room:" + id)
}

func (r *RoomRepository) Create(room domain.Room) error {
	return update(r.db, func(txn *badger.Txn) error {
		return setJSON(txn, roomKey(room.ID), fromRoom(room))
	})
}

func (r *RoomRepository) Get(id string) (domain.Room, error) {
	var room domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		room, err = getRoom(txn, id)
		return err
	})
	return room, err
}

// Update applies fn to the latest stored version of the room inside one transaction,
// so concurrent field updates (counter, flags, current message) never overwrite each other.
func (r *RoomRepository) Update(id string, fn func(*domain.Room) error) (domain.Room, error) {
	var updated domain.Room
	err := update(r.db, func(txn *badger.Txn) error {
		room, err := getRoom(txn, id)
		if err != nil {
			return err
		}
		if err = fn(&room); err != nil {
			return err
		}
		room.ID = id
		updated, err = putRoom(txn, room)
		return err
	})
	return updated, err
}

func getRoom(txn *badger.Txn, id string) (domain.Room, error) {
	var disk DiskRoom
	err := getJSON(txn, roomKey(id), &disk)
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Room{}, errors.ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, err
	}
	return toRoom(disk), nil
}

func putRoom(txn *badger.Txn, room domain.Room) (domain.Room, error) {
	room.UpdatedAt = time.Now().UTC()
	return room, setJSON(txn, roomKey(room.ID), fromRoom(room))
}

func (r *RoomRepository) Delete(id string) error {
	return update(r.db, func(txn *badger.Txn) error {
		if _, err := txn.Get(roomKey(id)); err != nil {
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				return errors.ErrRoomNotFound
			}
			return err
		}
		return txn.Delete(roomKey(id))
	})
}

func (r *RoomRepository) List(filter RoomFilter) ([]domain.Room, int, error) {
	disks, err := scanPrefix[DiskRoom](r.db, []byte("room:"))
	if err != nil {
		return nil, 0, err
	}
	rooms := lo.FilterMap(disks, func(item DiskRoom, _ int) (domain.Room, bool) {
		return toRoom(item), filter.IsActive == nil || item.IsActive == *filter.IsActive
	})
	sort.SliceStable(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
	})
	return paginate(rooms, filter.Page, filter.Limit), len(rooms), nil
}

func (r *RoomRepository) Count() (int, int, error) {
	disks, err := scanPrefix[DiskRoom](r.db, []byte("room:"))
	if err != nil {
		return 0, 0, err
	}
	active := lo.CountBy(disks, func(item DiskRoom) bool { return item.IsActive })
	return len(disks), active, nil
}

func fromRoom(room domain.Room) DiskRoom {
	return DiskRoom{
		ID:                room.ID,
		Name:              room.Name,
		Description:       room.Description,
		IsActive:          room.IsActive,
		AcceptingMessages: room.AcceptingMessages,
		CurrentMessage:    room.CurrentMessageID,
		MessageCount:      room.MessageCount,
		Creator:           room.CreatorID,
		Moderator:         room.ModeratorID,
		Presenter:         room.PresenterID,
		CreatedAt:         room.CreatedAt.UTC(),
		UpdatedAt:         room.UpdatedAt.UTC(),
	}
}

func toRoom(disk DiskRoom) domain.Room {
	return domain.Room{
		ID:                disk.ID,
		Name:              disk.Name,
		Description:       disk.Description,
		IsActive:          disk.IsActive,
		AcceptingMessages: disk.AcceptingMessages,
		CurrentMessageID:  disk.CurrentMessage,
		MessageCount:      disk.MessageCount,
		CreatorID:         disk.Creator,
		ModeratorID:       disk.Moderator,
		PresenterID:       disk.Presenter,
		CreatedAt:         disk.CreatedAt.UTC(),
		UpdatedAt:         disk.UpdatedAt.UTC(),
	}
}
