package services

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/havaian/gossip/auth"
	"github.com/havaian/gossip/contract"
	"github.com/havaian/gossip/domain"
	"github.com/havaian/gossip/domain/event"
	"github.com/havaian/gossip/errors"
	"github.com/havaian/gossip/observability"
	"github.com/havaian/gossip/repositories"
)

type CreateRoomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ModeratorID string `json:"moderator"`
	PresenterID string `json:"presenter"`
}

type UpdateRoomRequest struct {
	Name              *string `json:"name"`
	Description       *string `json:"description"`
	IsActive          *bool   `json:"isActive"`
	AcceptingMessages *bool   `json:"acceptingMessages"`
}

type Stats struct {
	TotalRooms    int                         `json:"totalRooms"`
	ActiveRooms   int                         `json:"activeRooms"`
	TotalUsers    int                         `json:"totalUsers"`
	TotalMessages int                         `json:"totalMessages"`
	Process       *observability.ProcessStats `json:"process,omitempty"`
}

// RoomDeleter removes a room together with its messages.
type RoomDeleter interface {
	DeleteRoom(capability domain.Capability, roomID string) error
}

// RoomService is the admin and public surface over rooms.
type RoomService struct {
	rooms     repositories.IRoomRepository
	users     repositories.IUserRepository
	messages  repositories.IMessageRepository
	deleter   RoomDeleter
	publisher contract.Publisher
	log       *slog.Logger
	now       func() time.Time
}

func NewRoomService(
	rooms repositories.IRoomRepository,
	users repositories.IUserRepository,
	messages repositories.IMessageRepository,
	deleter RoomDeleter,
	publisher contract.Publisher,
	log *slog.Logger,
) *RoomService {
	return &RoomService{
		rooms:     rooms,
		users:     users,
		messages:  messages,
		deleter:   deleter,
		publisher: publisher,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a new active room accepting messages, owned by the caller.
func (s *RoomService) Create(actor domain.Capability, req CreateRoomRequest) (domain.Room, error) {
	if !actor.IsAdmin() {
		return domain.Room{}, errors.ErrInsufficientRole
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := auth.ValidateRoom(auth.RoomRequest{Name: req.Name, Description: req.Description}); err != nil {
		return domain.Room{}, err
	}
	for _, id := range []string{req.ModeratorID, req.PresenterID} {
		if id == "" {
			continue
		}
		if _, err := s.users.Get(id); err != nil {
			return domain.Room{}, err
		}
	}

	now := s.now()
	room := domain.Room{
		ID:                uuid.NewString(),
		Name:              req.Name,
		Description:       req.Description,
		IsActive:          true,
		AcceptingMessages: true,
		CreatorID:         actor.ActorID,
		ModeratorID:       req.ModeratorID,
		PresenterID:       req.PresenterID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.rooms.Create(room); err != nil {
		return domain.Room{}, err
	}
	s.log.Info("Room created", "room_id", room.ID, "actor_id", actor.ActorID)
	return room, nil
}

func (s *RoomService) Get(actor domain.Capability, id string) (domain.Room, error) {
	if !actor.IsAdmin() {
		return domain.Room{}, errors.ErrInsufficientRole
	}
	return s.rooms.Get(id)
}

func (s *RoomService) List(actor domain.Capability, filter repositories.RoomFilter) (Page[domain.Room], error) {
	if !actor.IsAdmin() {
		return Page[domain.Room]{}, errors.ErrInsufficientRole
	}
	rooms, total, err := s.rooms.List(filter)
	if err != nil {
		return Page[domain.Room]{}, err
	}
	return newPage(rooms, total, filter.Page, filter.Limit), nil
}

// Update changes the room settings and notifies the room subscribers.
func (s *RoomService) Update(actor domain.Capability, id string, req UpdateRoomRequest) (domain.Room, error) {
	if !actor.IsAdmin() {
		return domain.Room{}, errors.ErrInsufficientRole
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}
	if req.Name != nil || req.Description != nil {
		form := auth.RoomRequest{Name: "unchanged"}
		if req.Name != nil {
			form.Name = *req.Name
		}
		if req.Description != nil {
			form.Description = *req.Description
		}
		if err := auth.ValidateRoom(form); err != nil {
			return domain.Room{}, err
		}
	}

	room, err := s.rooms.Update(id, func(r *domain.Room) error {
		if req.Name != nil {
			r.Name = *req.Name
		}
		if req.Description != nil {
			r.Description = *req.Description
		}
		if req.IsActive != nil {
			r.IsActive = *req.IsActive
		}
		if req.AcceptingMessages != nil {
			r.AcceptingMessages = *req.AcceptingMessages
		}
		return nil
	})
	if err != nil {
		return domain.Room{}, err
	}
	s.publisher.Publish(event.RoomUpdated{Room: room})
	return room, nil
}

func (s *RoomService) Delete(actor domain.Capability, id string) error {
	return s.deleter.DeleteRoom(actor, id)
}

// Public exposes a room to the audience. Inactive rooms are hidden.
func (s *RoomService) Public(id string) (domain.PublicRoom, error) {
	room, err := s.rooms.Get(id)
	if err != nil {
		return domain.PublicRoom{}, err
	}
	if !room.IsActive {
		return domain.PublicRoom{}, errors.ErrRoomInactive
	}
	return room.Public(), nil
}

// Stats counts every collection. Process figures are best effort.
func (s *RoomService) Stats(actor domain.Capability) (Stats, error) {
	if !actor.IsAdmin() {
		return Stats{}, errors.ErrInsufficientRole
	}
	totalRooms, activeRooms, err := s.rooms.Count()
	if err != nil {
		return Stats{}, err
	}
	totalUsers, err := s.users.Count()
	if err != nil {
		return Stats{}, err
	}
	totalMessages, err := s.messages.Count()
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		TotalRooms:    totalRooms,
		ActiveRooms:   activeRooms,
		TotalUsers:    totalUsers,
		TotalMessages: totalMessages,
	}
	if process, err := observability.CollectProcessStats(); err != nil {
		s.log.Warn("Failed to collect process stats", "error", err)
	} else {
		stats.Process = &process
	}
	return stats, nil
}
