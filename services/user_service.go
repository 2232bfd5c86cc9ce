package services

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/havaian/gossip/auth"
	"github.com/havaian/gossip/domain"
	"github.com/havaian/gossip/errors"
	"github.com/havaian/gossip/repositories"
)

type CreateUserRequest struct {
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Password       string  `json:"password"`
	Role           string  `json:"role"`
	AssignedRoomID *string `json:"assignedRoom"`
}

// UpdateUserRequest only changes the fields that are set.
type UpdateUserRequest struct {
	Name           *string `json:"name"`
	Email          *string `json:"email"`
	Role           *string `json:"role"`
	IsActive       *bool   `json:"isActive"`
	AssignedRoomID *string `json:"assignedRoom"`
}

// Page is a slice of a listing with its total size.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

func newPage[T any](items []T, total, page, limit int) Page[T] {
	totalPages := 1
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Page[T]{Items: items, Total: total, Page: page, Limit: limit, TotalPages: totalPages}
}

// UserService is the admin surface over operator accounts.
type UserService struct {
	users  repositories.IUserRepository
	rooms  repositories.IRoomRepository
	hasher auth.PasswordHasher
	log    *slog.Logger
	now    func() time.Time
}

func NewUserService(users repositories.IUserRepository, rooms repositories.IRoomRepository, hasher auth.PasswordHasher, log *slog.Logger) *UserService {
	return &UserService{
		users:  users,
		rooms:  rooms,
		hasher: hasher,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create registers an operator. The role defaults to moderator.
func (s *UserService) Create(actor domain.Capability, req CreateUserRequest) (domain.Identity, error) {
	if !actor.IsAdmin() {
		return domain.Identity{}, errors.ErrInsufficientRole
	}
	req.Email = auth.NormalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if req.Role == "" {
		req.Role = string(domain.RoleModerator)
	}
	if err := auth.ValidateIdentity(auth.IdentityRequest{Name: req.Name, Email: req.Email, Password: req.Password, Role: req.Role}); err != nil {
		return domain.Identity{}, err
	}
	if err := s.checkRoom(req.AssignedRoomID); err != nil {
		return domain.Identity{}, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("hashing failed: %w", err)
	}
	now := s.now()
	identity := domain.Identity{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Email:          req.Email,
		PasswordHash:   hash,
		Role:           domain.Role(req.Role),
		IsActive:       true,
		AssignedRoomID: req.AssignedRoomID,
		CreatedBy:      &actor.ActorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err = s.users.Create(identity); err != nil {
		return domain.Identity{}, err
	}
	s.log.Info("Operator created", "user_id", identity.ID, "role", identity.Role, "actor_id", actor.ActorID)
	return identity, nil
}

func (s *UserService) Get(actor domain.Capability, id string) (domain.Identity, error) {
	if !actor.IsAdmin() {
		return domain.Identity{}, errors.ErrInsufficientRole
	}
	return s.users.Get(id)
}

func (s *UserService) List(actor domain.Capability, filter repositories.UserFilter) (Page[domain.Identity], error) {
	if !actor.IsAdmin() {
		return Page[domain.Identity]{}, errors.ErrInsufficientRole
	}
	if filter.Role != nil {
		if err := auth.ValidateRole(string(*filter.Role)); err != nil {
			return Page[domain.Identity]{}, err
		}
	}
	identities, total, err := s.users.List(filter)
	if err != nil {
		return Page[domain.Identity]{}, err
	}
	return newPage(identities, total, filter.Page, filter.Limit), nil
}

func (s *UserService) Update(actor domain.Capability, id string, req UpdateUserRequest) (domain.Identity, error) {
	if !actor.IsAdmin() {
		return domain.Identity{}, errors.ErrInsufficientRole
	}
	if req.Email != nil {
		normalized := auth.NormalizeEmail(*req.Email)
		if err := auth.ValidateEmail(normalized); err != nil {
			return domain.Identity{}, err
		}
		req.Email = &normalized
	}
	if req.Role != nil {
		if err := auth.ValidateRole(*req.Role); err != nil {
			return domain.Identity{}, err
		}
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return domain.Identity{}, fmt.Errorf("%w: name cannot be empty", errors.ErrInvalidInput)
	}
	if err := s.checkRoom(req.AssignedRoomID); err != nil {
		return domain.Identity{}, err
	}

	return s.users.Update(id, func(i *domain.Identity) error {
		if req.Name != nil {
			i.Name = strings.TrimSpace(*req.Name)
		}
		if req.Email != nil {
			i.Email = *req.Email
		}
		if req.Role != nil {
			i.Role = domain.Role(*req.Role)
		}
		if req.IsActive != nil {
			i.IsActive = *req.IsActive
		}
		if req.AssignedRoomID != nil {
			i.AssignedRoomID = req.AssignedRoomID
		}
		return nil
	})
}

func (s *UserService) Delete(actor domain.Capability, id string) error {
	if !actor.IsAdmin() {
		return errors.ErrInsufficientRole
	}
	if err := s.users.Delete(id); err != nil {
		return err
	}
	s.log.Info("Operator deleted", "user_id", id, "actor_id", actor.ActorID)
	return nil
}

func (s *UserService) checkRoom(roomID *string) error {
	if roomID == nil || *roomID == "" {
		return nil
	}
	_, err := s.rooms.Get(*roomID)
	return err
}
