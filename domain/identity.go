package domain

import "time"

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RolePresenter Role = "presenter"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RolePresenter:
		return true
	}
	return false
}

// Identity is an operator account. The password hash never leaves the repository layer
// through JSON.
type Identity struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	Role           Role       `json:"role"`
	IsActive       bool       `json:"isActive"`
	AssignedRoomID *string    `json:"assignedRoom"`
	CreatedBy      *string    `json:"createdBy"`
	LastLoginAt    *time.Time `json:"lastLogin"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func (i Identity) Capability() Capability {
	c := Capability{ActorID: i.ID, Role: i.Role, Active: i.IsActive}
	if i.AssignedRoomID != nil {
		c.AssignedRoomID = *i.AssignedRoomID
	}
	return c
}

// Capability is what an authenticated caller may do.
// It is computed once per request or connection and passed by value.
type Capability struct {
	ActorID        string
	Role           Role
	AssignedRoomID string
	Active         bool
}

func (c Capability) IsAdmin() bool {
	return c.Active && c.Role == RoleAdmin
}

// CanView grants read access to a room: operators see every room,
// any other role only its assigned one.
func (c Capability) CanView(roomID string) bool {
	if !c.Active {
		return false
	}
	switch c.Role {
	case RoleAdmin, RoleModerator, RolePresenter:
		return true
	}
	return c.AssignedRoomID != "" && c.AssignedRoomID == roomID
}

// CanModerate grants approve/reject/display/clear on a room.
func (c Capability) CanModerate(roomID string) bool {
	if !c.CanView(roomID) {
		return false
	}
	return c.Role == RoleAdmin || c.Role == RoleModerator
}
