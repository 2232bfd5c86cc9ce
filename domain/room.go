package domain

import (
	"time"

	"github.com/havaian/gossip/errors"
)

// Room is an isolated submission and moderation context.
type Room struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	IsActive          bool      `json:"isActive"`
	AcceptingMessages bool      `json:"acceptingMessages"`
	CurrentMessageID  *string   `json:"currentMessage"`
	MessageCount      int64     `json:"messageCount"`
	CreatorID         string    `json:"creator"`
	ModeratorID       string    `json:"moderator,omitempty"`
	PresenterID       string    `json:"presenter,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// CheckSubmission tells whether a public submission may enter the room.
// Inactive wins over closed.
func (r Room) CheckSubmission() error {
	if !r.IsActive {
		return errors.ErrRoomInactive
	}
	if !r.AcceptingMessages {
		return errors.ErrRoomClosed
	}
	return nil
}

func (r Room) IsCurrent(messageID string) bool {
	return r.CurrentMessageID != nil && *r.CurrentMessageID == messageID
}

// PublicRoom is the subset of a room visible to the audience.
type PublicRoom struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	IsActive          bool   `json:"isActive"`
	AcceptingMessages bool   `json:"acceptingMessages"`
}

func (r Room) Public() PublicRoom {
	return PublicRoom{
		ID:                r.ID,
		Name:              r.Name,
		Description:       r.Description,
		IsActive:          r.IsActive,
		AcceptingMessages: r.AcceptingMessages,
	}
}
