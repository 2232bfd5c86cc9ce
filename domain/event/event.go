// Package event defines the moderation events fanned out to room subscribers.
package event

import (
	"github.com/havaian/gossip/domain"
)

type Name string

const (
	NewMessageName      Name = "new-message"
	MessageUpdateName   Name = "message-update"
	DisplayMessageName  Name = "display-message"
	RoomUpdateName      Name = "room-update"
	MessagesClearedName Name = "messages-cleared"
)

// DomainEvent is published once a store mutation has succeeded.
type DomainEvent interface {
	RoomID() string
	Name() Name
	Payload() any
}

type NewMessage struct {
	Message domain.Message
}

func (e NewMessage) RoomID() string { return e.Message.RoomID }
func (e NewMessage) Name() Name     { return NewMessageName }
func (e NewMessage) Payload() any   { return e.Message }

type MessageUpdated struct {
	Message domain.Message
}

func (e MessageUpdated) RoomID() string { return e.Message.RoomID }
func (e MessageUpdated) Name() Name     { return MessageUpdateName }
func (e MessageUpdated) Payload() any   { return e.Message }

type MessageDisplayed struct {
	Message domain.Message
}

func (e MessageDisplayed) RoomID() string { return e.Message.RoomID }
func (e MessageDisplayed) Name() Name     { return DisplayMessageName }
func (e MessageDisplayed) Payload() any   { return e.Message }

type RoomUpdated struct {
	Room domain.Room
}

func (e RoomUpdated) RoomID() string { return e.Room.ID }
func (e RoomUpdated) Name() Name     { return RoomUpdateName }
func (e RoomUpdated) Payload() any   { return e.Room }

// MessagesCleared only carries the room, every message of it is gone.
type MessagesCleared struct {
	Room string
}

func (e MessagesCleared) RoomID() string { return e.Room }
func (e MessagesCleared) Name() Name     { return MessagesClearedName }
func (e MessagesCleared) Payload() any   { return map[string]string{"roomId": e.Room} }
