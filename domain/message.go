// Package domain contains the core concepts of the moderation system.
// This file defines Message records and their status transitions.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type MessageStatus string

const (
	StatusPending  MessageStatus = "pending"
	StatusApproved MessageStatus = "approved"
	StatusRejected MessageStatus = "rejected"
)

func (s MessageStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Message is an audience submission. Room and CreatedAt never change after creation.
type Message struct {
	ID            string        `json:"id"`
	RoomID        string        `json:"roomId"`
	Content       string        `json:"content"`
	Language      string        `json:"language,omitempty"`
	Status        MessageStatus `json:"status"`
	IsDisplaying  bool          `json:"isDisplaying"`
	ApprovedBy    *string       `json:"approvedBy"`
	ApprovedAt    *time.Time    `json:"approvedAt"`
	RejectedBy    *string       `json:"rejectedBy"`
	RejectedAt    *time.Time    `json:"rejectedAt"`
	OriginAddress string        `json:"originAddress,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
}

func NewMessage(roomID, content, originAddress string, at time.Time) Message {
	return Message{
		ID:            uuid.NewString(),
		RoomID:        roomID,
		Content:       strings.TrimSpace(content),
		Status:        StatusPending,
		OriginAddress: originAddress,
		CreatedAt:     at,
	}
}

// Approve moves the message to approved from any status.
// Re-approving stamps the new actor and time.
func (m *Message) Approve(actorID string, at time.Time) {
	m.Status = StatusApproved
	m.ApprovedBy = &actorID
	m.ApprovedAt = &at
	m.RejectedBy = nil
	m.RejectedAt = nil
}

// Reject moves the message to rejected. A rejected message is never displayed.
func (m *Message) Reject(actorID string, at time.Time) {
	m.Status = StatusRejected
	m.RejectedBy = &actorID
	m.RejectedAt = &at
	m.ApprovedBy = nil
	m.ApprovedAt = nil
	m.IsDisplaying = false
}

func (m Message) CanDisplay() bool {
	return m.Status == StatusApproved
}
