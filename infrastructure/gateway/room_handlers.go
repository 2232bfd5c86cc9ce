package gateway

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/havaian/gossip/domain"
	"github.com/havaian/gossip/errors"
	"github.com/havaian/gossip/repositories"
	"github.com/samber/lo"
)

const defaultMessageLimit = 50

type toggleAcceptingRequest struct {
	AcceptingMessages *bool `json:"acceptingMessages"`
}

type messagePage struct {
	Items      []domain.Message `json:"items"`
	NextCursor *string          `json:"nextCursor"`
}

// RoomDetails is visible to every operator allowed to view the room.
func (h *Handler) RoomDetails(w http.ResponseWriter, r *http.Request) {
	room, err := h.engine.Room(h.capability(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// CurrentMessage answers null when nothing is displayed.
func (h *Handler) CurrentMessage(w http.ResponseWriter, r *http.Request) {
	message, err := h.engine.CurrentMessage(h.capability(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message)
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultMessageLimit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	query := repositories.MessageQuery{RoomID: chi.URLParam(r, "id"), Limit: limit}
	if status := r.URL.Query().Get("status"); status != "" {
		query.Status = lo.ToPtr(domain.MessageStatus(status))
	}
	if cursor := r.URL.Query().Get("cursor"); cursor != "" {
		query.Cursor = &cursor
	}

	messages, next, err := h.engine.ListMessages(h.capability(r), query)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messagePage{Items: messages, NextCursor: next})
}

func (h *Handler) ApproveMessage(w http.ResponseWriter, r *http.Request) {
	message, err := h.engine.Approve(h.capability(r), chi.URLParam(r, "id"), chi.URLParam(r, "messageId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Message: "Message approved successfully", Data: message})
}

func (h *Handler) RejectMessage(w http.ResponseWriter, r *http.Request) {
	message, err := h.engine.Reject(h.capability(r), chi.URLParam(r, "id"), chi.URLParam(r, "messageId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Message: "Message rejected successfully", Data: message})
}

func (h *Handler) DisplayMessage(w http.ResponseWriter, r *http.Request) {
	message, err := h.engine.Display(h.capability(r), chi.URLParam(r, "id"), chi.URLParam(r, "messageId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Message: "Message is now being displayed", Data: message})
}

func (h *Handler) ToggleAccepting(w http.ResponseWriter, r *http.Request) {
	var req toggleAcceptingRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.AcceptingMessages == nil {
		h.fail(w, r, fmt.Errorf("%w: acceptingMessages is required", errors.ErrInvalidInput))
		return
	}
	room, err := h.engine.ToggleAccepting(h.capability(r), chi.URLParam(r, "id"), *req.AcceptingMessages)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	message := "Room is no longer accepting messages"
	if room.AcceptingMessages {
		message = "Room is now accepting messages"
	}
	writeJSON(w, http.StatusOK, envelope{Message: message, Data: room})
}

func (h *Handler) ClearMessages(w http.ResponseWriter, r *http.Request) {
	cleared, err := h.engine.ClearAll(h.capability(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Message: "All messages cleared successfully", Data: map[string]int{"cleared": cleared}})
}

func (h *Handler) SearchMessages(w http.ResponseWriter, r *http.Request) {
	terms := r.URL.Query().Get("q")
	if terms == "" {
		h.fail(w, r, fmt.Errorf("%w: q is required", errors.ErrInvalidInput))
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	messages, err := h.engine.Search(r.Context(), h.capability(r), chi.URLParam(r, "id"), terms, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// DisplayHistory lists the messages recently put on screen in the room.
func (h *Handler) DisplayHistory(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	if _, err := h.engine.Room(h.capability(r), roomID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.timeline.History(roomID))
}
