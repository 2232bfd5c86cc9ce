package gateway

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type submitRequest struct {
	Content string `json:"content"`
}

type submitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (h *Handler) PublicRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.rooms.Public(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// SubmitMessage is the anonymous audience entry point.
func (h *Handler) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	message, err := h.engine.Submit(chi.URLParam(r, "id"), req.Content, originAddress(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{
		Message: "Message submitted successfully",
		Data:    submitResponse{ID: message.ID, Status: string(message.Status)},
	})
}

func originAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
