package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/havaian/gossip/domain"
	"github.com/havaian/gossip/repositories"
	"github.com/havaian/gossip/services"
)

const defaultPageLimit = 10

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.rooms.Stats(h.capability(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pagination(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	filter := repositories.UserFilter{Page: page, Limit: limit}
	if role := r.URL.Query().Get("role"); role != "" {
		filter.Role = (*domain.Role)(&role)
	}
	users, err := h.users.List(h.capability(r), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	identity, err := h.users.Get(h.capability(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req services.CreateUserRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	identity, err := h.users.Create(h.capability(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Message: "User created successfully", Data: identity})
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req services.UpdateUserRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	identity, err := h.users.Update(h.capability(r), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Message: "User updated successfully", Data: identity})
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(h.capability(r), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Message: "User deleted successfully"})
}

func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pagination(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	isActive, err := queryBool(r, "isActive")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rooms, err := h.rooms.List(h.capability(r), repositories.RoomFilter{IsActive: isActive, Page: page, Limit: limit})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.rooms.Get(h.capability(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req services.CreateRoomRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	room, err := h.rooms.Create(h.capability(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Message: "Room created successfully", Data: room})
}

func (h *Handler) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	var req services.UpdateRoomRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	room, err := h.rooms.Update(h.capability(r), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Message: "Room updated successfully", Data: room})
}

func (h *Handler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	if err := h.rooms.Delete(h.capability(r), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Message: "Room and all associated messages deleted successfully"})
}

func pagination(r *http.Request) (int, int, error) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	limit, err := queryInt(r, "limit", defaultPageLimit)
	if err != nil {
		return 0, 0, err
	}
	return max(page, 1), limit, nil
}
