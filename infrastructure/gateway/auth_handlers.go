package gateway

import (
	"net/http"

	"github.com/havaian/gossip/services"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	session, err := h.access.Login(req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// Register is the admin shortcut to create an operator account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusCreated, envelope{Message: "User registered successfully", Data: identity})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	identity, err := h.access.Me(identityFrom(r).ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.access.ChangePassword(identityFrom(r).ID, req.CurrentPassword, req.NewPassword); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Message: "Password changed successfully"})
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	session, err := h.access.Refresh(identityFrom(r).ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	verification, err := h.access.Verify(bearerToken(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verification)
}
