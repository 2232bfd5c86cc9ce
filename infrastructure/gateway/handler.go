package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/havaian/gossip/domain"
	"github.com/havaian/gossip/moderation"
	"github.com/havaian/gossip/services"
	"github.com/havaian/gossip/sink"
)

// Handler translates HTTP calls into engine and service operations.
type Handler struct {
	log      *slog.Logger
	access   services.IAccessService
	users    *services.UserService
	rooms    *services.RoomService
	engine   *moderation.Engine
	timeline *sink.Timeline
}

func NewHandler(
	log *slog.Logger,
	access services.IAccessService,
	users *services.UserService,
	rooms *services.RoomService,
	engine *moderation.Engine,
	timeline *sink.Timeline,
) *Handler {
	return &Handler{
		log:      log,
		access:   access,
		users:    users,
		rooms:    rooms,
		engine:   engine,
		timeline: timeline,
	}
}

func (h *Handler) capability(r *http.Request) domain.Capability {
	return h.access.CapabilityOf(identityFrom(r))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(h.log, w, r, err)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}
