package gateway

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 64 * 1024

// NewRouter wires the whole request surface. realtime serves the websocket endpoint.
func NewRouter(log *slog.Logger, h *Handler, realtime http.Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(Metrics)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(Logger(log))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestSize(maxBodyBytes))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", h.Health)
	if realtime != nil {
		r.Handle("/ws", realtime)
	}

	auth := RequireAuth(log, h.access)
	admin := RequireAdmin(log, h.access)

	r.Route("/api/public/rooms/{id}", func(r chi.Router) {
		r.Get("/", h.PublicRoom)
		r.Post("/message", h.SubmitMessage)
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Get("/verify-token", h.VerifyToken)
		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Get("/me", h.Me)
			r.Post("/change-password", h.ChangePassword)
			r.Post("/refresh-token", h.RefreshToken)
			r.With(admin).Post("/register", h.Register)
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(auth, admin)
		r.Get("/stats", h.Stats)

		r.Get("/users", h.ListUsers)
		r.Post("/users", h.CreateUser)
		r.Get("/users/{id}", h.GetUser)
		r.Put("/users/{id}", h.UpdateUser)
		r.Delete("/users/{id}", h.DeleteUser)

		r.Get("/rooms", h.ListRooms)
		r.Post("/rooms", h.CreateRoom)
		r.Get("/rooms/{id}", h.GetRoom)
		r.Put("/rooms/{id}", h.UpdateRoom)
		r.Delete("/rooms/{id}", h.DeleteRoom)
	})

	r.Route("/api/rooms/{id}", func(r chi.Router) {
		r.Use(auth)
		r.Get("/", h.RoomDetails)
		r.Get("/current-message", h.CurrentMessage)
		r.Get("/history", h.DisplayHistory)
		r.Get("/search", h.SearchMessages)
		r.Get("/messages", h.ListMessages)
		r.Delete("/messages", h.ClearMessages)
		r.Patch("/messages/{messageId}/approve", h.ApproveMessage)
		r.Patch("/messages/{messageId}/reject", h.RejectMessage)
		r.Patch("/messages/{messageId}/display", h.DisplayMessage)
		r.Patch("/toggle-accepting", h.ToggleAccepting)
	})

	return r
}
