package gateway

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/havaian/gossip/errors"
)

// envelope wraps the result of a mutation with a human readable message.
type envelope struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type errorBody struct {
	Code    string      `json:"code"`
	Kind    errors.Kind `json:"kind"`
	Message string      `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError renders a domain error. Internal failures are logged with their
// detail and returned with a generic message.
func writeError(log *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	public := errors.Public(err)
	if public.Kind == errors.KindInternal {
		log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, errors.MapToHTTPStatus(public), errorBody{Code: public.Code, Kind: public.Kind, Message: public.Message})
}

func decode(r *http.Request, into any) error {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return fmt.Errorf("%w: malformed body", errors.ErrInvalidInput)
	}
	return nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%w: %s must be a positive number", errors.ErrInvalidInput, name)
	}
	return value, nil
}

func queryBool(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be true or false", errors.ErrInvalidInput, name)
	}
	return &value, nil
}
