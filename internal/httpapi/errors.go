package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/DoyleJ11/bazinga-client/internal/engine"
	"github.com/DoyleJ11/bazinga-client/internal/hub"
	"github.com/DoyleJ11/bazinga-client/internal/rooms"
	"github.com/DoyleJ11/bazinga-client/internal/session"
)

var (
	ErrBadRequest = errors.New("bad request")
	ErrNoJournal  = errors.New("no journal for session")
)

// statusFor maps an error to the status the local API answers with.
func statusFor(err error) int {
	var apiErr *rooms.APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.StatusCode
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, hub.ErrNoSession), errors.Is(err, ErrNoJournal):
		return http.StatusNotFound
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone
	case errors.Is(err, session.ErrIdentityUnknown),
		errors.Is(err, session.ErrNoQuestion),
		errors.Is(err, session.ErrEmptyAnswer),
		errors.Is(err, engine.ErrResetNotAllowed),
		errors.Is(err, hub.ErrSessionExists),
		errors.Is(err, rooms.ErrPlayerNotInRoom):
		return http.StatusConflict
	case errors.Is(err, session.ErrDialFailed):
		return http.StatusBadGateway
	case errors.Is(err, hub.ErrHubClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeError answers with {"detail": ...}, the game server's error shape.
func writeError(w http.ResponseWriter, err error) {
	var apiErr *rooms.APIError
	if errors.As(err, &apiErr) {
		writeDetail(w, apiErr.StatusCode, apiErr.Detail)
		return
	}
	writeDetail(w, statusFor(err), err.Error())
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
