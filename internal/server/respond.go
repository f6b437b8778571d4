package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pagefold/bindery/internal/collection"
	"github.com/pagefold/bindery/internal/rendering"
)

func contextWithSession(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, sessionKey, sid)
}

func sessionFrom(ctx context.Context) string {
	sid, _ := ctx.Value(sessionKey).(string)
	return sid
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain errors onto HTTP statuses. Bad input is the
// client's fault, a protocol violation from the render service is the
// upstream's, everything else is ours.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, collection.ErrBadTitle), errors.Is(err, collection.ErrLimitExceeded):
		status = http.StatusBadRequest
	case errors.Is(err, collection.ErrNotFound), errors.Is(err, collection.ErrPageMissing):
		status = http.StatusNotFound
	case errors.Is(err, rendering.ErrUnexpectedState):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// decodeBody parses a JSON request body, reporting a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}
