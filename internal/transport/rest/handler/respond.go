package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"planningpoker/internal/model"
	"planningpoker/internal/service"
	"planningpoker/internal/transport/rest/middleware"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeDomainError maps service errors to HTTP statuses. Storage failures are
// logged and hidden behind a generic message.
func writeDomainError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var storage *service.StorageError
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrAlreadyVoted),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrRoundClosed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &storage):
		logger.Error("storage failure", zap.String("op", storage.Op), zap.Error(storage.Err))
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// caller returns the authenticated identity or writes 401
func caller(w http.ResponseWriter, r *http.Request) (model.Identity, bool) {
	id, ok := middleware.GetIdentity(r.Context())
	if !ok || id.UserID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return model.Identity{}, false
	}
	return id, true
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
