package handler

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"planningpoker/internal/service"
)

// UserHandler exposes the participant directory
type UserHandler struct {
	directory *service.DirectoryService
	logger    *zap.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(directory *service.DirectoryService, logger *zap.Logger) *UserHandler {
	return &UserHandler{directory: directory, logger: orNop(logger)}
}

// Developers handles GET /v1/users/developers
// @Summary List developers
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.User
// @Router /users/developers [get]
func (h *UserHandler) Developers(w http.ResponseWriter, r *http.Request) {
	users, err := h.directory.ListDevelopers(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// Details handles GET /v1/users/details?ids=a,b
// @Summary Resolve users by id
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param ids query string true "Comma separated user ids"
// @Success 200 {array} model.User
// @Failure 400 {object} ErrorResponse
// @Router /users/details [get]
func (h *UserHandler) Details(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "ids is required")
		return
	}

	users, err := h.directory.Resolve(r.Context(), ids)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}
