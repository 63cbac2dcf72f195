package handler

import (
	"net/http"

	"go.uber.org/zap"

	"planningpoker/internal/model"
	"planningpoker/internal/service"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authSvc *service.AuthService
	logger  *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authSvc *service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, logger: orNop(logger)}
}

// Login godoc
// @Summary Log in
// @Description Exchanges email and password for a bearer token and the user session.
// @Tags auth
// @Accept json
// @Produce json
// @Param body body model.LoginRequest true "Credentials"
// @Success 200 {object} model.LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Me handles GET /v1/auth/me
// @Summary Current caller
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.Identity
// @Failure 401 {object} ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, id)
}
