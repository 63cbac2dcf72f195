package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"planningpoker/internal/service"
)

// SessionHandler handles planning session endpoints
type SessionHandler struct {
	sessionSvc *service.SessionService
	storySvc   *service.StoryService
	logger     *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionSvc *service.SessionService, storySvc *service.StoryService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessionSvc: sessionSvc, storySvc: storySvc, logger: orNop(logger)}
}

// CreateSessionRequest is the request body for creating a session
type CreateSessionRequest struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Participants []string `json:"participants"`
}

// Create godoc
// @Summary Create a planning session
// @Tags sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateSessionRequest true "Session"
// @Success 201 {object} model.Session
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /sessions [post]
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.sessionSvc.Create(r.Context(), id, service.CreateSessionInput{
		Name:         req.Name,
		Description:  req.Description,
		Participants: req.Participants,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// List godoc
// @Summary List active sessions
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Session
// @Router /sessions [get]
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessionSvc.ListActive(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// Get handles GET /v1/sessions/{sessionId}
// @Summary Get a session
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session id"
// @Success 200 {object} model.Session
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{sessionId} [get]
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessionSvc.Get(r.Context(), mux.Vars(r)["sessionId"])
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// Stories handles GET /v1/sessions/{sessionId}/stories
// @Summary List the stories of a session
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session id"
// @Success 200 {array} model.Story
// @Router /sessions/{sessionId}/stories [get]
func (h *SessionHandler) Stories(w http.ResponseWriter, r *http.Request) {
	stories, err := h.storySvc.ListBySession(r.Context(), mux.Vars(r)["sessionId"])
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stories)
}
