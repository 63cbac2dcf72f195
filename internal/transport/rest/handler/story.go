package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"planningpoker/internal/service"
)

// StoryHandler handles story endpoints
type StoryHandler struct {
	storySvc *service.StoryService
	logger   *zap.Logger
}

// NewStoryHandler creates a new story handler
func NewStoryHandler(storySvc *service.StoryService, logger *zap.Logger) *StoryHandler {
	return &StoryHandler{storySvc: storySvc, logger: orNop(logger)}
}

// CreateStoryRequest is the request body for creating a story
type CreateStoryRequest struct {
	SessionID       string `json:"sessionId"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	TimeLimit       int    `json:"timeLimit"`
	InitialEstimate *int   `json:"initialEstimate,omitempty"`
}

// Create godoc
// @Summary Create a story
// @Description Adds a pending story to a session. timeLimit is in minutes.
// @Tags stories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateStoryRequest true "Story"
// @Success 201 {object} model.Story
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /stories [post]
func (h *StoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req CreateStoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	story, err := h.storySvc.Create(r.Context(), id, service.CreateStoryInput{
		SessionID:        req.SessionID,
		Title:            req.Title,
		Description:      req.Description,
		TimeLimitMinutes: req.TimeLimit,
		InitialEstimate:  req.InitialEstimate,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, story)
}

// List godoc
// @Summary List the stories of a session
// @Tags stories
// @Produce json
// @Security BearerAuth
// @Param sessionId query string true "Session id"
// @Success 200 {array} model.Story
// @Failure 400 {object} ErrorResponse
// @Router /stories [get]
func (h *StoryHandler) List(w http.ResponseWriter, r *http.Request) {
	stories, err := h.storySvc.ListBySession(r.Context(), r.URL.Query().Get("sessionId"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stories)
}

// Get handles GET /v1/stories/{storyId}
// @Summary Get a story
// @Tags stories
// @Produce json
// @Security BearerAuth
// @Param storyId path string true "Story id"
// @Success 200 {object} model.Story
// @Failure 404 {object} ErrorResponse
// @Router /stories/{storyId} [get]
func (h *StoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	story, err := h.storySvc.Get(r.Context(), mux.Vars(r)["storyId"])
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, story)
}

// Delete godoc
// @Summary Delete a story and its votes
// @Tags stories
// @Security BearerAuth
// @Param storyId path string true "Story id"
// @Success 204
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /stories/{storyId} [delete]
func (h *StoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.storySvc.Delete(r.Context(), id, mux.Vars(r)["storyId"]); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
