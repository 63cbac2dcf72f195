package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"planningpoker/internal/service"
)

// RoundHandler handles the voting round of a story
type RoundHandler struct {
	rounds *service.RoundService
	logger *zap.Logger
}

// NewRoundHandler creates a new round handler
func NewRoundHandler(rounds *service.RoundService, logger *zap.Logger) *RoundHandler {
	return &RoundHandler{rounds: rounds, logger: orNop(logger)}
}

// Start godoc
// @Summary Open voting on a story
// @Tags rounds
// @Produce json
// @Security BearerAuth
// @Param storyId path string true "Story id"
// @Success 200 {object} model.Story
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /stories/{storyId}/start [post]
func (h *RoundHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	story, err := h.rounds.StartVoting(r.Context(), id, mux.Vars(r)["storyId"])
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, story)
}

// SubmitVoteRequest is the request body for casting a vote
type SubmitVoteRequest struct {
	Value   int    `json:"value"`
	Comment string `json:"comment,omitempty"`
}

// SubmitVote godoc
// @Summary Cast a vote
// @Description value must be one of 1, 2, 3, 5, 8, 13, 21. One vote per developer.
// @Tags rounds
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param storyId path string true "Story id"
// @Param body body SubmitVoteRequest true "Vote"
// @Success 201 {object} model.Vote
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /stories/{storyId}/votes [post]
func (h *RoundHandler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req SubmitVoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	vote, err := h.rounds.SubmitVote(r.Context(), id, mux.Vars(r)["storyId"], req.Value, req.Comment)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, vote)
}

// Votes handles GET /v1/stories/{storyId}/votes
// @Summary List votes
// @Description Other developers' cards are hidden until the round is completed.
// @Tags rounds
// @Produce json
// @Security BearerAuth
// @Param storyId path string true "Story id"
// @Success 200 {array} model.Vote
// @Failure 404 {object} ErrorResponse
// @Router /stories/{storyId}/votes [get]
func (h *RoundHandler) Votes(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	votes, err := h.rounds.Votes(r.Context(), id, mux.Vars(r)["storyId"])
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, votes)
}

// UserVote handles GET /v1/stories/{storyId}/votes/{userId}
// @Summary Get one developer's vote
// @Tags rounds
// @Produce json
// @Security BearerAuth
// @Param storyId path string true "Story id"
// @Param userId path string true "User id"
// @Success 200 {object} model.Vote
// @Failure 404 {object} ErrorResponse
// @Router /stories/{storyId}/votes/{userId} [get]
func (h *RoundHandler) UserVote(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	vote, err := h.rounds.UserVote(r.Context(), id, vars["storyId"], vars["userId"])
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, vote)
}

// Reveal godoc
// @Summary Reveal the votes and record the final estimate
// @Tags rounds
// @Produce json
// @Security BearerAuth
// @Param storyId path string true "Story id"
// @Success 200 {object} model.RevealResult
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /stories/{storyId}/reveal [post]
func (h *RoundHandler) Reveal(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	result, err := h.rounds.Reveal(r.Context(), id, mux.Vars(r)["storyId"])
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Status godoc
// @Summary Round status
// @Description Who has voted and how many seconds are left. Clients without a websocket poll this.
// @Tags rounds
// @Produce json
// @Security BearerAuth
// @Param storyId path string true "Story id"
// @Success 200 {object} model.RoundStatus
// @Failure 404 {object} ErrorResponse
// @Router /stories/{storyId}/round [get]
func (h *RoundHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.rounds.Status(r.Context(), mux.Vars(r)["storyId"])
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
