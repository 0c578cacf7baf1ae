package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"prepdeck/internal/apperrors"
	"prepdeck/internal/service"
)

// SessionHandler handles session endpoints
type SessionHandler struct {
	sessionSvc *service.SessionService
	logger     *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionSvc *service.SessionService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessionSvc: sessionSvc,
		logger:     logger,
	}
}

// Start handles POST /v1/sessions
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req service.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.sessionSvc.Start(r.Context(), &req)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// Get handles GET /v1/sessions/{sessionId}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	session, err := h.sessionSvc.Get(r.Context(), sessionID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// SubmitAnswerRequest is the request body for submitting an answer
type SubmitAnswerRequest struct {
	AnswerText string `json:"answerText"`
	// WhiteboardText is an optional textual rendering of a drawn artifact,
	// analyzed together with the answer.
	WhiteboardText string `json:"whiteboardText,omitempty"`
}

// SubmitAnswer handles POST /v1/sessions/{sessionId}/answers
func (h *SessionHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	var req SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.sessionSvc.SubmitAnswer(r.Context(), sessionID, req.AnswerText, req.WhiteboardText)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HintRequest is the request body for requesting a hint
type HintRequest struct {
	AttemptNumber int `json:"attemptNumber"`
}

// RequestHint handles POST /v1/sessions/{sessionId}/hints
func (h *SessionHandler) RequestHint(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	var req HintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	hint, err := h.sessionSvc.RequestHint(r.Context(), sessionID, req.AttemptNumber)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"hint": hint})
}

// Skip handles POST /v1/sessions/{sessionId}/skip
func (h *SessionHandler) Skip(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	result, err := h.sessionSvc.NextQuestion(r.Context(), sessionID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// End handles POST /v1/sessions/{sessionId}/end
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	session, err := h.sessionSvc.End(r.Context(), sessionID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// AbandonRequest is the request body for abandoning a session
type AbandonRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Abandon handles POST /v1/sessions/{sessionId}/abandon
func (h *SessionHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	var req AbandonRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	session, err := h.sessionSvc.Abandon(r.Context(), sessionID, req.Reason)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *SessionHandler) fail(w http.ResponseWriter, err error) {
	if apperrors.CodeOf(err) == "" {
		h.logger.Error("unhandled error", zap.Error(err))
	}
	writeAppError(w, err)
}
