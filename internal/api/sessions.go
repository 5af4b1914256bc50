package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/promoforge/promoforge/internal/models"
	"github.com/promoforge/promoforge/internal/queue"
)

// SessionStore is the slice of the database layer the read endpoints
// need. Satisfied by *db.DB; nil when the service runs on the in-memory
// task store.
type SessionStore interface {
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	UpdateSessionStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus) error
	GetScene(ctx context.Context, id string) (*models.Scene, error)
}

// GetSession handles GET /v1/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		respondError(w, http.StatusServiceUnavailable, "Session storage not configured")
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid session ID")
		return
	}

	session, err := h.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Session not found")
		return
	}

	respondJSON(w, http.StatusOK, session)
}

// UpdateSessionStatus handles PATCH /v1/sessions/{id}. The frontend
// marks a session completed once the user exports, or abandoned when
// they walk away.
func (h *Handler) UpdateSessionStatus(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		respondError(w, http.StatusServiceUnavailable, "Session storage not configured")
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid session ID")
		return
	}

	var req struct {
		Status models.SessionStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !validSessionStatus(req.Status) {
		respondError(w, http.StatusBadRequest, "status must be one of active, completed, abandoned")
		return
	}

	if _, err := h.sessions.GetSession(r.Context(), sessionID); err != nil {
		respondError(w, http.StatusNotFound, "Session not found")
		return
	}
	if err := h.sessions.UpdateSessionStatus(r.Context(), sessionID, req.Status); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update session")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"status":     req.Status,
	})
}

// GetScene handles GET /v1/scenes/{id}
func (h *Handler) GetScene(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		respondError(w, http.StatusServiceUnavailable, "Session storage not configured")
		return
	}

	sceneID := chi.URLParam(r, "id")
	if sceneID == "" {
		respondError(w, http.StatusBadRequest, "Invalid scene ID")
		return
	}

	scene, err := h.sessions.GetScene(r.Context(), sceneID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Scene not found")
		return
	}

	respondJSON(w, http.StatusOK, scene)
}

// QueueDepths handles GET /v1/queues: pending job count per queue, for
// operational dashboards.
func (h *Handler) QueueDepths(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		respondError(w, http.StatusServiceUnavailable, "Queue not configured")
		return
	}

	queues := []string{
		queue.QueueGenerateScenario,
		queue.QueueRemoveBackground,
		queue.QueueCompositeImage,
		queue.QueueMergeVideo,
		queue.QueueGenerateShadow,
	}

	depths := make(map[string]int64, len(queues))
	for _, name := range queues {
		n, err := h.queue.GetQueueLength(r.Context(), name)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to read queue length")
			return
		}
		depths[name] = n
	}

	respondJSON(w, http.StatusOK, depths)
}

func validSessionStatus(s models.SessionStatus) bool {
	switch s {
	case models.SessionStatusActive, models.SessionStatusCompleted, models.SessionStatusAbandoned:
		return true
	}
	return false
}
