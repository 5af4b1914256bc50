package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/promoforge/promoforge/internal/compositor"
	"github.com/promoforge/promoforge/internal/models"
	"github.com/promoforge/promoforge/internal/queue"
	"github.com/promoforge/promoforge/internal/tasks"
)

type Handler struct {
	store    tasks.Store
	queue    *queue.Queue
	sessions SessionStore // nil when running without a database
}

func NewHandler(store tasks.Store, q *queue.Queue, sessions SessionStore) *Handler {
	return &Handler{
		store:    store,
		queue:    q,
		sessions: sessions,
	}
}

// GenerateScenario handles POST /v1/scenarios
func (h *Handler) GenerateScenario(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if strings.TrimSpace(req.ProductName) == "" {
		respondError(w, http.StatusBadRequest, "product_name is required")
		return
	}

	h.createTask(w, r, models.TaskTypeGenerateScenario, req.UserID, nil, req)
}

// RemoveBackground handles POST /v1/images/remove-background
func (h *Handler) RemoveBackground(w http.ResponseWriter, r *http.Request) {
	var req models.RemoveBackgroundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.ImageURL == "" {
		respondError(w, http.StatusBadRequest, "image_url is required")
		return
	}

	h.createTask(w, r, models.TaskTypeRemoveBackground, req.UserID, req.SceneID, req)
}

// CompositeImage handles POST /v1/images/composite
func (h *Handler) CompositeImage(w http.ResponseWriter, r *http.Request) {
	var req models.CompositeImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.BackgroundURL == "" || req.OverlayURL == "" {
		respondError(w, http.StatusBadRequest, "background_url and overlay_url are required")
		return
	}

	var sceneID *string
	if req.SceneID != "" {
		sceneID = &req.SceneID
	}
	h.createTask(w, r, models.TaskTypeCompositeImage, req.UserID, sceneID, req)
}

// GenerateShadow handles POST /v1/images/shadow
func (h *Handler) GenerateShadow(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateShadowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.ImageURL == "" {
		respondError(w, http.StatusBadRequest, "image_url is required")
		return
	}

	h.createTask(w, r, models.TaskTypeGenerateShadow, req.UserID, nil, req)
}

// MergeVideo handles POST /v1/videos/merge
func (h *Handler) MergeVideo(w http.ResponseWriter, r *http.Request) {
	var req models.MergeVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.ProductImageURL == "" || req.VideoURL == "" {
		respondError(w, http.StatusBadRequest, "product_image_url and video_url are required")
		return
	}
	if req.Scale != nil && (*req.Scale <= 0 || *req.Scale > 1) {
		respondError(w, http.StatusBadRequest, "scale must be in (0, 1]")
		return
	}
	if req.Position != nil && !validPosition(*req.Position) {
		respondError(w, http.StatusBadRequest, "position must be one of center, top, bottom, left, right")
		return
	}
	if req.Duration != nil && *req.Duration < 0 {
		respondError(w, http.StatusBadRequest, "duration must not be negative")
		return
	}

	var sceneID *string
	if req.SceneID != "" {
		sceneID = &req.SceneID
	}
	h.createTask(w, r, models.TaskTypeMergeVideo, req.UserID, sceneID, req)
}

// GetTask handles GET /v1/tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid task ID")
		return
	}

	task, err := h.store.Get(r.Context(), taskID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Task not found")
		return
	}

	respondJSON(w, http.StatusOK, models.TaskStatusResponse{
		TaskID:       task.ID,
		Type:         task.Type,
		Status:       task.Status,
		Progress:     task.Progress,
		Step:         task.Step,
		ResultURL:    task.ResultURL,
		Result:       task.Result,
		ErrorMessage: task.ErrorMessage,
		CreatedAt:    task.CreatedAt,
		UpdatedAt:    task.UpdatedAt,
	})
}

// CancelTask handles DELETE /v1/tasks/{id}. Cancellation is advisory:
// a task already picked up by the worker finishes its current step, but
// a queued one will be skipped when dequeued.
func (h *Handler) CancelTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid task ID")
		return
	}

	task, err := h.store.Get(r.Context(), taskID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Task not found")
		return
	}
	if task.Status == models.TaskStatusCompleted || task.Status == models.TaskStatusFailed {
		respondError(w, http.StatusConflict, "Task already finished")
		return
	}

	if err := h.store.Cancel(r.Context(), taskID); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to cancel task")
		return
	}

	respondJSON(w, http.StatusOK, models.CreateTaskResponse{
		TaskID: taskID,
		Status: models.TaskStatusCancelled,
	})
}

// createTask persists the task with its request payload and enqueues it.
func (h *Handler) createTask(w http.ResponseWriter, r *http.Request, taskType models.TaskType, userID string, sceneID *string, payload interface{}) {
	payloadJSON, err := toJSONB(payload)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to encode payload")
		return
	}

	task := &models.Task{
		ID:      uuid.New(),
		Type:    taskType,
		Status:  models.TaskStatusPending,
		UserID:  &userID,
		SceneID: sceneID,
		Payload: payloadJSON,
	}

	if err := h.store.Create(r.Context(), task); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create task")
		return
	}

	if err := h.queue.EnqueueTask(r.Context(), taskType, task.ID, userID, sceneID); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to enqueue task")
		return
	}

	respondJSON(w, http.StatusAccepted, models.CreateTaskResponse{
		TaskID: task.ID,
		Status: task.Status,
	})
}

func toJSONB(v interface{}) (models.JSONB, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out models.JSONB
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func validPosition(p string) bool {
	switch compositor.Anchor(p) {
	case compositor.AnchorCenter, compositor.AnchorTop, compositor.AnchorBottom, compositor.AnchorLeft, compositor.AnchorRight:
		return true
	}
	return false
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
