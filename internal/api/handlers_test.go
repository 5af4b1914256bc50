package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/promoforge/promoforge/internal/models"
	"github.com/promoforge/promoforge/internal/tasks"
)

func newTestHandler() (*Handler, *tasks.MemoryStore) {
	store := tasks.NewMemoryStore()
	// Queue is nil: validation tests never reach the enqueue step.
	return NewHandler(store, nil, nil), store
}

func postJSON(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestGenerateScenarioValidation(t *testing.T) {
	h, _ := newTestHandler()

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", "{not json"},
		{"missing user", `{"product_name":"coffee"}`},
		{"missing product", `{"user_id":"u1"}`},
		{"blank product", `{"user_id":"u1","product_name":"   "}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, h.GenerateScenario, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestMergeVideoValidation(t *testing.T) {
	h, _ := newTestHandler()

	base := `"user_id":"u1","product_image_url":"https://cdn/p.png","video_url":"https://cdn/v.mp4"`
	cases := []struct {
		name string
		body string
	}{
		{"missing urls", `{"user_id":"u1"}`},
		{"scale zero", `{` + base + `,"scale":0}`},
		{"scale above one", `{` + base + `,"scale":1.5}`},
		{"bad position", `{` + base + `,"position":"middle"}`},
		{"negative duration", `{` + base + `,"duration":-3}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, h.MergeVideo, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestValidPosition(t *testing.T) {
	for _, p := range []string{"center", "top", "bottom", "left", "right"} {
		if !validPosition(p) {
			t.Errorf("validPosition(%q) = false", p)
		}
	}
	for _, p := range []string{"", "middle", "CENTER", "top-left"} {
		if validPosition(p) {
			t.Errorf("validPosition(%q) = true", p)
		}
	}
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestGetTask(t *testing.T) {
	h, store := newTestHandler()

	task := &models.Task{
		ID:     uuid.New(),
		Type:   models.TaskTypeMergeVideo,
		Status: models.TaskStatusPending,
	}
	if err := store.Create(context.Background(), task); err != nil {
		t.Fatalf("create: %v", err)
	}

	req := httptest.NewRequest("GET", "/v1/tasks/"+task.ID.String(), nil)
	req = withURLParam(req, "id", task.ID.String())
	rec := httptest.NewRecorder()
	h.GetTask(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp models.TaskStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TaskID != task.ID || resp.Status != models.TaskStatusPending {
		t.Errorf("got %+v", resp)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest("GET", "/v1/tasks/"+uuid.NewString(), nil)
	req = withURLParam(req, "id", uuid.NewString())
	rec := httptest.NewRecorder()
	h.GetTask(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCancelFinishedTaskConflicts(t *testing.T) {
	h, store := newTestHandler()

	task := &models.Task{
		ID:     uuid.New(),
		Type:   models.TaskTypeRemoveBackground,
		Status: models.TaskStatusPending,
	}
	if err := store.Create(context.Background(), task); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Complete(context.Background(), task.ID, nil, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}

	req := httptest.NewRequest("DELETE", "/v1/tasks/"+task.ID.String(), nil)
	req = withURLParam(req, "id", task.ID.String())
	rec := httptest.NewRecorder()
	h.CancelTask(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}
