package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/promoforge/promoforge/internal/models"
)

// fakeSessionStore backs the session endpoints in tests without a
// database.
type fakeSessionStore struct {
	sessions map[uuid.UUID]*models.Session
	scenes   map[string]*models.Scene
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		sessions: make(map[uuid.UUID]*models.Session),
		scenes:   make(map[string]*models.Scene),
	}
}

func (f *fakeSessionStore) GetSession(_ context.Context, id uuid.UUID) (*models.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session not found")
	}
	return s, nil
}

func (f *fakeSessionStore) UpdateSessionStatus(_ context.Context, id uuid.UUID, status models.SessionStatus) error {
	s, ok := f.sessions[id]
	if !ok {
		return fmt.Errorf("session not found")
	}
	s.Status = status
	return nil
}

func (f *fakeSessionStore) GetScene(_ context.Context, id string) (*models.Scene, error) {
	s, ok := f.scenes[id]
	if !ok {
		return nil, fmt.Errorf("scene not found")
	}
	return s, nil
}

func TestGetSession(t *testing.T) {
	store := newFakeSessionStore()
	session := &models.Session{
		ID:     uuid.New(),
		UserID: "u1",
		Status: models.SessionStatusActive,
	}
	store.sessions[session.ID] = session
	h := NewHandler(nil, nil, store)

	req := httptest.NewRequest("GET", "/v1/sessions/"+session.ID.String(), nil)
	req = withURLParam(req, "id", session.ID.String())
	rec := httptest.NewRecorder()
	h.GetSession(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got models.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != session.ID || got.Status != models.SessionStatusActive {
		t.Errorf("got %+v", got)
	}
}

func TestGetSessionWithoutDatabase(t *testing.T) {
	h := NewHandler(nil, nil, nil)

	req := httptest.NewRequest("GET", "/v1/sessions/"+uuid.NewString(), nil)
	req = withURLParam(req, "id", uuid.NewString())
	rec := httptest.NewRecorder()
	h.GetSession(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestUpdateSessionStatus(t *testing.T) {
	store := newFakeSessionStore()
	session := &models.Session{
		ID:     uuid.New(),
		UserID: "u1",
		Status: models.SessionStatusActive,
	}
	store.sessions[session.ID] = session
	h := NewHandler(nil, nil, store)

	req := httptest.NewRequest("PATCH", "/v1/sessions/"+session.ID.String(),
		strings.NewReader(`{"status":"completed"}`))
	req = withURLParam(req, "id", session.ID.String())
	rec := httptest.NewRecorder()
	h.UpdateSessionStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if session.Status != models.SessionStatusCompleted {
		t.Errorf("session status = %v, want completed", session.Status)
	}
}

func TestUpdateSessionStatusRejectsUnknownStatus(t *testing.T) {
	store := newFakeSessionStore()
	session := &models.Session{ID: uuid.New(), UserID: "u1", Status: models.SessionStatusActive}
	store.sessions[session.ID] = session
	h := NewHandler(nil, nil, store)

	for _, body := range []string{`{"status":"paused"}`, `{"status":""}`, `{not json`} {
		req := httptest.NewRequest("PATCH", "/v1/sessions/"+session.ID.String(), strings.NewReader(body))
		req = withURLParam(req, "id", session.ID.String())
		rec := httptest.NewRecorder()
		h.UpdateSessionStatus(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
	if session.Status != models.SessionStatusActive {
		t.Errorf("session status changed to %v", session.Status)
	}
}

func TestGetScene(t *testing.T) {
	store := newFakeSessionStore()
	scene := &models.Scene{
		ID:          "scene-1",
		Description: "opening shot",
		DurationSec: 8,
		ImagePrompt: "sunlit kitchen counter",
	}
	store.scenes[scene.ID] = scene
	h := NewHandler(nil, nil, store)

	req := httptest.NewRequest("GET", "/v1/scenes/scene-1", nil)
	req = withURLParam(req, "id", "scene-1")
	rec := httptest.NewRecorder()
	h.GetScene(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got models.Scene
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "scene-1" || got.DurationSec != 8 {
		t.Errorf("got %+v", got)
	}
}

func TestGetSceneNotFound(t *testing.T) {
	h := NewHandler(nil, nil, newFakeSessionStore())

	req := httptest.NewRequest("GET", "/v1/scenes/missing", nil)
	req = withURLParam(req, "id", "missing")
	rec := httptest.NewRecorder()
	h.GetScene(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestQueueDepthsWithoutQueue(t *testing.T) {
	h := NewHandler(nil, nil, nil)

	req := httptest.NewRequest("GET", "/v1/queues", nil)
	rec := httptest.NewRecorder()
	h.QueueDepths(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
