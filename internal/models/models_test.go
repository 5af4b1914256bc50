package models

import (
	"encoding/json"
	"testing"
)

func TestJSONBMarshal(t *testing.T) {
	j := JSONB{
		"video_url": "https://example.com/merged.mp4",
		"frames":    300,
	}

	data, err := j.Value()
	if err != nil {
		t.Fatalf("failed to marshal JSONB: %v", err)
	}

	if data == nil {
		t.Fatal("expected non-nil data")
	}

	// Verify it's valid JSON
	var result map[string]interface{}
	if err := json.Unmarshal(data.([]byte), &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["video_url"] != "https://example.com/merged.mp4" {
		t.Errorf("unexpected video_url: %v", result["video_url"])
	}
}

func TestJSONBScan(t *testing.T) {
	jsonData := []byte(`{"scene_id": "scene-1", "progress": 42}`)

	var j JSONB
	if err := j.Scan(jsonData); err != nil {
		t.Fatalf("failed to scan: %v", err)
	}

	if j["scene_id"] != "scene-1" {
		t.Errorf("expected scene_id=scene-1, got %v", j["scene_id"])
	}

	if j["progress"].(float64) != 42 {
		t.Errorf("expected progress=42, got %v", j["progress"])
	}
}

func TestJSONBScanNil(t *testing.T) {
	j := JSONB{"stale": true}
	if err := j.Scan(nil); err != nil {
		t.Fatalf("failed to scan nil: %v", err)
	}
	if j != nil {
		t.Errorf("expected nil JSONB after scanning NULL, got %v", j)
	}
}

func TestTaskStatus(t *testing.T) {
	statuses := []TaskStatus{
		TaskStatusPending,
		TaskStatusProcessing,
		TaskStatusCompleted,
		TaskStatusFailed,
		TaskStatusCancelled,
	}

	for _, status := range statuses {
		if status == "" {
			t.Errorf("empty status found")
		}
	}
}

func TestTaskType(t *testing.T) {
	types := []TaskType{
		TaskTypeGenerateScenario,
		TaskTypeRemoveBackground,
		TaskTypeCompositeImage,
		TaskTypeMergeVideo,
		TaskTypeGenerateShadow,
	}

	for _, tt := range types {
		if tt == "" {
			t.Errorf("empty task type found")
		}
	}
}
