package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Enums
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

type TaskType string

const (
	TaskTypeGenerateScenario TaskType = "generate_scenario"
	TaskTypeRemoveBackground TaskType = "remove_background"
	TaskTypeCompositeImage   TaskType = "composite_image"
	TaskTypeMergeVideo       TaskType = "merge_video"
	TaskTypeGenerateShadow   TaskType = "generate_shadow"
)

type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusAbandoned SessionStatus = "abandoned"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Models

// Task is one unit of background work. Progress runs 0-100; Step names
// the stage currently executing so clients can render a meaningful
// status line while polling.
type Task struct {
	ID           uuid.UUID  `json:"id"`
	Type         TaskType   `json:"type"`
	Status       TaskStatus `json:"status"`
	Progress     int        `json:"progress"`
	Step         *string    `json:"step,omitempty"`
	UserID       *string    `json:"user_id,omitempty"`
	SessionID    *uuid.UUID `json:"session_id,omitempty"`
	SceneID      *string    `json:"scene_id,omitempty"`
	Payload      JSONB      `json:"payload,omitempty"`
	Result       JSONB      `json:"result,omitempty"`
	ResultURL    *string    `json:"result_url,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	Attempts     int        `json:"attempts"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Session groups the tasks of one video-creation flow for a user:
// scenario generation, per-scene image work, and the final merges.
type Session struct {
	ID         uuid.UUID     `json:"id"`
	UserID     string        `json:"user_id"`
	ProductID  *string       `json:"product_id,omitempty"`
	Status     SessionStatus `json:"status"`
	ScenarioID *string       `json:"scenario_id,omitempty"`
	Metadata   JSONB         `json:"metadata,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Scene is one 8-second beat of a generated scenario, tracking the
// image and video artifacts produced for it.
type Scene struct {
	ID                string     `json:"id"`
	SessionID         *uuid.UUID `json:"session_id,omitempty"`
	Description       string     `json:"description"`
	DurationSec       int        `json:"duration_sec"`
	ImagePrompt       string     `json:"image_prompt"`
	VisualPrompt      *string    `json:"visual_prompt,omitempty"`
	TextOverlayPrompt *string    `json:"text_overlay_prompt,omitempty"`
	ImageURL          *string    `json:"image_url,omitempty"`
	GeneratedVideoURL *string    `json:"generated_video_url,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// DTOs for API requests/responses

type CreateTaskResponse struct {
	TaskID uuid.UUID  `json:"task_id"`
	Status TaskStatus `json:"status"`
}

type TaskStatusResponse struct {
	TaskID       uuid.UUID  `json:"task_id"`
	Type         TaskType   `json:"type"`
	Status       TaskStatus `json:"status"`
	Progress     int        `json:"progress"`
	Step         *string    `json:"step,omitempty"`
	ResultURL    *string    `json:"result_url,omitempty"`
	Result       JSONB      `json:"result,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type GenerateScenarioRequest struct {
	UserID         string   `json:"user_id"`
	ProductName    string   `json:"product_name"`
	ProductInfo    *string  `json:"product_info,omitempty"`
	ProductImages  []string `json:"product_images,omitempty"`
	Style          *string  `json:"style,omitempty"` // "modern", "vintage", "minimal", ...
	Mood           *string  `json:"mood,omitempty"`  // "energetic", "calm", "luxurious", ...
	TargetAudience *string  `json:"target_audience,omitempty"`
	Language       *string  `json:"language,omitempty"` // ISO 639-1, default "en"
}

type RemoveBackgroundRequest struct {
	UserID   string  `json:"user_id"`
	ImageURL string  `json:"image_url"`
	SceneID  *string `json:"scene_id,omitempty"`
}

type CompositeImageRequest struct {
	UserID        string `json:"user_id"`
	BackgroundURL string `json:"background_url"`
	OverlayURL    string `json:"overlay_url"`
	SceneID       string `json:"scene_id"`
	ResizeOverlay *bool  `json:"resize_overlay,omitempty"` // default true
}

type GenerateShadowRequest struct {
	UserID   string `json:"user_id"`
	ImageURL string `json:"image_url"`
}

// MergeVideoRequest drives the compositing pipeline: the product
// cut-out is overlaid on the background video with animated scale and
// placement. Defaults: scale 0.4, position center, full source length,
// animation on.
type MergeVideoRequest struct {
	UserID          string   `json:"user_id"`
	SceneID         string   `json:"scene_id"`
	ProductImageURL string   `json:"product_image_url"`
	VideoURL        string   `json:"video_url"`
	Scale           *float64 `json:"scale,omitempty"`
	Position        *string  `json:"position,omitempty"` // center|top|bottom|left|right
	Duration        *int     `json:"duration,omitempty"` // seconds, 0/absent = full length
	Animate         *bool    `json:"animate,omitempty"`  // default true
}
