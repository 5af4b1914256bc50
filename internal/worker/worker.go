package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/promoforge/promoforge/internal/compositor"
	"github.com/promoforge/promoforge/internal/credits"
	"github.com/promoforge/promoforge/internal/db"
	"github.com/promoforge/promoforge/internal/models"
	"github.com/promoforge/promoforge/internal/queue"
	"github.com/promoforge/promoforge/internal/services"
	"github.com/promoforge/promoforge/internal/storage"
	"github.com/promoforge/promoforge/internal/tasks"
)

type Worker struct {
	store     tasks.Store
	db        *db.DB // nil when running on the in-memory task store
	queue     *queue.Queue
	storage   *storage.Storage
	scenario  *services.ScenarioService
	removeBg  *services.RemoveBgService
	imageGen  *services.ImageGenService
	shadow    *services.ShadowService
	composite *services.CompositeService
	credits   *credits.Service // nil when credits are disabled
	tempDir   string
	uploadSem chan struct{} // Limits concurrent Supabase uploads to prevent congestion
}

func New(
	store tasks.Store,
	database *db.DB,
	q *queue.Queue,
	stor *storage.Storage,
	scenarioSvc *services.ScenarioService,
	removeBgSvc *services.RemoveBgService,
	imageGenSvc *services.ImageGenService,
	shadowSvc *services.ShadowService,
	compositeSvc *services.CompositeService,
	creditsSvc *credits.Service,
	tempDir string,
) (*Worker, error) {
	// Merge scratch files land here before the pipeline ever runs, so
	// the directory has to exist up front.
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir %s: %w", tempDir, err)
	}
	return &Worker{
		store:     store,
		db:        database,
		queue:     q,
		storage:   stor,
		scenario:  scenarioSvc,
		removeBg:  removeBgSvc,
		imageGen:  imageGenSvc,
		shadow:    shadowSvc,
		composite: compositeSvc,
		credits:   creditsSvc,
		tempDir:   tempDir,
		uploadSem: make(chan struct{}, 4),
	}, nil
}

// uploadWithLimit wraps an upload call with a semaphore so concurrent
// tasks do not congest the storage API.
func (w *Worker) uploadWithLimit(ctx context.Context, label string, fn func() error) error {
	select {
	case w.uploadSem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("upload cancelled while waiting for slot: %w", ctx.Err())
	}
	defer func() { <-w.uploadSem }()

	log.Printf("[Upload] %s uploading...", label)
	return fn()
}

// handlerFunc processes one task and returns its result payload plus an
// optional primary artifact URL.
type handlerFunc func(ctx context.Context, task *models.Task) (models.JSONB, *string, error)

// Start begins processing tasks from all queues.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	log.Printf("Worker started with concurrency: %d", concurrency)

	for i := 0; i < concurrency; i++ {
		go w.processQueue(ctx, queue.QueueGenerateScenario, w.handleGenerateScenario)
		go w.processQueue(ctx, queue.QueueRemoveBackground, w.handleRemoveBackground)
		go w.processQueue(ctx, queue.QueueCompositeImage, w.handleCompositeImage)
		go w.processQueue(ctx, queue.QueueGenerateShadow, w.handleGenerateShadow)
		go w.processQueue(ctx, queue.QueueMergeVideo, w.handleMergeVideo)
	}

	go w.cleanupLoop(ctx)

	<-ctx.Done()
	log.Println("Worker shutting down...")
}

func (w *Worker) processQueue(ctx context.Context, queueName string, handler handlerFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			job, err := w.queue.Dequeue(ctx, queueName, 5*time.Second)
			if err != nil {
				log.Printf("Error dequeuing from %s: %v", queueName, err)
				continue
			}
			if job == nil {
				continue // No job available, retry
			}

			task, err := w.store.Get(ctx, job.TaskID)
			if err != nil {
				log.Printf("Task %s missing for queued job: %v", job.TaskID, err)
				continue
			}
			if task.Status == models.TaskStatusCancelled {
				log.Printf("Task %s cancelled before pickup, skipping", task.ID)
				continue
			}

			log.Printf("Processing task %s (type: %s)", task.ID, task.Type)

			if err := w.store.Start(ctx, task.ID); err != nil {
				log.Printf("Failed to mark task %s processing: %v", task.ID, err)
			}

			result, resultURL, err := handler(ctx, task)
			if err != nil {
				log.Printf("Task %s failed: %v", task.ID, err)
				if ferr := w.store.Fail(ctx, task.ID, err.Error()); ferr != nil {
					log.Printf("Failed to record failure for task %s: %v", task.ID, ferr)
				}
				continue
			}

			if err := w.store.Complete(ctx, task.ID, result, resultURL); err != nil {
				log.Printf("Failed to complete task %s: %v", task.ID, err)
			} else {
				log.Printf("Task %s completed successfully", task.ID)
			}
		}
	}
}

// cleanupLoop prunes finished tasks once an hour.
func (w *Worker) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.store.Cleanup(ctx, time.Now().Add(-7*24*time.Hour))
			if err != nil {
				log.Printf("[Cleanup] Failed to prune tasks: %v", err)
			} else if n > 0 {
				log.Printf("[Cleanup] Pruned %d finished tasks", n)
			}
		}
	}
}

// handleGenerateScenario runs the LLM scenario plan, generates a
// thumbnail, and persists the session and scenes when a database is
// attached.
func (w *Worker) handleGenerateScenario(ctx context.Context, task *models.Task) (models.JSONB, *string, error) {
	var req models.GenerateScenarioRequest
	if err := decodePayload(task.Payload, &req); err != nil {
		return nil, nil, err
	}

	if err := w.checkCredits(ctx, req.UserID, credits.CostGenerateScenario); err != nil {
		return nil, nil, err
	}

	w.progress(ctx, task.ID, 10, "generating_scenario")

	scenario, err := w.scenario.GenerateScenario(ctx, &req)
	if err != nil {
		return nil, nil, err
	}
	scenario.ScenarioID = uuid.NewString()

	w.progress(ctx, task.ID, 60, "generating_thumbnail")

	var thumbnailURL *string
	if thumb, err := w.imageGen.GenerateImage(ctx, scenario.ThumbnailPrompt, "16:9"); err != nil {
		// Thumbnail is decorative; the scenario is still usable without it.
		log.Printf("[Scenario] Thumbnail generation failed for task %s: %v", task.ID, err)
	} else {
		path := storage.UploadedImagePath(req.UserID)
		if err := w.uploadWithLimit(ctx, "thumbnail", func() error {
			return w.storage.Upload(ctx, path, thumb, "image/png")
		}); err != nil {
			log.Printf("[Scenario] Thumbnail upload failed for task %s: %v", task.ID, err)
		} else {
			thumbnailURL = strPtr(w.storage.ResultURL(ctx, path))
		}
	}

	w.progress(ctx, task.ID, 85, "saving")

	var sessionID *uuid.UUID
	if w.db != nil {
		id, err := w.persistScenario(ctx, req.UserID, scenario)
		if err != nil {
			log.Printf("[Scenario] Failed to persist scenario for task %s: %v", task.ID, err)
		} else {
			sessionID = id
		}
	}

	w.deductCredits(ctx, req.UserID, credits.CostGenerateScenario, "generate_scenario")

	result, err := toJSONB(map[string]interface{}{
		"scenario":      scenario,
		"thumbnail_url": thumbnailURL,
		"session_id":    sessionID,
	})
	if err != nil {
		return nil, nil, err
	}
	return result, thumbnailURL, nil
}

// persistScenario records a session and one scene row per planned scene.
func (w *Worker) persistScenario(ctx context.Context, userID string, sc *services.Scenario) (*uuid.UUID, error) {
	session := &models.Session{
		ID:         uuid.New(),
		UserID:     userID,
		Status:     models.SessionStatusActive,
		ScenarioID: &sc.ScenarioID,
	}
	if err := w.db.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	for _, planned := range sc.Scenes {
		scene := &models.Scene{
			ID:           planned.SceneID,
			SessionID:    &session.ID,
			Description:  planned.Description,
			DurationSec:  planned.Duration,
			ImagePrompt:  planned.ImagePrompt,
			VisualPrompt: strPtr(planned.VisualPrompt),
		}
		if planned.OverlayPrompt != "" {
			scene.TextOverlayPrompt = strPtr(planned.OverlayPrompt)
		}
		if err := w.db.CreateScene(ctx, scene); err != nil {
			return nil, fmt.Errorf("failed to create scene %s: %w", planned.SceneID, err)
		}
	}

	return &session.ID, nil
}

// handleRemoveBackground downloads the source image, strips the
// background, and uploads the transparent cutout.
func (w *Worker) handleRemoveBackground(ctx context.Context, task *models.Task) (models.JSONB, *string, error) {
	var req models.RemoveBackgroundRequest
	if err := decodePayload(task.Payload, &req); err != nil {
		return nil, nil, err
	}

	w.progress(ctx, task.ID, 10, "downloading")

	imageData, err := w.storage.DownloadURL(ctx, req.ImageURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to download source image: %w", err)
	}

	w.progress(ctx, task.ID, 30, "removing_background")

	cutout, err := w.removeBg.RemoveBackground(ctx, imageData)
	if err != nil {
		return nil, nil, err
	}

	w.progress(ctx, task.ID, 80, "uploading")

	path := storage.BackgroundRemovedPath(req.UserID)
	if err := w.uploadWithLimit(ctx, "cutout", func() error {
		return w.storage.Upload(ctx, path, cutout, "image/png")
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to upload cutout: %w", err)
	}
	url := w.storage.ResultURL(ctx, path)

	if req.SceneID != nil {
		w.updateSceneImage(ctx, *req.SceneID, url)
	}

	result, err := toJSONB(map[string]interface{}{"image_url": url})
	if err != nil {
		return nil, nil, err
	}
	return result, &url, nil
}

// handleCompositeImage pastes the product cutout over a background
// still. Both sources are fetched in parallel.
func (w *Worker) handleCompositeImage(ctx context.Context, task *models.Task) (models.JSONB, *string, error) {
	var req models.CompositeImageRequest
	if err := decodePayload(task.Payload, &req); err != nil {
		return nil, nil, err
	}

	w.progress(ctx, task.ID, 10, "downloading")

	var backgroundData, overlayData []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		backgroundData, err = w.storage.DownloadURL(gctx, req.BackgroundURL)
		if err != nil {
			return fmt.Errorf("failed to download background: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		overlayData, err = w.storage.DownloadURL(gctx, req.OverlayURL)
		if err != nil {
			return fmt.Errorf("failed to download overlay: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	w.progress(ctx, task.ID, 50, "compositing")

	resize := true
	if req.ResizeOverlay != nil {
		resize = *req.ResizeOverlay
	}
	composed, err := w.composite.Composite(backgroundData, overlayData, resize)
	if err != nil {
		return nil, nil, err
	}

	w.progress(ctx, task.ID, 80, "uploading")

	path := storage.UploadedImagePath(req.UserID)
	if err := w.uploadWithLimit(ctx, "composite", func() error {
		return w.storage.Upload(ctx, path, composed, "image/png")
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to upload composite: %w", err)
	}
	url := w.storage.ResultURL(ctx, path)

	if req.SceneID != "" {
		w.updateSceneImage(ctx, req.SceneID, url)
	}

	result, err := toJSONB(map[string]interface{}{"image_url": url})
	if err != nil {
		return nil, nil, err
	}
	return result, &url, nil
}

// handleGenerateShadow adds a synthesized ground shadow to a cutout.
func (w *Worker) handleGenerateShadow(ctx context.Context, task *models.Task) (models.JSONB, *string, error) {
	var req models.GenerateShadowRequest
	if err := decodePayload(task.Payload, &req); err != nil {
		return nil, nil, err
	}

	if err := w.checkCredits(ctx, req.UserID, credits.CostGenerateShadow); err != nil {
		return nil, nil, err
	}

	w.progress(ctx, task.ID, 10, "downloading")

	imageData, err := w.storage.DownloadURL(ctx, req.ImageURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to download source image: %w", err)
	}

	w.progress(ctx, task.ID, 30, "generating_shadow")

	shadowed, err := w.shadow.GenerateShadow(ctx, req.ImageURL, imageData)
	if err != nil {
		return nil, nil, err
	}

	w.progress(ctx, task.ID, 80, "uploading")

	path := storage.BackgroundRemovedPath(req.UserID)
	if err := w.uploadWithLimit(ctx, "shadow", func() error {
		return w.storage.Upload(ctx, path, shadowed, "image/png")
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to upload shadowed image: %w", err)
	}
	url := w.storage.ResultURL(ctx, path)

	w.deductCredits(ctx, req.UserID, credits.CostGenerateShadow, "generate_shadow")

	result, err := toJSONB(map[string]interface{}{"image_url": url})
	if err != nil {
		return nil, nil, err
	}
	return result, &url, nil
}

// handleMergeVideo composites the product cutout over the scene video.
// Sprite and video are fetched in parallel, then the frame pipeline
// runs locally before the result is uploaded.
func (w *Worker) handleMergeVideo(ctx context.Context, task *models.Task) (models.JSONB, *string, error) {
	var req models.MergeVideoRequest
	if err := decodePayload(task.Payload, &req); err != nil {
		return nil, nil, err
	}

	if err := w.checkCredits(ctx, req.UserID, credits.CostMergeVideo); err != nil {
		return nil, nil, err
	}

	w.progress(ctx, task.ID, 5, "downloading")

	spritePath := filepath.Join(w.tempDir, fmt.Sprintf("sprite-%s.png", uuid.New().String()))
	videoPath := filepath.Join(w.tempDir, fmt.Sprintf("source-%s.mp4", uuid.New().String()))
	defer os.Remove(spritePath)
	defer os.Remove(videoPath)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.downloadToFile(gctx, req.ProductImageURL, spritePath)
	})
	g.Go(func() error {
		return w.downloadToFile(gctx, req.VideoURL, videoPath)
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	params := compositor.DefaultParams()
	if req.Scale != nil {
		params.Scale = *req.Scale
	}
	if req.Position != nil {
		params.Position = compositor.ParseAnchor(*req.Position)
	}
	if req.Duration != nil {
		params.Duration = *req.Duration
	}
	if req.Animate != nil {
		params.Animate = *req.Animate
	}

	// Per-task pipeline so progress callbacks stay isolated between
	// concurrent merges.
	pipeline, err := compositor.NewPipeline(w.tempDir)
	if err != nil {
		return nil, nil, err
	}
	pipeline.OnProgress = func(stage compositor.Stage, done, total int) {
		switch stage {
		case compositor.StageOpening:
			w.progress(ctx, task.ID, 10, "opening_source")
		case compositor.StageStreaming:
			if total > 0 {
				w.progress(ctx, task.ID, 10+70*done/total, "compositing_frames")
			}
		case compositor.StageFinalizing:
			w.progress(ctx, task.ID, 85, "encoding")
		}
	}

	outputPath, stats, err := pipeline.Merge(ctx, spritePath, videoPath, params)
	if err != nil {
		return nil, nil, err
	}
	defer os.Remove(outputPath)

	w.progress(ctx, task.ID, 90, "uploading")

	sceneID := req.SceneID
	if sceneID == "" {
		sceneID = "adhoc"
	}
	storagePath := storage.SceneVideoPath(req.UserID, sceneID)
	if err := w.uploadWithLimit(ctx, "merged video", func() error {
		return w.storage.UploadFile(ctx, storagePath, outputPath, "video/mp4")
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to upload merged video: %w", err)
	}
	url := w.storage.ResultURL(ctx, storagePath)

	if req.SceneID != "" && w.db != nil {
		if err := w.db.UpdateSceneVideoURL(ctx, req.SceneID, url); err != nil {
			log.Printf("[Merge] Failed to update scene %s video URL: %v", req.SceneID, err)
		}
	}

	w.deductCredits(ctx, req.UserID, credits.CostMergeVideo, "merge_video")

	result, err := toJSONB(map[string]interface{}{
		"video_url": url,
		"frames":    stats.FramesWritten,
		"truncated": stats.Truncated(),
	})
	if err != nil {
		return nil, nil, err
	}
	return result, &url, nil
}

func (w *Worker) downloadToFile(ctx context.Context, url, path string) error {
	data, err := w.storage.DownloadURL(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (w *Worker) updateSceneImage(ctx context.Context, sceneID, url string) {
	if w.db == nil {
		return
	}
	if err := w.db.UpdateSceneImageURL(ctx, sceneID, url); err != nil {
		log.Printf("Failed to update scene %s image URL: %v", sceneID, err)
	}
}

// checkCredits refuses the task when the user cannot afford it. A nil
// credits service means credits are disabled and everything passes.
func (w *Worker) checkCredits(ctx context.Context, userID string, cost int) error {
	if w.credits == nil {
		return nil
	}
	ok, err := w.credits.CanPerform(ctx, userID, cost)
	if err != nil {
		return fmt.Errorf("credit check failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("insufficient credits (need %d)", cost)
	}
	return nil
}

// deductCredits charges after successful work. Failures are logged but
// never fail the task; the user keeps the artifact.
func (w *Worker) deductCredits(ctx context.Context, userID string, cost int, reason string) {
	if w.credits == nil {
		return
	}
	if err := w.credits.Deduct(ctx, userID, cost, reason); err != nil {
		log.Printf("[Credits] Deduction failed for %s (%s): %v", userID, reason, err)
	}
}

func (w *Worker) progress(ctx context.Context, taskID uuid.UUID, progress int, step string) {
	if err := w.store.Progress(ctx, taskID, progress, step); err != nil {
		log.Printf("Failed to update progress for task %s: %v", taskID, err)
	}
}

// decodePayload round-trips the stored JSONB payload into the typed
// request that was originally submitted.
func decodePayload(payload models.JSONB, out interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode task payload: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode task payload: %w", err)
	}
	return nil
}

func toJSONB(v map[string]interface{}) (models.JSONB, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	var out models.JSONB
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return out, nil
}

func strPtr(s string) *string {
	return &s
}
