package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/promoforge/promoforge/internal/api"
	"github.com/promoforge/promoforge/internal/config"
	"github.com/promoforge/promoforge/internal/credits"
	"github.com/promoforge/promoforge/internal/queue"
	"github.com/promoforge/promoforge/internal/services"
	"github.com/promoforge/promoforge/internal/storage"
	"github.com/promoforge/promoforge/internal/tasks"
	"github.com/promoforge/promoforge/internal/worker"
)

func main() {
	log.Println("Starting PromoForge API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Task store: Postgres when configured, in-memory otherwise
	store, database := tasks.NewStore(cfg.DatabaseURL)
	if database != nil {
		defer database.Close()
		log.Println("Connected to database")
	} else {
		log.Println("Running with in-memory task store")
	}

	// Connect to Redis queue
	q, err := queue.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()
	log.Println("Connected to Redis queue")

	// Initialize storage
	stor := storage.New(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
	stor.SignedURLTTL = cfg.SignedURLTTL
	log.Println("Initialized Supabase storage")

	// Create API handler. The session endpoints need the database; a
	// typed nil inside the interface would dodge the handler nil checks.
	var sessions api.SessionStore
	if database != nil {
		sessions = database
	}
	handler := api.NewHandler(store, q, sessions)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set — API is unprotected (dev mode)")
	}

	// Start HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	// Start worker if enabled
	var workerCtx context.Context
	var workerCancel context.CancelFunc
	if cfg.WorkerEnabled {
		log.Println("Worker enabled, starting background processing...")

		// Initialize services
		scenarioSvc := services.NewScenarioService(cfg.OpenAIKey)
		removeBgSvc := services.NewRemoveBgService(cfg.RemoveBgAPIKey)
		imageGenSvc := services.NewImageGenService(cfg.GeminiKey, cfg.ShadowImageModel)
		shadowSvc := services.NewShadowService(cfg.OpenAIKey, cfg.GeminiKey, cfg.ShadowImageModel)
		compositeSvc := services.NewCompositeService()

		// Credit gate — nil disables all checks
		var creditsSvc *credits.Service
		if cfg.CreditsEnabled {
			creditsSvc = credits.New(cfg.SupabaseURL, cfg.SupabaseServiceKey)
			log.Println("Credit checks enabled")
		}

		w, err := worker.New(store, database, q, stor,
			scenarioSvc, removeBgSvc, imageGenSvc, shadowSvc, compositeSvc,
			creditsSvc, cfg.TempDir)
		if err != nil {
			log.Fatalf("Failed to initialize worker: %v", err)
		}

		// Start worker in background
		workerCtx, workerCancel = context.WithCancel(context.Background())
		go w.Start(workerCtx, cfg.MaxConcurrentJobs)
	}

	// Start server in goroutine
	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Shutdown worker
	if workerCancel != nil {
		workerCancel()
	}

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
