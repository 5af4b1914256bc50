package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Database — optional; when empty or unreachable, tasks fall back
	// to the in-memory store (single-instance dev mode)
	DatabaseURL string

	// Redis
	RedisURL string

	// Supabase
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string
	SignedURLTTL          int // seconds; 0 = public bucket, plain public URLs

	// OpenAI (scenario generation, vision analysis)
	OpenAIKey string

	// Gemini (thumbnail + background image generation, shadow rendering)
	GeminiKey        string
	ShadowImageModel string

	// Remove.bg (product background removal)
	RemoveBgAPIKey string

	// Credits — external authorization gate over Supabase REST
	CreditsEnabled bool

	// Compositing
	TempDir string // Scratch space for intermediate video files

	// Worker
	MaxConcurrentJobs int
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:               getEnv("API_PORT", "8080"),
		WorkerEnabled:         getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:         getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379"),
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "generated-content"),
		SignedURLTTL:          getEnvInt("SUPABASE_SIGNED_URL_TTL", 0),
		OpenAIKey:             getEnv("OPENAI_API_KEY", ""),
		GeminiKey:             getEnv("GEMINI_API_KEY", ""),
		ShadowImageModel:      getEnv("SHADOW_IMAGE_MODEL", "gemini-2.5-flash-image"),
		RemoveBgAPIKey:        getEnv("REMOVEBG_API_KEY", ""),
		CreditsEnabled:        getEnvBool("CREDITS_ENABLED", false),
		TempDir:               getEnv("TEMP_DIR", "/tmp/promoforge"),
		MaxConcurrentJobs:     getEnvInt("MAX_CONCURRENT_JOBS", 5),
	}

	// Validate required fields
	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	if cfg.GeminiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	if cfg.RemoveBgAPIKey == "" {
		return nil, fmt.Errorf("REMOVEBG_API_KEY is required")
	}

	if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
