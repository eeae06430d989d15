package config

import (
	"log"
	"os"
	"strconv"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

type Config struct {
	Mode Mode

	Port string

	GCPProjectID string
	GCPLocation  string
	ModelName    string

	StorageBackend string // "memory", "sqlite" or "firestore"
	SQLitePath     string
	UseMockLLM     bool // true = use mock even on GCP

	// StageConfigPath optionally points at a YAML stage criteria table.
	StageConfigPath string

	// Merge constants; see knowledge.Params for semantics.
	BaseWeight      float64
	WeightIncrement float64
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "1" || v == "true" || v == "TRUE" {
		return true
	}
	return false
}

func getFloatEnv(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Fatalf("%s must be a number, got %q", key, v)
	}
	return f
}

// Load reads all env vars and builds the config
func Load() *Config {
	modeStr := getEnv("NORTE_MODE", "local")
	var mode Mode
	switch modeStr {
	case "gcp":
		mode = ModeGCP
	default:
		mode = ModeLocal
	}

	cfg := &Config{
		Mode: mode,

		Port: getEnv("NORTE_PORT", "8080"),

		GCPProjectID: getEnv("NORTE_GCP_PROJECT", ""),
		GCPLocation:  getEnv("NORTE_GCP_LOCATION", "us-central1"),
		ModelName:    getEnv("NORTE_MODEL_NAME", "gemini-2.5-flash-lite"),

		StorageBackend: getEnv("NORTE_STORAGE_BACKEND", "memory"),
		SQLitePath:     getEnv("NORTE_SQLITE_PATH", "data/norte.db"),
		UseMockLLM:     getBoolEnv("NORTE_USE_MOCK_LLM", mode == ModeLocal),

		StageConfigPath: getEnv("NORTE_STAGE_CONFIG", ""),

		BaseWeight:      getFloatEnv("NORTE_BASE_WEIGHT", 0.5),
		WeightIncrement: getFloatEnv("NORTE_WEIGHT_INCREMENT", 0.3),
	}

	// Minimal validation in GCP mode
	if cfg.Mode == ModeGCP && cfg.GCPProjectID == "" {
		log.Fatal("NORTE_GCP_PROJECT must be set in gcp mode")
	}

	return cfg
}
