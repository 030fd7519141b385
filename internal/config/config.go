package config

import (
	"os"
	"strconv"
	"strings"
)

// Storage backends
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	JWKSURL     string // Empty disables JWT verification; DevActorID is used instead (dev/test only)
	CORSOrigins string
	TablePrefix string
	Storage     string
	// Tree configuration
	MaxCategoryDepth int    // Deepest allowed depth (root = 0)
	TxIsolation      string // serializable | repeatable_read | read_committed
	// Local development
	DevActorID string
	SeedFile   string // Applied at server startup when set
	// Logging
	LogDir      string
	LogMaxFiles int
	// Debug flags
	Debug bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	tablePrefix := getTablePrefix(env)

	return &Config{
		Port:             getEnv("PORT", "8080"),
		Environment:      env,
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		JWKSURL:          getEnv("JWKS_URL", ""),
		CORSOrigins:      getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix:      tablePrefix,
		Storage:          getStorage(),
		MaxCategoryDepth: getMaxDepth(),
		TxIsolation:      strings.ToLower(getEnv("TX_ISOLATION", "serializable")),
		DevActorID:       getEnv("DEV_ACTOR_ID", "00000000-0000-0000-0000-000000000001"),
		SeedFile:         getEnv("SEED_FILE", ""),
		LogDir:           getEnv("LOG_DIR", ""),
		LogMaxFiles:      getEnvInt("LOG_MAX_FILES", 10),
		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true" // Enable DEBUG in dev/test by default
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	// Auto-generate based on environment
	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	case "dev":
		return "dev_"
	default:
		return "dev_"
	}
}

// getStorage returns the storage backend, falling back to postgres for unknown values
func getStorage() string {
	switch s := strings.ToLower(getEnv("STORAGE", StoragePostgres)); s {
	case StorageMemory:
		return s
	default:
		return StoragePostgres
	}
}

// getMaxDepth reads MAX_CATEGORY_DEPTH, clamped to the five-level ceiling
func getMaxDepth() int {
	depth := getEnvInt("MAX_CATEGORY_DEPTH", DefaultMaxCategoryDepth)
	if depth < 0 {
		return 0
	}
	if depth > DefaultMaxCategoryDepth {
		return DefaultMaxCategoryDepth
	}
	return depth
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
