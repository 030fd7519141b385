package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"canopy/internal/auth"
	"canopy/internal/config"
	"canopy/internal/database"
	"canopy/internal/domain/repositories"
	taxRepo "canopy/internal/domain/repositories/taxonomy"
	taxSvc "canopy/internal/domain/services/taxonomy"
	"canopy/internal/handler"
	"canopy/internal/middleware"
	"canopy/internal/repository/memory"
	"canopy/internal/repository/postgres"
	postgresTax "canopy/internal/repository/postgres/taxonomy"
	"canopy/internal/seed"
	serviceTax "canopy/internal/service/taxonomy"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging, optionally teeing into a log file
	logOutput := os.Stdout
	logger := config.NewLogger(cfg.Environment, logOutput)
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, "server", cfg.LogMaxFiles)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		logger = config.NewLogger(cfg.Environment, io.MultiWriter(logOutput, logFile))
	}
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"storage", cfg.Storage,
		"table_prefix", cfg.TablePrefix,
		"max_category_depth", cfg.MaxCategoryDepth,
	)

	ctx := context.Background()

	// Create repositories for the selected storage backend
	var (
		categoryRepo taxRepo.CategoryRepository
		ruleRepo     taxRepo.RuleRepository
		txManager    repositories.TransactionManager
		ping         func(ctx context.Context) error
	)

	switch cfg.Storage {
	case config.StorageMemory:
		store := memory.NewStore()
		categoryRepo = memory.NewCategoryRepository(store)
		ruleRepo = memory.NewRuleRepository(store)
		txManager = memory.NewTransactionManager(store)
		logger.Warn("using in-memory storage; data is lost on restart")

	default:
		pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to create connection pool: %v", err)
		}
		defer pool.Close()

		logger.Info("database connected",
			"max_conns", postgres.MaxPoolConns,
			"min_conns", postgres.MinPoolConns,
		)

		if err := database.Migrate(ctx, pool, cfg.TablePrefix, logger); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}

		repoConfig := &postgres.RepositoryConfig{
			Pool:   pool,
			Tables: postgres.NewTableNames(cfg.TablePrefix),
			Logger: logger,
		}
		categoryRepo = postgresTax.NewCategoryRepository(repoConfig)
		ruleRepo = postgresTax.NewRuleRepository(repoConfig)
		txManager = postgres.NewTransactionManager(pool, cfg.TxIsolation, logger)
		ping = pool.Ping
	}

	// Create services
	categoryService := serviceTax.NewCategoryService(categoryRepo, ruleRepo, txManager, cfg.MaxCategoryDepth, logger)

	if cfg.SeedFile != "" {
		if err := applySeed(ctx, cfg, categoryService, logger); err != nil {
			log.Fatalf("Failed to apply seed file: %v", err)
		}
	}

	// Create handlers
	categoryHandler := handler.NewCategoryHandler(categoryService, logger)
	healthHandler := handler.NewHealthHandler(ping, logger)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", healthHandler.HealthCheck)

	// Category routes
	categoryHandler.RegisterRoutes(mux)

	// Build middleware chain
	var h http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Logging → Recovery → Auth → Routes
	if cfg.JWKSURL != "" {
		jwtVerifier, err := auth.NewJWTVerifier(cfg.JWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
		defer jwtVerifier.Close()
		h = middleware.AuthMiddleware(jwtVerifier, logger)(h)
	} else {
		if cfg.Environment == "prod" {
			log.Fatalf("JWKS_URL is required in production")
		}
		logger.Warn("JWT verification disabled; every request acts as the dev actor", "actor_id", cfg.DevActorID)
		h = middleware.DevActorMiddleware(cfg.DevActorID)(h)
	}
	h = middleware.Recovery(logger)(h)
	h = middleware.RequestLogger(logger)(h)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// applySeed loads SEED_FILE and merges it into the taxonomy
func applySeed(ctx context.Context, cfg *config.Config, categories taxSvc.CategoryService, logger *slog.Logger) error {
	file, err := seed.Load(cfg.SeedFile)
	if err != nil {
		return err
	}
	result, err := seed.NewTaxonomySeeder(categories, logger).Apply(ctx, file, cfg.DevActorID)
	if err != nil {
		return err
	}
	logger.Info("seed file applied", "file", cfg.SeedFile, "created", result.Created, "reused", result.Reused)
	return nil
}
