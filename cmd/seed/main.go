package main

import (
	"context"
	"flag"
	"log"
	"os"

	"canopy/internal/config"
	"canopy/internal/database"
	"canopy/internal/repository/postgres"
	postgresTax "canopy/internal/repository/postgres/taxonomy"
	"canopy/internal/seed"
	serviceTax "canopy/internal/service/taxonomy"

	"github.com/joho/godotenv"
)

func main() {
	// Parse command-line flags
	file := flag.String("file", "seed/taxonomy.yaml", "YAML taxonomy to apply")
	dropTables := flag.Bool("drop-tables", false, "Roll back all migrations before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only apply migrations, don't seed categories")
	flag.Parse()

	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && *dropTables {
		log.Fatalf("BLOCKED: cannot run --drop-tables in production environment")
	}

	logger := config.NewLogger(cfg.Environment, os.Stdout)

	if cfg.DatabaseURL == "" {
		log.Fatalf("DATABASE_URL is required for seeding")
	}

	logger.Info("seeding database",
		"environment", cfg.Environment,
		"table_prefix", cfg.TablePrefix,
		"file", *file,
	)

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if *dropTables {
		if err := database.Reset(ctx, pool, cfg.TablePrefix, logger); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
	}

	if err := database.Migrate(ctx, pool, cfg.TablePrefix, logger); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	if *schemaOnly {
		logger.Info("schema setup complete (schema-only mode)")
		return
	}

	taxonomy, err := seed.Load(*file)
	if err != nil {
		log.Fatalf("Failed to load seed file: %v", err)
	}

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(cfg.TablePrefix),
		Logger: logger,
	}
	categoryService := serviceTax.NewCategoryService(
		postgresTax.NewCategoryRepository(repoConfig),
		postgresTax.NewRuleRepository(repoConfig),
		postgres.NewTransactionManager(pool, cfg.TxIsolation, logger),
		cfg.MaxCategoryDepth,
		logger,
	)

	result, err := seed.NewTaxonomySeeder(categoryService, logger).Apply(ctx, taxonomy, cfg.DevActorID)
	if err != nil {
		log.Fatalf("Failed to seed taxonomy: %v", err)
	}

	logger.Info("seeding complete", "created", result.Created, "reused", result.Reused)
}
