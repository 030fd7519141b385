package taxonomy

import (
	"context"
	"fmt"
	"log/slog"

	models "canopy/internal/domain/models/taxonomy"
	taxRepo "canopy/internal/domain/repositories/taxonomy"
	"canopy/internal/repository/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRuleRepository implements the RuleRepository interface.
// It only touches the category_id column of the rule table.
type PostgresRuleRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(config *postgres.RepositoryConfig) taxRepo.RuleRepository {
	return &PostgresRuleRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// CountByCategory counts rules pointing at a category
func (r *PostgresRuleRepository) CountByCategory(ctx context.Context, categoryID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE category_id = $1`, r.tables.Rules)

	var count int
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, categoryID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rules: %w", err)
	}
	return count, nil
}

// CountByCategories counts rules pointing at any of the categories
func (r *PostgresRuleRepository) CountByCategories(ctx context.Context, categoryIDs []string) (int, error) {
	if len(categoryIDs) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE category_id = ANY($1::uuid[])`, r.tables.Rules)

	var count int
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, categoryIDs).Scan(&count); err != nil {
		return 0, fmt.Errorf("count subtree rules: %w", err)
	}
	return count, nil
}

// ListByCategory lists rules pointing at a category
func (r *PostgresRuleRepository) ListByCategory(ctx context.Context, categoryID string) ([]models.Rule, error) {
	query := fmt.Sprintf(`
		SELECT id, name, category_id, created_at, updated_at
		FROM %s
		WHERE category_id = $1
		ORDER BY name ASC
	`, r.tables.Rules)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return collectRules(rows)
}

// ReassignCategory re-points rules from one category to another (nil = uncategorized)
func (r *PostgresRuleRepository) ReassignCategory(ctx context.Context, fromID string, toID *string) (int, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET category_id = $1, updated_at = NOW()
		WHERE category_id = $2
	`, r.tables.Rules)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, toID, fromID)
	if err != nil {
		return 0, fmt.Errorf("reassign rules: %w", err)
	}

	r.logger.Debug("rules reassigned",
		"from_category", fromID,
		"to_category", toID,
		"count", result.RowsAffected(),
	)
	return int(result.RowsAffected()), nil
}

// DetachCategories clears the category of rules pointing at any of the categories
func (r *PostgresRuleRepository) DetachCategories(ctx context.Context, categoryIDs []string) (int, error) {
	if len(categoryIDs) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`
		UPDATE %s SET category_id = NULL, updated_at = NOW()
		WHERE category_id = ANY($1::uuid[])
	`, r.tables.Rules)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, categoryIDs)
	if err != nil {
		return 0, fmt.Errorf("detach rules: %w", err)
	}

	return int(result.RowsAffected()), nil
}

// ListCategorized lists every rule that references a category
func (r *PostgresRuleRepository) ListCategorized(ctx context.Context) ([]models.Rule, error) {
	query := fmt.Sprintf(`
		SELECT id, name, category_id, created_at, updated_at
		FROM %s
		WHERE category_id IS NOT NULL
		ORDER BY id
	`, r.tables.Rules)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list categorized rules: %w", err)
	}
	return collectRules(rows)
}

func collectRules(rows pgx.Rows) ([]models.Rule, error) {
	defer rows.Close()

	rules := []models.Rule{}
	for rows.Next() {
		var rule models.Rule
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.CategoryID, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}

	return rules, nil
}
