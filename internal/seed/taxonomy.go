// Package seed loads a YAML category taxonomy and applies it through the
// category service. Applying the same file twice changes nothing.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"canopy/internal/config"
	"canopy/internal/domain"
	models "canopy/internal/domain/models/taxonomy"
	taxSvc "canopy/internal/domain/services/taxonomy"
	"canopy/internal/slug"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// File is the root of a taxonomy seed file
type File struct {
	Categories []Node `yaml:"categories"`
}

// Node is one category in a seed file. Slug is derived from Name when empty.
type Node struct {
	Name        string `yaml:"name"`
	Slug        string `yaml:"slug"`
	Description string `yaml:"description"`
	Icon        string `yaml:"icon"`
	Color       string `yaml:"color"`
	SortOrder   *int   `yaml:"sort_order"`
	Children    []Node `yaml:"children"`
}

// Validate checks a node and its children
func (n Node) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Name, validation.Required, validation.Length(1, config.MaxCategoryNameLength)),
		validation.Field(&n.Slug, validation.Length(0, config.MaxSlugLength)),
		validation.Field(&n.Children),
	)
}

// Validate checks every node in the file
func (f File) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Categories, validation.Required),
	)
}

// Parse decodes and validates a seed document
func Parse(data []byte) (*File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return &file, nil
}

// Load reads and parses a seed file from disk
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Result counts what an Apply did
type Result struct {
	Created int
	Reused  int
}

// TaxonomySeeder applies seed files through the category service
type TaxonomySeeder struct {
	categories taxSvc.CategoryService
	logger     *slog.Logger
}

// NewTaxonomySeeder creates a new taxonomy seeder
func NewTaxonomySeeder(categories taxSvc.CategoryService, logger *slog.Logger) *TaxonomySeeder {
	return &TaxonomySeeder{
		categories: categories,
		logger:     logger,
	}
}

// Apply creates every category in file that does not already exist.
// A live category with the same slug under the same parent is reused.
func (s *TaxonomySeeder) Apply(ctx context.Context, file *File, actorID string) (*Result, error) {
	result := &Result{}
	if err := s.applyNodes(ctx, file.Categories, nil, actorID, result); err != nil {
		return result, err
	}

	s.logger.Info("taxonomy seeded", "created", result.Created, "reused", result.Reused)
	return result, nil
}

func (s *TaxonomySeeder) applyNodes(ctx context.Context, nodes []Node, parent *models.Category, actorID string, result *Result) error {
	for _, node := range nodes {
		category, err := s.ensure(ctx, node, parent, actorID, result)
		if err != nil {
			return err
		}
		if err := s.applyNodes(ctx, node.Children, category, actorID, result); err != nil {
			return err
		}
	}
	return nil
}

// ensure returns the existing category for node, creating it when missing
func (s *TaxonomySeeder) ensure(ctx context.Context, node Node, parent *models.Category, actorID string, result *Result) (*models.Category, error) {
	var parentID *string
	if parent != nil {
		parentID = &parent.ID
	}

	slugValue := strings.TrimSpace(node.Slug)
	if slugValue == "" {
		slugValue = slug.Generate(node.Name, config.MaxSlugLength)
	}

	existing, err := s.categories.GetCategoryBySlug(ctx, slugValue, parentID)
	switch {
	case err == nil:
		result.Reused++
		return existing, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("look up %q: %w", slugValue, err)
	}

	created, err := s.categories.CreateCategory(ctx, &taxSvc.CreateCategoryRequest{
		ParentID:    parentID,
		Slug:        slugValue,
		Name:        node.Name,
		Description: node.Description,
		Icon:        node.Icon,
		Color:       node.Color,
		SortOrder:   node.SortOrder,
		ActorID:     actorID,
	})
	if err != nil {
		return nil, fmt.Errorf("create %q: %w", slugValue, err)
	}

	s.logger.Debug("seeded category", "id", created.ID, "slug", created.Slug, "depth", created.Depth)
	result.Created++
	return created, nil
}
