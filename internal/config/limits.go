package config

const (
	// DefaultMaxCategoryDepth is the deepest depth a category may have (root = 0),
	// giving five levels in total. MAX_CATEGORY_DEPTH can lower it, never raise it.
	DefaultMaxCategoryDepth = 4

	// MaxCategoryNameLength is the maximum length for category names.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255).
	MaxCategoryNameLength = 255

	// MaxSlugLength is the maximum length for category slugs.
	MaxSlugLength = 100

	// MaxDescriptionLength is the maximum length for category descriptions.
	MaxDescriptionLength = 1000

	// MaxIconLength is the maximum length for icon identifiers (icon names, not image data).
	MaxIconLength = 64

	// MaxReorderBatch is the maximum number of ids accepted by a single reorder.
	MaxReorderBatch = 1000
)
