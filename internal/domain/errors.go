package domain

import (
	"errors"
	"net/http"
)

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// Tree structure errors. These are never transient, so callers should not retry them.
var (
	// ErrDuplicateSlug indicates a slug collision among live siblings
	ErrDuplicateSlug = errors.New("duplicate slug")

	// ErrParentNotFound indicates the referenced parent does not exist or is deleted
	ErrParentNotFound = errors.New("parent category not found")

	// ErrMaxDepthExceeded indicates the node, or one of its descendants, would sit below the depth ceiling
	ErrMaxDepthExceeded = errors.New("maximum category depth exceeded")

	// ErrCyclicMove indicates the new parent is the node itself or one of its descendants
	ErrCyclicMove = errors.New("cannot move category beneath itself")
)

// ConflictError represents a resource conflict with details about the existing resource.
type ConflictError struct {
	Message      string // Human-readable error message
	ResourceType string // Type of resource (category, rule)
	ResourceID   string // ID of the existing/conflicting resource
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return e.Message
}

// StatusCode is the HTTP status a conflict maps to
func (e *ConflictError) StatusCode() int {
	return http.StatusConflict
}

// Is allows errors.Is() to match against ErrConflict and ErrDuplicateSlug.
// Sibling slug collisions are the only resource conflict this service raises.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict || target == ErrDuplicateSlug
}

// NewDuplicateSlugError builds the conflict returned when a slug is already taken in a sibling scope
func NewDuplicateSlugError(slug, existingID string) *ConflictError {
	return &ConflictError{
		Message:      "a category with slug \"" + slug + "\" already exists in this location",
		ResourceType: "category",
		ResourceID:   existingID,
	}
}
