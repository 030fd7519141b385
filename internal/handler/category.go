package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"canopy/internal/domain"
	models "canopy/internal/domain/models/taxonomy"
	taxSvc "canopy/internal/domain/services/taxonomy"
	"canopy/internal/httputil"
)

// CategoryHandler handles category HTTP requests
type CategoryHandler struct {
	categoryService taxSvc.CategoryService
	logger          *slog.Logger
}

// NewCategoryHandler creates a new category handler
func NewCategoryHandler(categoryService taxSvc.CategoryService, logger *slog.Logger) *CategoryHandler {
	return &CategoryHandler{
		categoryService: categoryService,
		logger:          logger,
	}
}

// RegisterRoutes mounts the category routes on mux (Go 1.22+ patterns)
func (h *CategoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/categories", h.ListRoots)
	mux.HandleFunc("POST /api/categories", h.CreateCategory)
	mux.HandleFunc("GET /api/categories/tree", h.GetTree)
	mux.HandleFunc("GET /api/categories/search", h.Search)
	mux.HandleFunc("GET /api/categories/deleted", h.ListDeleted)
	mux.HandleFunc("GET /api/categories/integrity", h.VerifyIntegrity)
	mux.HandleFunc("PUT /api/categories/reorder", h.Reorder)
	mux.HandleFunc("GET /api/category-slugs/{slug}", h.GetBySlug)
	mux.HandleFunc("GET /api/categories/{id}", h.GetCategory)
	mux.HandleFunc("PATCH /api/categories/{id}", h.UpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", h.DeleteCategory)
	mux.HandleFunc("GET /api/categories/{id}/delete-preview", h.PreviewDelete)
	mux.HandleFunc("POST /api/categories/{id}/restore", h.RestoreCategory)
	mux.HandleFunc("GET /api/categories/{id}/children", h.ListChildren)
	mux.HandleFunc("GET /api/categories/{id}/ancestors", h.GetAncestors)
	mux.HandleFunc("GET /api/categories/{id}/descendants", h.GetDescendants)
}

// updateCategoryBody is the PATCH payload; parent_id distinguishes absent from null
type updateCategoryBody struct {
	Slug        *string                 `json:"slug"`
	Name        *string                 `json:"name"`
	Description *string                 `json:"description"`
	Icon        *string                 `json:"icon"`
	Color       *string                 `json:"color"`
	SortOrder   *int                    `json:"sort_order"`
	IsActive    *bool                   `json:"is_active"`
	ParentID    httputil.OptionalString `json:"parent_id"`
}

// CreateCategory creates a category
// POST /api/categories
func (h *CategoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req taxSvc.CreateCategoryRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.ActorID = httputil.GetActorID(r)

	category, err := h.categoryService.CreateCategory(r.Context(), &req)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, category)
}

// GetCategory retrieves a live category
// GET /api/categories/{id}
func (h *CategoryHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	category, err := h.categoryService.GetCategory(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, category)
}

// GetBySlug retrieves a live category by slug within a parent scope
// GET /api/category-slugs/{slug}?parent_id=
func (h *CategoryHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	category, err := h.categoryService.GetCategoryBySlug(r.Context(), r.PathValue("slug"), optionalQuery(r, "parent_id"))
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, category)
}

// UpdateCategory applies a partial update, moving the subtree when parent_id changes
// PATCH /api/categories/{id}
func (h *CategoryHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var body updateCategoryBody
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := &taxSvc.UpdateCategoryRequest{
		Slug:        body.Slug,
		Name:        body.Name,
		Description: body.Description,
		Icon:        body.Icon,
		Color:       body.Color,
		SortOrder:   body.SortOrder,
		IsActive:    body.IsActive,
		ParentID: taxSvc.OptionalParent{
			Present: body.ParentID.Present,
			Value:   body.ParentID.Value,
		},
		ActorID: httputil.GetActorID(r),
	}

	category, err := h.categoryService.UpdateCategory(r.Context(), r.PathValue("id"), req)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, category)
}

// DeleteCategory soft-deletes a category
// DELETE /api/categories/{id}?policy=block|reassign|cascade
// A blocked delete returns 409 with the delete result as the body.
func (h *CategoryHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	policy, err := models.ParseDeletePolicy(r.URL.Query().Get("policy"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.categoryService.DeleteCategory(r.Context(), r.PathValue("id"), policy, httputil.GetActorID(r))
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	if !result.Success {
		httputil.RespondJSON(w, http.StatusConflict, result)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}

// PreviewDelete reports what a delete would affect
// GET /api/categories/{id}/delete-preview
func (h *CategoryHandler) PreviewDelete(w http.ResponseWriter, r *http.Request) {
	preview, err := h.categoryService.PreviewDelete(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, preview)
}

// RestoreCategory restores a single soft-deleted category
// POST /api/categories/{id}/restore
func (h *CategoryHandler) RestoreCategory(w http.ResponseWriter, r *http.Request) {
	category, err := h.categoryService.RestoreCategory(r.Context(), r.PathValue("id"), httputil.GetActorID(r))
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, category)
}

// Reorder assigns sequential sort orders
// PUT /api/categories/reorder
func (h *CategoryHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req taxSvc.ReorderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.ActorID = httputil.GetActorID(r)

	if err := h.categoryService.ReorderCategories(r.Context(), &req); err != nil {
		handleError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListRoots lists root categories
// GET /api/categories?include_inactive=true
func (h *CategoryHandler) ListRoots(w http.ResponseWriter, r *http.Request) {
	opts, ok := h.listOptions(w, r)
	if !ok {
		return
	}

	roots, err := h.categoryService.ListRoots(r.Context(), opts)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, roots)
}

// ListChildren lists the direct children of a category
// GET /api/categories/{id}/children?include_inactive=true
func (h *CategoryHandler) ListChildren(w http.ResponseWriter, r *http.Request) {
	opts, ok := h.listOptions(w, r)
	if !ok {
		return
	}

	children, err := h.categoryService.ListChildren(r.Context(), r.PathValue("id"), opts)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, children)
}

// GetTree returns the whole live forest, flat by default
// GET /api/categories/tree?nested=true&include_inactive=true
func (h *CategoryHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	opts, ok := h.listOptions(w, r)
	if !ok {
		return
	}

	nested, err := httputil.QueryBool(r, "nested")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if nested {
		tree, err := h.categoryService.GetNestedTree(r.Context(), opts)
		if err != nil {
			handleError(w, err, h.logger)
			return
		}
		httputil.RespondJSON(w, http.StatusOK, tree)
		return
	}

	flat, err := h.categoryService.GetTree(r.Context(), opts)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, flat)
}

// GetAncestors lists ancestors root first
// GET /api/categories/{id}/ancestors
func (h *CategoryHandler) GetAncestors(w http.ResponseWriter, r *http.Request) {
	ancestors, err := h.categoryService.GetAncestors(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, ancestors)
}

// GetDescendants lists descendants by depth then path
// GET /api/categories/{id}/descendants?include_inactive=
func (h *CategoryHandler) GetDescendants(w http.ResponseWriter, r *http.Request) {
	opts, ok := h.listOptions(w, r)
	if !ok {
		return
	}

	descendants, err := h.categoryService.GetDescendants(r.Context(), r.PathValue("id"), opts)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, descendants)
}

// Search finds categories by text
// GET /api/categories/search?q=&limit=&include_inactive=
func (h *CategoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.QueryInt(r, "limit", models.DefaultSearchLimit)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	includeInactive, err := httputil.QueryBool(r, "include_inactive")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := h.categoryService.Search(r.Context(), &models.SearchOptions{
		Query:           r.URL.Query().Get("q"),
		Limit:           limit,
		IncludeInactive: includeInactive,
	})
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, results)
}

// ListDeleted lists soft-deleted categories
// GET /api/categories/deleted
func (h *CategoryHandler) ListDeleted(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.categoryService.ListDeleted(r.Context())
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, deleted)
}

// VerifyIntegrity runs the tree integrity audit
// GET /api/categories/integrity
func (h *CategoryHandler) VerifyIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := h.categoryService.VerifyIntegrity(r.Context())
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, report)
}

// listOptions parses include_inactive, writing a 400 on failure
func (h *CategoryHandler) listOptions(w http.ResponseWriter, r *http.Request) (models.ListOptions, bool) {
	includeInactive, err := httputil.QueryBool(r, "include_inactive")
	if err != nil {
		handleError(w, fmt.Errorf("%w: %v", domain.ErrValidation, err), h.logger)
		return models.ListOptions{}, false
	}
	return models.ListOptions{IncludeInactive: includeInactive}, true
}
