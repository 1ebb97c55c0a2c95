package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/orodjarna/internal/apperr"
	"github.com/erazemk/orodjarna/internal/model"
	"github.com/erazemk/orodjarna/internal/store"
	"github.com/erazemk/orodjarna/internal/validate"
)

// CategoriesHandler handles category endpoints.
type CategoriesHandler struct {
	Store *store.Store
}

type createCategoryRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// List handles GET /api/categories.
func (h *CategoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Store.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, apperr.Unavailable(err, "listing categories"))
		return
	}
	if categories == nil {
		categories = []model.Category{}
	}
	jsonResponse(w, http.StatusOK, categories)
}

// Create handles POST /api/categories.
func (h *CategoriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := validate.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.Store.CreateCategory(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("category created", "user", actor(r), "category", c.Name, "code", c.Code)
	jsonResponse(w, http.StatusCreated, c)
}

// Delete handles DELETE /api/categories/{id}.
func (h *CategoriesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.Store.DeleteCategory(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("category deleted", "user", actor(r), "category_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "category deleted"})
}
