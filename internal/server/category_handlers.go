package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/xaenox/kg-note/internal/auth"
	"github.com/xaenox/kg-note/internal/models"
)

type categoriesResponse struct {
	Categories []models.Category `json:"categories"`
}

type createCategoryResponse struct {
	Message    string          `json:"message"`
	CategoryID string          `json:"category_id"`
	Category   models.Category `json:"category"`
}

type updateCategoryResponse struct {
	Message  string          `json:"message"`
	Category models.Category `json:"category"`
}

type deleteCategoryResponse struct {
	Message         string           `json:"message"`
	DeletedCategory *models.Category `json:"deleted_category"`
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	list, err := s.notes.ListCategories(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.respondServiceError(w, r, err, "")
		return
	}
	if list == nil {
		list = []models.Category{}
	}
	respondJSON(w, http.StatusOK, categoriesResponse{Categories: list})
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	var req models.Category
	if err := decodeCategory(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.notes.CreateCategory(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		s.respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, createCategoryResponse{
		Message:    "Category added successfully",
		CategoryID: created.ID,
		Category:   created,
	})
}

func (s *Server) updateCategory(w http.ResponseWriter, r *http.Request) {
	var req models.Category
	if err := decodeCategory(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.notes.UpdateCategory(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "categoryID"), req)
	if err != nil {
		s.respondServiceError(w, r, err, "Category not found")
		return
	}
	respondJSON(w, http.StatusOK, updateCategoryResponse{
		Message:  "Category updated successfully",
		Category: updated,
	})
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.notes.DeleteCategory(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "categoryID"))
	if err != nil {
		s.respondServiceError(w, r, err, "Category not found")
		return
	}
	respondJSON(w, http.StatusOK, deleteCategoryResponse{
		Message:         "Category deleted successfully",
		DeletedCategory: deleted,
	})
}

func decodeCategory(r *http.Request, c *models.Category) error {
	if err := decodeJSON(r, c); err != nil {
		return err
	}
	if strings.TrimSpace(c.Category) == "" {
		return errors.New("category is required")
	}
	return nil
}
