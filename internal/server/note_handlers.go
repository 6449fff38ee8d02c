package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xaenox/kg-note/internal/auth"
	"github.com/xaenox/kg-note/internal/models"
	"github.com/xaenox/kg-note/internal/notes"
)

const (
	defaultListLimit   = 50
	defaultSearchLimit = 20
	maxLimit           = 500
)

type createNoteResponse struct {
	NoteID     string   `json:"noteId"`
	Categories []string `json:"categories"`
	Message    string   `json:"message"`
}

type notesResponse struct {
	Notes []*models.Note `json:"notes"`
}

type noteResponse struct {
	Note *models.Note `json:"note"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) createNote(w http.ResponseWriter, r *http.Request) {
	var in notes.Input
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.notes.CreateNote(r.Context(), auth.UserID(r.Context()), in)
	if err != nil {
		s.respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, createNoteResponse{
		NoteID:     created.NoteID,
		Categories: created.Categories,
		Message:    "Note created successfully",
	})
}

func (s *Server) listNotes(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", defaultListLimit, 1, maxLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := intQuery(r, "offset", 0, 0, 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := s.notes.ListNotes(r.Context(), auth.UserID(r.Context()), limit, offset)
	if err != nil {
		s.respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, notesResponse{Notes: nonNilNotes(list)})
}

func (s *Server) searchNotes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	limit, err := intQuery(r, "limit", defaultSearchLimit, 1, maxLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := s.notes.SearchNotes(r.Context(), auth.UserID(r.Context()), query, limit)
	if err != nil {
		s.respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, notesResponse{Notes: nonNilNotes(list)})
}

func (s *Server) notesByCategory(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		respondError(w, http.StatusBadRequest, "category is required")
		return
	}
	limit, err := intQuery(r, "limit", defaultListLimit, 1, maxLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := s.notes.NotesByCategory(r.Context(), auth.UserID(r.Context()), category, limit)
	if err != nil {
		s.respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, notesResponse{Notes: nonNilNotes(list)})
}

func (s *Server) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.notes.Statistics(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) getNote(w http.ResponseWriter, r *http.Request) {
	note, err := s.notes.GetNote(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "noteID"))
	if err != nil {
		s.respondServiceError(w, r, err, "Note not found")
		return
	}
	respondJSON(w, http.StatusOK, noteResponse{Note: note})
}

func (s *Server) updateNote(w http.ResponseWriter, r *http.Request) {
	var in notes.Input
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := s.notes.UpdateNote(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "noteID"), in)
	if err != nil {
		s.respondServiceError(w, r, err, "Note not found")
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{Message: "Note updated successfully"})
}

func (s *Server) deleteNote(w http.ResponseWriter, r *http.Request) {
	err := s.notes.DeleteNote(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "noteID"))
	if err != nil {
		s.respondServiceError(w, r, err, "Note not found")
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{Message: "Note deleted successfully"})
}

func (s *Server) categorize(w http.ResponseWriter, r *http.Request) {
	var in notes.Input
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.notes.Categorize(r.Context(), auth.UserID(r.Context()), in))
}

func nonNilNotes(list []*models.Note) []*models.Note {
	if list == nil {
		return []*models.Note{}
	}
	return list
}
