package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xaenox/kg-note/internal/auth"
	"github.com/xaenox/kg-note/internal/kg"
	"github.com/xaenox/kg-note/internal/notes"
)

type kgNoteRequest struct {
	notes.Input
	Categories []string `json:"categories"`
}

type kgSearchRequest struct {
	Query       string   `json:"query" validate:"required"`
	EntityTypes []string `json:"entity_types"`
	Limit       int      `json:"limit" validate:"omitempty,min=1,max=200"`
}

// requireGraph answers 503 and returns nil when no graph is wired.
func (s *Server) requireGraph(w http.ResponseWriter) kg.Graph {
	graph := s.notes.Graph()
	if graph == nil {
		respondError(w, http.StatusServiceUnavailable, "Knowledge Graph service not available")
	}
	return graph
}

func (s *Server) kgAddNote(w http.ResponseWriter, r *http.Request) {
	if s.requireGraph(w) == nil {
		return
	}
	var req kgNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.notes.AddToGraph(r.Context(), auth.UserID(r.Context()), req.Input, req.Categories)
	if err != nil {
		s.respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Note added to knowledge graph",
		"note_id": id,
	})
}

func (s *Server) kgRelated(w http.ResponseWriter, r *http.Request) {
	graph := s.requireGraph(w)
	if graph == nil {
		return
	}
	limit, err := intQuery(r, "limit", 10, 1, 100)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	related, err := graph.FindRelatedNotes(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "noteID"), limit)
	if err != nil {
		s.respondServiceError(w, r, err, "Note not found")
		return
	}
	if related == nil {
		related = []kg.Document{}
	}
	respondJSON(w, http.StatusOK, map[string][]kg.Document{"related_notes": related})
}

func (s *Server) kgSearch(w http.ResponseWriter, r *http.Request) {
	graph := s.requireGraph(w)
	if graph == nil {
		return
	}
	var req kgSearchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Limit == 0 {
		req.Limit = 20
	}

	results, err := graph.SearchEntities(r.Context(), auth.UserID(r.Context()), req.Query, req.EntityTypes, req.Limit)
	if err != nil {
		s.respondServiceError(w, r, err, "")
		return
	}
	if results == nil {
		results = []kg.Document{}
	}
	respondJSON(w, http.StatusOK, map[string][]kg.Document{"results": results})
}

func (s *Server) kgOverview(w http.ResponseWriter, r *http.Request) {
	graph := s.requireGraph(w)
	if graph == nil {
		return
	}
	overview, err := graph.KnowledgeOverview(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, overview)
}

func (s *Server) kgImport(w http.ResponseWriter, r *http.Request) {
	if s.requireGraph(w) == nil {
		return
	}
	var data notes.ImportData
	if err := decodeJSON(r, &data); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.notes.Import(r.Context(), auth.UserID(r.Context()), data)
	if err != nil {
		s.respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
		*notes.ImportResult
	}{Message: "Import completed", ImportResult: result})
}

func (s *Server) kgExport(w http.ResponseWriter, r *http.Request) {
	graph := s.requireGraph(w)
	if graph == nil {
		return
	}
	export, err := graph.Export(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, export)
}
