package server

import (
	"net/http"
)

type summaryRequest struct {
	Content   string `json:"content" validate:"required"`
	MaxLength int    `json:"max_length" validate:"omitempty,min=1,max=5000"`
}

type keywordRequest struct {
	Content     string `json:"content" validate:"required"`
	MaxKeywords int    `json:"max_keywords" validate:"omitempty,min=1,max=50"`
}

type questionRequest struct {
	Content      string `json:"content" validate:"required"`
	NumQuestions int    `json:"num_questions" validate:"omitempty,min=1,max=20"`
}

func (s *Server) summarize(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.MaxLength == 0 {
		req.MaxLength = 150
	}
	summary := s.assistant.Summarize(r.Context(), req.Content, req.MaxLength)
	respondJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (s *Server) keywords(w http.ResponseWriter, r *http.Request) {
	var req keywordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.MaxKeywords == 0 {
		req.MaxKeywords = 10
	}
	keywords := s.assistant.ExtractKeywords(r.Context(), req.Content, req.MaxKeywords)
	respondJSON(w, http.StatusOK, map[string][]string{"keywords": keywords})
}

func (s *Server) questions(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.NumQuestions == 0 {
		req.NumQuestions = 3
	}
	questions := s.assistant.GenerateQuestions(r.Context(), req.Content, req.NumQuestions)
	respondJSON(w, http.StatusOK, map[string][]string{"questions": questions})
}
