package notes

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/kg-note/internal/classifier"
	"github.com/xaenox/kg-note/internal/models"
	"go.uber.org/zap"
)

// ImportData is a bulk upload of notes and categories used to rebuild the
// knowledge graph.
type ImportData struct {
	Notes      []ImportNote      `json:"notes"`
	Categories []models.Category `json:"categories"`
}

type ImportNote struct {
	Content    string          `json:"content"`
	Categories []string        `json:"categories"`
	Metadata   models.Metadata `json:"metadata"`
	Timestamp  int64           `json:"timestamp"`
}

type ImportResult struct {
	ImportedNotes      int      `json:"imported_notes"`
	ImportedCategories int      `json:"imported_categories"`
	Errors             []string `json:"errors"`
	TotalNotes         int      `json:"total_notes"`
}

// AddToGraph feeds a client supplied note into the knowledge graph without
// storing it as a note.
func (s *Service) AddToGraph(ctx context.Context, userID string, in Input, categories []string) (string, error) {
	if s.graph == nil {
		return "", ErrUnavailable
	}
	now := s.now()
	note := &models.Note{
		ID:         uuid.NewString(),
		UserID:     userID,
		Content:    in.Content,
		Metadata:   in.metadata(),
		Categories: categories,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return s.graph.AddNoteEntity(ctx, userID, note)
}

// Import records unknown categories and adds every note with content to the
// knowledge graph. Per note failures are collected, not returned.
func (s *Service) Import(ctx context.Context, userID string, data ImportData) (*ImportResult, error) {
	if s.graph == nil {
		return nil, ErrUnavailable
	}

	result := &ImportResult{Errors: []string{}, TotalNotes: len(data.Notes)}

	if len(data.Categories) > 0 {
		existing, err := s.categories.ListCategories(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to read categories: %w", err)
		}
		for _, c := range classifier.MergeNewCategories(existing, data.Categories) {
			if _, err := s.categories.CreateCategory(ctx, userID, c); err != nil {
				s.logger.Warn("Failed to import category",
					zap.Error(err),
					zap.String("category", c.Category))
				continue
			}
			result.ImportedCategories++
		}
	}

	for _, n := range data.Notes {
		if n.Content == "" {
			continue
		}
		created := s.now()
		if n.Timestamp > 0 {
			created = time.Unix(n.Timestamp, 0)
		}
		note := &models.Note{
			ID:         uuid.NewString(),
			UserID:     userID,
			Content:    n.Content,
			Metadata:   n.Metadata,
			Categories: n.Categories,
			CreatedAt:  created,
			UpdatedAt:  created,
		}
		if _, err := s.graph.AddNoteEntity(ctx, userID, note); err != nil {
			s.logger.Error("Failed to import note", zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("failed to import note: %v", err))
			continue
		}
		result.ImportedNotes++
	}
	return result, nil
}
