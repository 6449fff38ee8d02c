// Package notes runs the note capture pipeline: read the user's categories,
// categorize, record proposed categories, persist the note.
package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xaenox/kg-note/internal/classifier"
	"github.com/xaenox/kg-note/internal/kg"
	"github.com/xaenox/kg-note/internal/metrics"
	"github.com/xaenox/kg-note/internal/models"
	"github.com/xaenox/kg-note/internal/storage"
	"go.uber.org/zap"
)

// ErrUnavailable is returned when the backing store for an operation is not
// configured.
var ErrUnavailable = errors.New("service not available")

// Input is a captured note as submitted by a client. URL is the legacy
// top-level page url, used when Metadata carries none.
type Input struct {
	Content  string           `json:"content" validate:"required"`
	URL      string           `json:"url"`
	Metadata *models.Metadata `json:"metadata"`
}

// PageContext resolves the webpage the note was taken on.
func (in Input) PageContext() classifier.PageContext {
	page := classifier.PageContext{URL: in.URL}
	if in.Metadata != nil {
		page.Title = in.Metadata.Title
		page.Domain = in.Metadata.Domain
		if in.Metadata.URL != "" {
			page.URL = in.Metadata.URL
		}
	}
	return page
}

// metadata is what gets stored with the note.
func (in Input) metadata() models.Metadata {
	var md models.Metadata
	if in.Metadata != nil {
		md = *in.Metadata
	}
	if md.URL == "" {
		md.URL = in.URL
	}
	return md
}

// Created is the outcome of CreateNote.
type Created struct {
	NoteID     string
	Categories []string
}

type Service struct {
	categories  storage.CategoryStore
	notes       storage.NoteStore
	categorizer classifier.Categorizer
	graph       kg.Graph
	metrics     *metrics.Collector
	logger      *zap.Logger
	now         func() time.Time
}

// NewService wires the pipeline. notes may be nil when no database is
// reachable, graph may be nil when no knowledge graph is configured.
func NewService(categories storage.CategoryStore, notes storage.NoteStore, categorizer classifier.Categorizer, graph kg.Graph, collector *metrics.Collector, logger *zap.Logger) *Service {
	return &Service{
		categories:  categories,
		notes:       notes,
		categorizer: categorizer,
		graph:       graph,
		metrics:     collector,
		logger:      logger,
		now:         time.Now,
	}
}

// NotesAvailable reports whether a note store is configured.
func (s *Service) NotesAvailable() bool {
	return s.notes != nil
}

// Graph returns the knowledge graph or nil.
func (s *Service) Graph() kg.Graph {
	return s.graph
}

// Categorize classifies the input against the user's categories and records
// any category the model proposed. The note itself is not stored.
func (s *Service) Categorize(ctx context.Context, userID string, in Input) models.Categorization {
	existing := s.existingCategories(ctx, userID)
	result := s.categorizer.Categorize(ctx, in.Content, in.PageContext(), existing)
	s.addProposedCategories(ctx, userID, existing, result.NewCategories)
	return result
}

func (s *Service) CreateNote(ctx context.Context, userID string, in Input) (*Created, error) {
	if s.notes == nil {
		return nil, ErrUnavailable
	}

	result := s.Categorize(ctx, userID, in)

	note := &models.Note{
		UserID:     userID,
		Content:    in.Content,
		Metadata:   in.metadata(),
		Categories: result.Categories,
	}
	if err := s.notes.CreateNote(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to save note: %w", err)
	}
	s.metrics.NoteCreated()

	s.logger.Info("Note created",
		zap.String("user_id", userID),
		zap.String("note_id", note.ID),
		zap.Strings("categories", note.Categories))

	if s.graph != nil {
		if _, err := s.graph.AddNoteEntity(ctx, userID, note); err != nil {
			s.logger.Error("Failed to add note to knowledge graph",
				zap.Error(err),
				zap.String("note_id", note.ID))
		}
	}

	return &Created{NoteID: note.ID, Categories: note.Categories}, nil
}

// existingCategories degrades to an empty list when the store cannot be read.
func (s *Service) existingCategories(ctx context.Context, userID string) []models.Category {
	existing, err := s.categories.ListCategories(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to read categories",
			zap.Error(err),
			zap.String("user_id", userID))
		return nil
	}
	return existing
}

func (s *Service) addProposedCategories(ctx context.Context, userID string, existing, proposed []models.Category) {
	for _, c := range classifier.MergeNewCategories(existing, proposed) {
		_, err := s.categories.CreateCategory(ctx, userID, c)
		switch {
		case errors.Is(err, storage.ErrConflict):
			s.logger.Info("Category already exists",
				zap.String("user_id", userID),
				zap.String("category", c.Category))
		case err != nil:
			s.logger.Error("Failed to save category",
				zap.Error(err),
				zap.String("user_id", userID),
				zap.String("category", c.Category))
		default:
			s.metrics.CategoryAdded()
		}
	}
}

// UpdateNote replaces content and metadata, keeping the categories.
func (s *Service) UpdateNote(ctx context.Context, userID, noteID string, in Input) error {
	if s.notes == nil {
		return ErrUnavailable
	}
	return s.notes.UpdateNote(ctx, userID, noteID, models.NoteUpdate{
		Content:  in.Content,
		Metadata: in.metadata(),
	})
}

func (s *Service) DeleteNote(ctx context.Context, userID, noteID string) error {
	if s.notes == nil {
		return ErrUnavailable
	}
	return s.notes.DeleteNote(ctx, userID, noteID)
}

func (s *Service) GetNote(ctx context.Context, userID, noteID string) (*models.Note, error) {
	if s.notes == nil {
		return nil, ErrUnavailable
	}
	return s.notes.GetNote(ctx, userID, noteID)
}

func (s *Service) ListNotes(ctx context.Context, userID string, limit, offset int) ([]*models.Note, error) {
	if s.notes == nil {
		return nil, ErrUnavailable
	}
	return s.notes.ListNotes(ctx, userID, limit, offset)
}

func (s *Service) SearchNotes(ctx context.Context, userID, query string, limit int) ([]*models.Note, error) {
	if s.notes == nil {
		return nil, ErrUnavailable
	}
	return s.notes.SearchNotes(ctx, userID, strings.TrimSpace(query), limit)
}

func (s *Service) NotesByCategory(ctx context.Context, userID, category string, limit int) ([]*models.Note, error) {
	if s.notes == nil {
		return nil, ErrUnavailable
	}
	return s.notes.NotesByCategory(ctx, userID, category, limit)
}

func (s *Service) Statistics(ctx context.Context, userID string) (models.Statistics, error) {
	if s.notes == nil {
		return models.Statistics{}, ErrUnavailable
	}
	return s.notes.NoteStatistics(ctx, userID)
}
