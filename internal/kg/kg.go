// Package kg declares the knowledge graph port. Notes are fed into the graph
// as they are created; the HTTP surface answers 503 when no graph is wired.
package kg

import (
	"context"

	"github.com/xaenox/kg-note/internal/models"
)

// Document is a graph record passed through to clients as is. Its shape
// belongs to the graph implementation.
type Document map[string]interface{}

type Graph interface {
	// AddNoteEntity returns the id of the note entity in the graph.
	AddNoteEntity(ctx context.Context, userID string, note *models.Note) (string, error)
	FindRelatedNotes(ctx context.Context, userID, noteID string, limit int) ([]Document, error)
	SearchEntities(ctx context.Context, userID, query string, entityTypes []string, limit int) ([]Document, error)
	KnowledgeOverview(ctx context.Context, userID string) (Document, error)
	Export(ctx context.Context, userID string) (Document, error)
}
