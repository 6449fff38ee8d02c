package storage

import (
	"context"
	"errors"

	"github.com/xaenox/kg-note/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// CategoryStore keeps a list of categories per user. Implementations reject
// a name that already exists under case folding with ErrConflict.
type CategoryStore interface {
	ListCategories(ctx context.Context, userID string) ([]models.Category, error)
	GetCategory(ctx context.Context, userID, id string) (*models.Category, error)
	CreateCategory(ctx context.Context, userID string, category models.Category) (string, error)
	UpdateCategory(ctx context.Context, userID, id string, category models.Category) error
	DeleteCategory(ctx context.Context, userID, id string) error
}

// NoteStore keeps notes in per-user scopes. No method ever reads across users.
type NoteStore interface {
	CreateNote(ctx context.Context, note *models.Note) error
	ListNotes(ctx context.Context, userID string, limit, offset int) ([]*models.Note, error)
	GetNote(ctx context.Context, userID, id string) (*models.Note, error)
	UpdateNote(ctx context.Context, userID, id string, update models.NoteUpdate) error
	DeleteNote(ctx context.Context, userID, id string) error
	SearchNotes(ctx context.Context, userID, query string, limit int) ([]*models.Note, error)
	NotesByCategory(ctx context.Context, userID, category string, limit int) ([]*models.Note, error)
	NoteStatistics(ctx context.Context, userID string) (models.Statistics, error)
}

type UserStore interface {
	UpsertUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// Storage is the full backend implemented by the database variants.
type Storage interface {
	CategoryStore
	NoteStore
	UserStore
	Ping(ctx context.Context) error
	Close() error
}

func checkNameFree(categories []models.Category, name, exceptID string) error {
	for _, c := range categories {
		if c.ID != exceptID && models.SameName(c.Category, name) {
			return ErrConflict
		}
	}
	return nil
}
