package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/kg-note/internal/models"
)

type MemoryStorage struct {
	mu         sync.RWMutex
	users      map[string]*models.User
	notes      map[string]map[string]*models.Note
	categories map[string][]models.Category
	now        func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:      make(map[string]*models.User),
		notes:      make(map[string]map[string]*models.Note),
		categories: make(map[string][]models.Category),
		now:        time.Now,
	}
}

// User methods
func (s *MemoryStorage) UpsertUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stored := *user
	if existing, ok := s.users[user.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.LastLogin = now
	stored.UpdatedAt = now
	s.users[user.ID] = &stored
	*user = stored
	return nil
}

func (s *MemoryStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if user, exists := s.users[id]; exists {
		u := *user
		return &u, nil
	}
	return nil, ErrNotFound
}

// Category methods
func (s *MemoryStorage) ListCategories(ctx context.Context, userID string) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Category, len(s.categories[userID]))
	copy(out, s.categories[userID])
	return out, nil
}

func (s *MemoryStorage) GetCategory(ctx context.Context, userID, id string) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.categories[userID] {
		if c.ID == id {
			found := c
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStorage) CreateCategory(ctx context.Context, userID string, category models.Category) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := checkNameFree(s.categories[userID], category.Category, ""); err != nil {
		return "", err
	}
	category.ID = uuid.New().String()
	s.categories[userID] = append(s.categories[userID], category)
	return category.ID, nil
}

func (s *MemoryStorage) UpdateCategory(ctx context.Context, userID, id string, category models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.categories[userID]
	for i := range list {
		if list[i].ID != id {
			continue
		}
		if err := checkNameFree(list, category.Category, id); err != nil {
			return err
		}
		category.ID = id
		list[i] = category
		return nil
	}
	return ErrNotFound
}

func (s *MemoryStorage) DeleteCategory(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.categories[userID]
	for i := range list {
		if list[i].ID == id {
			s.categories[userID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Note methods
func (s *MemoryStorage) CreateNote(ctx context.Context, note *models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	note.ID = uuid.New().String()
	note.CreatedAt = now
	note.UpdatedAt = now
	if s.notes[note.UserID] == nil {
		s.notes[note.UserID] = make(map[string]*models.Note)
	}
	stored := *note
	stored.Categories = append([]string(nil), note.Categories...)
	s.notes[note.UserID][note.ID] = &stored
	return nil
}

// sortedNotes returns copies of the user's notes matching keep, newest first.
// Callers must hold the read lock.
func (s *MemoryStorage) sortedNotes(userID string, keep func(*models.Note) bool) []*models.Note {
	out := make([]*models.Note, 0, len(s.notes[userID]))
	for _, n := range s.notes[userID] {
		if keep != nil && !keep(n) {
			continue
		}
		c := *n
		c.Categories = append([]string(nil), n.Categories...)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func page(notes []*models.Note, limit, offset int) []*models.Note {
	if offset >= len(notes) {
		return []*models.Note{}
	}
	notes = notes[offset:]
	if limit > 0 && len(notes) > limit {
		notes = notes[:limit]
	}
	return notes
}

func (s *MemoryStorage) ListNotes(ctx context.Context, userID string, limit, offset int) ([]*models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return page(s.sortedNotes(userID, nil), limit, offset), nil
}

func (s *MemoryStorage) GetNote(ctx context.Context, userID, id string) (*models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n, ok := s.notes[userID][id]; ok {
		c := *n
		c.Categories = append([]string(nil), n.Categories...)
		return &c, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStorage) UpdateNote(ctx context.Context, userID, id string, update models.NoteUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notes[userID][id]
	if !ok {
		return ErrNotFound
	}
	n.Content = update.Content
	n.Metadata = update.Metadata
	if update.Categories != nil {
		n.Categories = append([]string(nil), update.Categories...)
	}
	n.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStorage) DeleteNote(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notes[userID][id]; !ok {
		return ErrNotFound
	}
	delete(s.notes[userID], id)
	return nil
}

func (s *MemoryStorage) SearchNotes(ctx context.Context, userID, query string, limit int) ([]*models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(query)
	return page(s.sortedNotes(userID, func(n *models.Note) bool {
		return strings.Contains(strings.ToLower(n.Content), q)
	}), limit, 0), nil
}

func (s *MemoryStorage) NotesByCategory(ctx context.Context, userID, category string, limit int) ([]*models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return page(s.sortedNotes(userID, func(n *models.Note) bool {
		return n.HasCategory(category)
	}), limit, 0), nil
}

func (s *MemoryStorage) NoteStatistics(ctx context.Context, userID string) (models.Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lists := make([][]string, 0, len(s.notes[userID]))
	for _, n := range s.notes[userID] {
		lists = append(lists, n.Categories)
	}
	return models.ComputeStatistics(lists), nil
}

func (s *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
