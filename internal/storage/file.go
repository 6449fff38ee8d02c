package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/xaenox/kg-note/internal/models"
)

// FileCategoryStore is the legacy category list: a single global JSON array
// on disk. The user argument of every method is ignored.
type FileCategoryStore struct {
	mu   sync.Mutex
	path string
}

func NewFileCategoryStore(path string) *FileCategoryStore {
	return &FileCategoryStore{path: path}
}

func (s *FileCategoryStore) read() ([]models.Category, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.Category{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading categories file: %w", err)
	}

	var categories []models.Category
	if err := json.Unmarshal(data, &categories); err != nil {
		return nil, fmt.Errorf("error decoding categories file: %w", err)
	}

	// Older files carry no ids; assign them once so updates can address entries.
	changed := false
	for i := range categories {
		if categories[i].ID == "" {
			categories[i].ID = uuid.New().String()
			changed = true
		}
	}
	if changed {
		if err := s.write(categories); err != nil {
			return nil, err
		}
	}
	return categories, nil
}

func (s *FileCategoryStore) write(categories []models.Category) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("error creating categories directory: %w", err)
	}
	data, err := json.MarshalIndent(categories, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding categories: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("error writing categories file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *FileCategoryStore) ListCategories(ctx context.Context, _ string) ([]models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileCategoryStore) GetCategory(ctx context.Context, _ string, id string) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	categories, err := s.read()
	if err != nil {
		return nil, err
	}
	for _, c := range categories {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *FileCategoryStore) CreateCategory(ctx context.Context, _ string, category models.Category) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	categories, err := s.read()
	if err != nil {
		return "", err
	}
	if err := checkNameFree(categories, category.Category, ""); err != nil {
		return "", err
	}
	category.ID = uuid.New().String()
	if err := s.write(append(categories, category)); err != nil {
		return "", err
	}
	return category.ID, nil
}

func (s *FileCategoryStore) UpdateCategory(ctx context.Context, _ string, id string, category models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	categories, err := s.read()
	if err != nil {
		return err
	}
	for i := range categories {
		if categories[i].ID != id {
			continue
		}
		if err := checkNameFree(categories, category.Category, id); err != nil {
			return err
		}
		category.ID = id
		categories[i] = category
		return s.write(categories)
	}
	return ErrNotFound
}

func (s *FileCategoryStore) DeleteCategory(ctx context.Context, _ string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	categories, err := s.read()
	if err != nil {
		return err
	}
	for i := range categories {
		if categories[i].ID == id {
			return s.write(append(categories[:i], categories[i+1:]...))
		}
	}
	return ErrNotFound
}
