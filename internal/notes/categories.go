package notes

import (
	"context"
	"strings"

	"github.com/xaenox/kg-note/internal/models"
)

func (s *Service) ListCategories(ctx context.Context, userID string) ([]models.Category, error) {
	return s.categories.ListCategories(ctx, userID)
}

// CreateCategory returns the stored category with its new id.
func (s *Service) CreateCategory(ctx context.Context, userID string, c models.Category) (models.Category, error) {
	c = normalizeCategory(c)
	id, err := s.categories.CreateCategory(ctx, userID, c)
	if err != nil {
		return models.Category{}, err
	}
	c.ID = id
	return c, nil
}

func (s *Service) UpdateCategory(ctx context.Context, userID, id string, c models.Category) (models.Category, error) {
	c = normalizeCategory(c)
	if err := s.categories.UpdateCategory(ctx, userID, id, c); err != nil {
		return models.Category{}, err
	}
	c.ID = id
	return c, nil
}

// DeleteCategory returns the category as it was before deletion.
func (s *Service) DeleteCategory(ctx context.Context, userID, id string) (*models.Category, error) {
	existing, err := s.categories.GetCategory(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.categories.DeleteCategory(ctx, userID, id); err != nil {
		return nil, err
	}
	return existing, nil
}

func normalizeCategory(c models.Category) models.Category {
	return models.Category{
		Category:   strings.TrimSpace(c.Category),
		Definition: strings.TrimSpace(c.Definition),
	}
}
