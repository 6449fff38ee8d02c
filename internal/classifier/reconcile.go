package classifier

import (
	"strings"

	"github.com/xaenox/kg-note/internal/models"
)

// MergeNewCategories returns the proposed categories that are not yet part of
// existing, compared case-insensitively. Duplicates within proposed keep
// their first occurrence and blank names are dropped.
func MergeNewCategories(existing, proposed []models.Category) []models.Category {
	seen := make(map[string]struct{}, len(existing)+len(proposed))
	for _, c := range existing {
		seen[foldName(c.Category)] = struct{}{}
	}

	var out []models.Category
	for _, c := range proposed {
		key := foldName(c.Category)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, models.Category{
			Category:   strings.TrimSpace(c.Category),
			Definition: strings.TrimSpace(c.Definition),
		})
	}
	return out
}

func foldName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
