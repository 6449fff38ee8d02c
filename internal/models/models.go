package models

import (
	"sort"
	"strings"
	"time"
)

// Category is a user defined topical label with a short definition.
type Category struct {
	ID         string `json:"id,omitempty"`
	Category   string `json:"category" validate:"required,max=100"`
	Definition string `json:"definition" validate:"max=1000"`
}

// SameName reports whether two category names collide under case folding.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// User represents an account created on first login
type User struct {
	ID          string    `json:"userId"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Picture     string    `json:"picture,omitempty"`
	GoogleID    string    `json:"googleId,omitempty"`
	IsAnonymous bool      `json:"isAnonymous"`
	Source      string    `json:"source,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	LastLogin   time.Time `json:"lastLogin"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Categorization is the result of categorizing a piece of content
type Categorization struct {
	Categories    []string   `json:"categories"`
	NewCategories []Category `json:"new_categories,omitempty"`
}

// CategoryCount pairs a category label with the number of notes carrying it.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Statistics summarises a user's notes.
type Statistics struct {
	TotalNotes           int             `json:"total_notes"`
	CategoryDistribution map[string]int  `json:"category_distribution"`
	MostUsedCategories   []CategoryCount `json:"most_used_categories"`
}

const topCategoryCount = 5

// ComputeStatistics builds statistics from the category lists of a user's
// notes, one slice per note.
func ComputeStatistics(noteCategories [][]string) Statistics {
	stats := Statistics{
		TotalNotes:           len(noteCategories),
		CategoryDistribution: make(map[string]int),
	}
	for _, categories := range noteCategories {
		for _, c := range categories {
			stats.CategoryDistribution[c]++
		}
	}

	counts := make([]CategoryCount, 0, len(stats.CategoryDistribution))
	for c, n := range stats.CategoryDistribution {
		counts = append(counts, CategoryCount{Category: c, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Category < counts[j].Category
	})
	if len(counts) > topCategoryCount {
		counts = counts[:topCategoryCount]
	}
	stats.MostUsedCategories = counts
	return stats
}
