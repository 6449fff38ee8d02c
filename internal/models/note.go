package models

import (
	"time"
)

// Metadata describes the webpage a note was taken on.
type Metadata struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Domain  string `json:"domain"`
	Summary string `json:"summary"`
}

type Note struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Content    string    `json:"content"`
	Metadata   Metadata  `json:"metadata"`
	Categories []string  `json:"categories"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// NoteUpdate carries the mutable fields of a note. A nil Categories leaves
// the stored categories untouched.
type NoteUpdate struct {
	Content    string
	Metadata   Metadata
	Categories []string
}

// HasCategory reports whether the note carries the exact label.
func (n *Note) HasCategory(category string) bool {
	for _, c := range n.Categories {
		if c == category {
			return true
		}
	}
	return false
}
