package classifier

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/xaenox/kg-note/internal/models"
)

// FallbackCategory is assigned whenever a categorization cannot be obtained.
const FallbackCategory = "General"

const maxCategories = 4

// PageContext is the webpage a note was captured on.
type PageContext struct {
	URL    string
	Title  string
	Domain string
}

// Categorizer assigns categories to content. Implementations never fail:
// anything that goes wrong degrades to Fallback().
type Categorizer interface {
	Categorize(ctx context.Context, content string, page PageContext, existing []models.Category) models.Categorization
}

// Assistant groups the auxiliary text helpers offered next to categorization.
type Assistant interface {
	Summarize(ctx context.Context, content string, maxLength int) string
	ExtractKeywords(ctx context.Context, content string, maxKeywords int) []string
	GenerateQuestions(ctx context.Context, content string, numQuestions int) []string
}

// Fallback is the fixed categorization used when the model cannot help.
func Fallback() models.Categorization {
	return models.Categorization{Categories: []string{FallbackCategory}}
}

// KeywordCategorizer works without a model: hashtags in the content that name
// an existing category select it.
type KeywordCategorizer struct {
	maxTags int
}

func NewKeywordCategorizer(maxTags int) *KeywordCategorizer {
	if maxTags <= 0 || maxTags > maxCategories {
		maxTags = maxCategories
	}
	return &KeywordCategorizer{maxTags: maxTags}
}

func (c *KeywordCategorizer) Categorize(_ context.Context, content string, _ PageContext, existing []models.Category) models.Categorization {
	var result []string
	for _, tag := range extractHashtags(content) {
		for _, cat := range existing {
			if models.SameName(cat.Category, tag) && !containsFold(result, cat.Category) {
				result = append(result, cat.Category)
				break
			}
		}
		if len(result) == c.maxTags {
			break
		}
	}

	if len(result) == 0 {
		return Fallback()
	}
	return models.Categorization{Categories: result}
}

func (c *KeywordCategorizer) Summarize(_ context.Context, content string, maxLength int) string {
	return truncate(content, maxLength)
}

func (c *KeywordCategorizer) ExtractKeywords(_ context.Context, content string, maxKeywords int) []string {
	tags := extractHashtags(content)
	if maxKeywords > 0 && len(tags) > maxKeywords {
		tags = tags[:maxKeywords]
	}
	return tags
}

func (c *KeywordCategorizer) GenerateQuestions(context.Context, string, int) []string {
	return []string{}
}

// extractHashtags returns the distinct #tags of the content in order of
// appearance, underscores read as spaces.
func extractHashtags(content string) []string {
	tags := []string{}
	for _, word := range strings.Fields(content) {
		if !strings.HasPrefix(word, "#") {
			continue
		}
		tag := strings.TrimRight(strings.TrimPrefix(word, "#"), ".,;:!?")
		tag = strings.ReplaceAll(tag, "_", " ")
		if tag != "" && !containsFold(tags, tag) {
			tags = append(tags, tag)
		}
	}
	return tags
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if models.SameName(v, s) {
			return true
		}
	}
	return false
}

// truncate shortens content to maxLength runes, marking the cut with "...".
func truncate(content string, maxLength int) string {
	if maxLength <= 0 || utf8.RuneCountInString(content) <= maxLength {
		return content
	}
	return string([]rune(content)[:maxLength]) + "..."
}
