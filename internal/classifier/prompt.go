package classifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xaenox/kg-note/internal/models"
)

const categorizationSystemPrompt = `You are an expert knowledge manager who excels at categorizing content. Help the user organize their knowledge by assigning relevant, meaningful categories.

INSTRUCTIONS:
1. Analyze the note content and identify the relevant topics, themes and concepts.
2. Assign 1-4 categories that best represent the content. Rich content may carry several.
3. Reuse an existing category whenever it matches semantically. Create a new one only when none fits.
4. Be specific so the user can discover connections between notes.
5. Never answer "Uncategorized". Every piece of content has a categorizable aspect.

Respond with a JSON object only.

Existing category only:
{
    "categories": ["Web Development"]
}

Mix of existing and new categories:
{
    "categories": ["Machine Learning", "Research Methods"],
    "new_categories": [
        {
            "category": "Research Methods",
            "definition": "Methodologies and approaches for conducting research and analysis"
        }
    ]
}

Every category listed under "new_categories" must also appear in "categories" and must carry a one sentence definition.`

const summarySystemPrompt = `You are an expert at writing concise, informative summaries. Summarize the provided content in %d characters or less, focusing on the key points and main ideas.`

const keywordsSystemPrompt = `Extract the %d most important keywords or phrases from the given content. Focus on technical terms, proper nouns and key concepts. Respond with a JSON object of the form {"keywords": ["..."]}.`

const questionsSystemPrompt = `Generate %d thoughtful study questions based on the provided content. The questions should help someone understand and remember the key concepts. Respond with a JSON object of the form {"questions": ["..."]}.`

// buildCategorizationPrompt renders the note, its page context and the
// user's existing categories.
func buildCategorizationPrompt(content string, page PageContext, existing []models.Category) (string, error) {
	var pageInfo strings.Builder
	fmt.Fprintf(&pageInfo, "URL: %s", page.URL)
	if page.Title != "" {
		fmt.Fprintf(&pageInfo, "\nPage Title: %s", page.Title)
	}
	if page.Domain != "" {
		fmt.Fprintf(&pageInfo, "\nWebsite: %s", page.Domain)
	}

	formatted := make([]string, 0, len(existing))
	for _, c := range existing {
		formatted = append(formatted, fmt.Sprintf("%s: %s", c.Category, c.Definition))
	}
	existingJSON, err := json.MarshalIndent(formatted, "", "  ")
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`Note Content: %q

Webpage Context:
%s

Existing Categories:
%s

Categorize this note considering both the content and the webpage context, and respond with JSON only.`,
		content, pageInfo.String(), existingJSON), nil
}
