package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"github.com/xaenox/kg-note/internal/metrics"
	"github.com/xaenox/kg-note/internal/models"
	"go.uber.org/zap"
)

var errEmptyResponse = errors.New("model returned no choices")

type GPTOptions struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// GPTClassifier talks to an OpenAI compatible chat completion endpoint.
type GPTClassifier struct {
	client  *openai.Client
	opts    GPTOptions
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewGPTClassifier(opts GPTOptions, collector *metrics.Collector, logger *zap.Logger) *GPTClassifier {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	c := &GPTClassifier{
		client:  openai.NewClientWithConfig(cfg),
		opts:    opts,
		metrics: collector,
		logger:  logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

// complete sends one system+user exchange and returns the trimmed reply text.
func (c *GPTClassifier) complete(ctx context.Context, system, user string, temperature float64, maxTokens int, jsonReply bool) (string, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model: c.opts.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: float32(temperature),
		MaxTokens:   maxTokens,
	}
	if jsonReply {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, errEmptyResponse
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

type categorizationReply struct {
	Categories    *[]string         `json:"categories"`
	NewCategories []models.Category `json:"new_categories"`
}

// Categorize asks the model for 1-4 categories. Every failure, including a
// reply without a usable "categories" list, yields Fallback().
func (c *GPTClassifier) Categorize(ctx context.Context, content string, page PageContext, existing []models.Category) models.Categorization {
	userPrompt, err := buildCategorizationPrompt(content, page, existing)
	if err != nil {
		c.logger.Error("Failed to build categorization prompt", zap.Error(err))
		return c.fallback()
	}

	response, err := c.complete(ctx, categorizationSystemPrompt, userPrompt, c.opts.Temperature, c.opts.MaxTokens, true)
	if err != nil {
		c.logger.Error("Failed to get categorization response", zap.Error(err))
		return c.fallback()
	}
	c.logger.Debug("Categorization response", zap.String("response", response))

	result, err := parseCategorization(response)
	if err != nil {
		c.logger.Error("Failed to parse categorization response",
			zap.Error(err),
			zap.String("response", response))
		return c.fallback()
	}

	c.metrics.ObserveCategorization(metrics.OutcomeModel)
	return result
}

func (c *GPTClassifier) fallback() models.Categorization {
	c.metrics.ObserveCategorization(metrics.OutcomeFallback)
	return Fallback()
}

func parseCategorization(response string) (models.Categorization, error) {
	var reply categorizationReply
	if err := json.Unmarshal([]byte(response), &reply); err != nil {
		return models.Categorization{}, err
	}
	if reply.Categories == nil {
		return models.Categorization{}, errors.New("response missing required 'categories' field")
	}

	var result models.Categorization
	for _, name := range *reply.Categories {
		name = strings.TrimSpace(name)
		if name != "" {
			result.Categories = append(result.Categories, name)
		}
	}
	if len(result.Categories) == 0 {
		return models.Categorization{}, errors.New("response has an empty 'categories' field")
	}

	for _, nc := range reply.NewCategories {
		name := strings.TrimSpace(nc.Category)
		if name == "" {
			continue
		}
		result.NewCategories = append(result.NewCategories, models.Category{
			Category:   name,
			Definition: strings.TrimSpace(nc.Definition),
		})
	}
	return result, nil
}

// Summarize falls back to truncating the content.
func (c *GPTClassifier) Summarize(ctx context.Context, content string, maxLength int) string {
	system := fmt.Sprintf(summarySystemPrompt, maxLength)
	summary, err := c.complete(ctx, system, "Please summarize this content: "+content, 0.3, 0, false)
	if err != nil || summary == "" {
		c.logger.Error("Failed to generate summary", zap.Error(err))
		return truncate(content, maxLength)
	}
	return summary
}

func (c *GPTClassifier) ExtractKeywords(ctx context.Context, content string, maxKeywords int) []string {
	system := fmt.Sprintf(keywordsSystemPrompt, maxKeywords)
	return c.stringList(ctx, system, "Extract keywords from: "+content, "keywords", 0.1)
}

func (c *GPTClassifier) GenerateQuestions(ctx context.Context, content string, numQuestions int) []string {
	system := fmt.Sprintf(questionsSystemPrompt, numQuestions)
	return c.stringList(ctx, system, "Generate study questions for: "+content, "questions", 0.3)
}

// stringList requests a JSON object and returns its string array under key,
// or an empty list on any failure.
func (c *GPTClassifier) stringList(ctx context.Context, system, user, key string, temperature float64) []string {
	response, err := c.complete(ctx, system, user, temperature, 0, true)
	if err != nil {
		c.logger.Error("Failed to get model response", zap.String("key", key), zap.Error(err))
		return []string{}
	}

	var reply map[string]json.RawMessage
	var values []string
	err = json.Unmarshal([]byte(response), &reply)
	if err == nil && reply[key] != nil {
		err = json.Unmarshal(reply[key], &values)
	}
	if err != nil {
		c.logger.Error("Failed to parse model response",
			zap.String("key", key),
			zap.Error(err),
			zap.String("response", response))
		return []string{}
	}
	if values == nil {
		return []string{}
	}
	return values
}
