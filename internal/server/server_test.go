package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/kg-note/internal/auth"
	"github.com/xaenox/kg-note/internal/classifier"
	"github.com/xaenox/kg-note/internal/kg"
	"github.com/xaenox/kg-note/internal/metrics"
	"github.com/xaenox/kg-note/internal/models"
	"github.com/xaenox/kg-note/internal/notes"
	"github.com/xaenox/kg-note/internal/storage"
	"go.uber.org/zap"
)

type stubCategorizer struct {
	result models.Categorization
}

func (s stubCategorizer) Categorize(context.Context, string, classifier.PageContext, []models.Category) models.Categorization {
	return s.result
}

type stubVerifier struct {
	identity auth.Identity
	err      error
}

func (s stubVerifier) Verify(context.Context, string) (auth.Identity, error) {
	return s.identity, s.err
}

type testEnv struct {
	handler http.Handler
	store   *storage.MemoryStorage
	tokens  *auth.TokenIssuer
}

type envOption func(*envConfig)

type envConfig struct {
	categorizer classifier.Categorizer
	noteStore   bool
	graph       kg.Graph
}

func withGraph(g kg.Graph) envOption {
	return func(cfg *envConfig) { cfg.graph = g }
}

func withCategorizer(c classifier.Categorizer) envOption {
	return func(cfg *envConfig) { cfg.categorizer = c }
}

func withoutNoteStore() envOption {
	return func(cfg *envConfig) { cfg.noteStore = false }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	cfg := envConfig{
		categorizer: stubCategorizer{result: models.Categorization{Categories: []string{"General"}}},
		noteStore:   true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := zap.NewNop()
	store := storage.NewMemoryStorage()
	tokens, err := auth.NewTokenIssuer("test-secret", 0)
	require.NoError(t, err)

	google := stubVerifier{identity: auth.Identity{UserID: "google_1", Email: "ada@example.com", Name: "Ada"}}
	extension := stubVerifier{identity: auth.Identity{UserID: "google_2", Email: "grace@example.com", Name: "Grace"}}
	authSvc := auth.NewService(tokens, store, google, extension, logger)

	var noteStore storage.NoteStore
	if cfg.noteStore {
		noteStore = store
	}
	notesSvc := notes.NewService(store, noteStore, cfg.categorizer, cfg.graph, nil, logger)

	srv := New(Deps{
		Auth:           authSvc,
		Notes:          notesSvc,
		Assistant:      classifier.NewKeywordCategorizer(0),
		Metrics:        metrics.NewCollector("test"),
		Database:       store,
		AllowedOrigins: []string{"http://localhost:3000"},
		Logger:         logger,
	})
	return &testEnv{handler: srv.Routes(), store: store, tokens: tokens}
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := e.tokens.Issue(auth.Identity{UserID: userID, Email: userID + "@example.com", Name: userID})
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body healthResponse
	decode(t, rec, &body)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "connected", body.Database)
	assert.Equal(t, "unavailable", body.Services["llm"])
	assert.Equal(t, "available", body.Services["database"])
	assert.Equal(t, "unavailable", body.Services["knowledge_graph"])
}

func TestProtectedRoutesRequireBearer(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/notes", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	rec = env.do(t, http.MethodGet, "/categories", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body errorResponse
	decode(t, rec, &body)
	assert.Equal(t, "Could not validate credentials", body.Detail)

	rec = env.do(t, http.MethodPost, "/categorize", "", map[string]string{"content": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthFlows(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/auth/google", "", map[string]string{"id_token": "tok"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login authResponse
	decode(t, rec, &login)
	assert.Equal(t, "google_1", login.UserID)
	assert.Equal(t, "Bearer", login.TokenType)
	assert.Equal(t, 7*24*3600, login.ExpiresIn)

	rec = env.do(t, http.MethodGet, "/auth/me", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me meResponse
	decode(t, rec, &me)
	assert.Equal(t, "google_1", me.UserID)
	assert.Equal(t, "Ada", me.Name)

	rec = env.do(t, http.MethodPost, "/auth/chrome-extension", "", map[string]interface{}{
		"access_token": "tok",
		"user_info":    map[string]string{"id": "spoofed", "email": "evil@example.com"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &login)
	assert.Equal(t, "google_2", login.UserID)
	assert.Equal(t, "grace@example.com", login.Email)

	rec = env.do(t, http.MethodPost, "/auth/google", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/anonymous", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var anon anonymousResponse
	decode(t, rec, &anon)
	assert.True(t, anon.IsAnonymous)
	assert.Regexp(t, `^anonymous_[0-9a-f]{8}$`, anon.UserID)

	rec = env.do(t, http.MethodGet, "/auth/me", anon.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &me)
	assert.True(t, me.IsAnonymous)
}

func TestDuplicateCategoryIsRejected(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "u1")

	rec := env.do(t, http.MethodPost, "/categories", tok, map[string]string{"category": "health", "definition": "Body"})
	require.Equal(t, http.StatusOK, rec.Code)
	var created createCategoryResponse
	decode(t, rec, &created)
	assert.NotEmpty(t, created.CategoryID)

	rec = env.do(t, http.MethodPost, "/categories", tok, map[string]string{"category": "Health", "definition": "Again"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body errorResponse
	decode(t, rec, &body)
	assert.Equal(t, "Category name already exists", body.Detail)

	rec = env.do(t, http.MethodPost, "/categories", env.token(t, "u2"), map[string]string{"category": "Health"})
	assert.Equal(t, http.StatusOK, rec.Code, "other users have their own list")

	rec = env.do(t, http.MethodPost, "/categories", tok, map[string]string{"category": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCategoryLifecycle(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "u1")

	rec := env.do(t, http.MethodPost, "/categories", tok, map[string]string{"category": "Go"})
	require.Equal(t, http.StatusOK, rec.Code)
	var created createCategoryResponse
	decode(t, rec, &created)

	rec = env.do(t, http.MethodPut, "/categories/"+created.CategoryID, tok, map[string]string{"category": "Golang", "definition": "The Go language"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/categories", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list categoriesResponse
	decode(t, rec, &list)
	require.Len(t, list.Categories, 1)
	assert.Equal(t, "Golang", list.Categories[0].Category)

	rec = env.do(t, http.MethodDelete, "/categories/"+created.CategoryID, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var deleted deleteCategoryResponse
	decode(t, rec, &deleted)
	assert.Equal(t, "Golang", deleted.DeletedCategory.Category)

	rec = env.do(t, http.MethodDelete, "/categories/"+created.CategoryID, tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, "/categories/missing", tok, map[string]string{"category": "X"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNoteLifecycle(t *testing.T) {
	env := newTestEnv(t, withCategorizer(stubCategorizer{result: models.Categorization{Categories: []string{"Go"}}}))
	tok := env.token(t, "u1")

	rec := env.do(t, http.MethodPost, "/notes", tok, map[string]interface{}{
		"content":  "Channels are typed conduits",
		"metadata": map[string]string{"url": "https://go.dev/tour", "title": "A Tour of Go"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var created createNoteResponse
	decode(t, rec, &created)
	assert.NotEmpty(t, created.NoteID)
	assert.Equal(t, []string{"Go"}, created.Categories)

	rec = env.do(t, http.MethodGet, "/notes/"+created.NoteID, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got noteResponse
	decode(t, rec, &got)
	assert.Equal(t, "A Tour of Go", got.Note.Metadata.Title)

	rec = env.do(t, http.MethodGet, "/notes/"+created.NoteID, env.token(t, "u2"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "notes never leak across users")

	rec = env.do(t, http.MethodPut, "/notes/"+created.NoteID, tok, map[string]string{"content": "Channels, revisited"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/notes/search?query=REVISITED", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var found notesResponse
	decode(t, rec, &found)
	require.Len(t, found.Notes, 1)

	rec = env.do(t, http.MethodGet, "/notes/by-category?category=Go", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &found)
	assert.Len(t, found.Notes, 1)

	rec = env.do(t, http.MethodGet, "/notes/statistics", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.Statistics
	decode(t, rec, &stats)
	assert.Equal(t, 1, stats.TotalNotes)
	assert.Equal(t, 1, stats.CategoryDistribution["Go"])

	rec = env.do(t, http.MethodDelete, "/notes/"+created.NoteID, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/notes/"+created.NoteID, tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/notes", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"notes":[]}`, rec.Body.String())
}

func TestNoteValidation(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "u1")

	rec := env.do(t, http.MethodPost, "/notes", tok, map[string]string{"url": "https://example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body errorResponse
	decode(t, rec, &body)
	assert.Equal(t, "content is required", body.Detail)

	rec = env.do(t, http.MethodGet, "/notes?limit=abc", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/notes?limit=0", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/notes/search?query=x&limit=0", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/notes?limit=2&offset=0", tok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/notes/search", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotesUnavailableWithoutStore(t *testing.T) {
	env := newTestEnv(t, withoutNoteStore())
	tok := env.token(t, "u1")

	rec := env.do(t, http.MethodPost, "/notes", tok, map[string]string{"content": "x"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = env.do(t, http.MethodGet, "/notes", tok, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = env.do(t, http.MethodGet, "/categories", tok, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "categories still work")
}

func TestCategorizeReturnsProposals(t *testing.T) {
	env := newTestEnv(t, withCategorizer(stubCategorizer{result: models.Categorization{
		Categories:    []string{"Machine Learning"},
		NewCategories: []models.Category{{Category: "Machine Learning", Definition: "Algorithms that learn from data"}},
	}}))
	tok := env.token(t, "u1")

	rec := env.do(t, http.MethodPost, "/categorize", tok, map[string]string{
		"content": "Gradient descent minimizes a loss function",
		"url":     "https://example.com/ml",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.Categorization
	decode(t, rec, &result)
	assert.NotEmpty(t, result.Categories)
	require.Len(t, result.NewCategories, 1)
	assert.NotEmpty(t, result.NewCategories[0].Definition)

	categories, err := env.store.ListCategories(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, categories, 1)
}

func TestAssistantRoutes(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "u1")

	rec := env.do(t, http.MethodPost, "/llm/summarize", tok, map[string]interface{}{"content": "abcdefghij", "max_length": 4})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"summary":"abcd..."}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/llm/keywords", tok, map[string]string{"content": "#go #sql"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"keywords":["go","sql"]}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/llm/questions", tok, map[string]string{"content": "x"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"questions":[]}`, rec.Body.String())
}

func TestKnowledgeGraphRoutesUnavailable(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "u1")

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/kg/notes"},
		{http.MethodGet, "/kg/notes/n1/related"},
		{http.MethodPost, "/kg/search"},
		{http.MethodGet, "/kg/overview"},
		{http.MethodPost, "/kg/import"},
		{http.MethodGet, "/kg/export"},
	} {
		rec := env.do(t, tc.method, tc.path, tok, map[string]string{"query": "x", "content": "x"})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, tc.path)
	}
}

// documentGraph returns fixed documents for every read.
type documentGraph struct {
	lastLimit int
}

func (g *documentGraph) AddNoteEntity(_ context.Context, _ string, note *models.Note) (string, error) {
	return note.ID, nil
}

func (g *documentGraph) FindRelatedNotes(_ context.Context, _, noteID string, limit int) ([]kg.Document, error) {
	g.lastLimit = limit
	return []kg.Document{{"note_id": "n2", "via": noteID}}, nil
}

func (g *documentGraph) SearchEntities(context.Context, string, string, []string, int) ([]kg.Document, error) {
	return nil, nil
}

func (g *documentGraph) KnowledgeOverview(context.Context, string) (kg.Document, error) {
	return kg.Document{"total_notes": 2}, nil
}

func (g *documentGraph) Export(context.Context, string) (kg.Document, error) {
	return kg.Document{"notes": []string{"n1", "n2"}}, nil
}

func TestKnowledgeGraphRoutesPassDocumentsThrough(t *testing.T) {
	graph := &documentGraph{}
	env := newTestEnv(t, withGraph(graph))
	tok := env.token(t, "u1")

	rec := env.do(t, http.MethodGet, "/kg/notes/n1/related?limit=3", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"related_notes":[{"note_id":"n2","via":"n1"}]}`, rec.Body.String())
	assert.Equal(t, 3, graph.lastLimit)

	rec = env.do(t, http.MethodGet, "/kg/notes/n1/related?limit=0", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/kg/search", tok, map[string]string{"query": "go"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"results":[]}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/kg/overview", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_notes":2}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/kg/export", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"notes":["n1","n2"]}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/health", "", nil)

	rec := env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `test_http_requests_total{method="GET",route="/health",status="200"} 1`)
}
