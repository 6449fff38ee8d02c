// Package server exposes the HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/xaenox/kg-note/internal/auth"
	"github.com/xaenox/kg-note/internal/classifier"
	"github.com/xaenox/kg-note/internal/metrics"
	"github.com/xaenox/kg-note/internal/notes"
	"github.com/xaenox/kg-note/internal/storage"
	"go.uber.org/zap"
)

// Pinger reports database reachability for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Auth      *auth.Service
	Notes     *notes.Service
	Assistant classifier.Assistant
	Metrics   *metrics.Collector
	// Database is nil when running without a database.
	Database Pinger
	// LLMEnabled reports whether a model backs categorization.
	LLMEnabled     bool
	AllowedOrigins []string
	Logger         *zap.Logger
}

type Server struct {
	auth      *auth.Service
	notes     *notes.Service
	assistant classifier.Assistant
	metrics   *metrics.Collector
	database  Pinger
	llm       bool
	origins   []string
	logger    *zap.Logger
}

func New(deps Deps) *Server {
	return &Server{
		auth:      deps.Auth,
		notes:     deps.Notes,
		assistant: deps.Assistant,
		metrics:   deps.Metrics,
		database:  deps.Database,
		llm:       deps.LLMEnabled,
		origins:   deps.AllowedOrigins,
		logger:    deps.Logger,
	}
}

// Routes builds the router with all middleware attached.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(s.logger))
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/google", s.googleLogin)
		r.Post("/chrome-extension", s.extensionLogin)
		r.Post("/anonymous", s.anonymousLogin)
		r.With(authenticate(s.auth.Tokens())).Get("/me", s.me)
	})

	r.Group(func(r chi.Router) {
		r.Use(authenticate(s.auth.Tokens()))

		r.Route("/notes", func(r chi.Router) {
			r.Post("/", s.createNote)
			r.Get("/", s.listNotes)
			r.Get("/search", s.searchNotes)
			r.Get("/by-category", s.notesByCategory)
			r.Get("/statistics", s.statistics)
			r.Get("/{noteID}", s.getNote)
			r.Put("/{noteID}", s.updateNote)
			r.Delete("/{noteID}", s.deleteNote)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", s.listCategories)
			r.Post("/", s.createCategory)
			r.Put("/{categoryID}", s.updateCategory)
			r.Delete("/{categoryID}", s.deleteCategory)
		})

		r.Post("/categorize", s.categorize)

		r.Route("/llm", func(r chi.Router) {
			r.Post("/summarize", s.summarize)
			r.Post("/keywords", s.keywords)
			r.Post("/questions", s.questions)
		})

		r.Route("/kg", func(r chi.Router) {
			r.Post("/notes", s.kgAddNote)
			r.Get("/notes/{noteID}/related", s.kgRelated)
			r.Post("/search", s.kgSearch)
			r.Get("/overview", s.kgOverview)
			r.Post("/import", s.kgImport)
			r.Get("/export", s.kgExport)
		})
	})

	return r
}

// respondServiceError maps service errors onto status codes. notFound is the
// detail used for storage.ErrNotFound.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, notes.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "Database not available")
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, notFound)
	case errors.Is(err, storage.ErrConflict):
		respondError(w, http.StatusBadRequest, "Category name already exists")
	default:
		s.logger.Error("Request failed",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("requestID", chimiddleware.GetReqID(r.Context())))
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

type healthResponse struct {
	Status   string            `json:"status"`
	Message  string            `json:"message"`
	Database string            `json:"database"`
	Services map[string]string `json:"services"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	database := "disconnected"
	if s.database != nil && s.database.Ping(r.Context()) == nil {
		database = "connected"
	}

	respondJSON(w, http.StatusOK, healthResponse{
		Status:   "healthy",
		Message:  "Knowledge Weaver API is running",
		Database: database,
		Services: map[string]string{
			"llm":             availability(s.llm),
			"database":        availability(s.notes.NotesAvailable()),
			"knowledge_graph": availability(s.notes.Graph() != nil),
		},
	})
}

func availability(ok bool) string {
	if ok {
		return "available"
	}
	return "unavailable"
}
