package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/xaenox/kg-note/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

const uniqueViolation = "23505"

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (c DatabaseConfig) ConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresStorage connects, verifies the connection and applies the schema.
func NewPostgresStorage(ctx context.Context, config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", config.ConnString())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := NewPostgresStorageFromDB(db, logger)
	if err := storage.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Connected to PostgreSQL",
		zap.String("host", config.Host),
		zap.String("database", config.DBName))
	return storage, nil
}

// NewPostgresStorageFromDB wraps an already opened handle without touching
// the schema.
func NewPostgresStorageFromDB(db *sql.DB, logger *zap.Logger) *PostgresStorage {
	return &PostgresStorage{db: db, logger: logger}
}

func (s *PostgresStorage) Migrate(ctx context.Context) error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func checkAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// User methods

func (s *PostgresStorage) UpsertUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, name, picture, google_id, is_anonymous, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			picture = EXCLUDED.picture,
			google_id = EXCLUDED.google_id,
			is_anonymous = EXCLUDED.is_anonymous,
			source = EXCLUDED.source,
			last_login = NOW(),
			updated_at = NOW()
		RETURNING created_at, last_login, updated_at`

	err := s.db.QueryRowContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.Picture,
		user.GoogleID,
		user.IsAnonymous,
		user.Source,
	).Scan(&user.CreatedAt, &user.LastLogin, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error upserting user: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, email, name, picture, google_id, is_anonymous, source, created_at, last_login, updated_at
		FROM users
		WHERE id = $1`

	user := &models.User{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Picture,
		&user.GoogleID,
		&user.IsAnonymous,
		&user.Source,
		&user.CreatedAt,
		&user.LastLogin,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	return user, nil
}

// Category methods

func (s *PostgresStorage) ListCategories(ctx context.Context, userID string) ([]models.Category, error) {
	query := `
		SELECT id, category, definition
		FROM categories
		WHERE user_id = $1
		ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Category, &c.Definition); err != nil {
			return nil, fmt.Errorf("error scanning category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *PostgresStorage) GetCategory(ctx context.Context, userID, id string) (*models.Category, error) {
	query := `
		SELECT id, category, definition
		FROM categories
		WHERE user_id = $1 AND id = $2`

	var c models.Category
	err := s.db.QueryRowContext(ctx, query, userID, id).Scan(&c.ID, &c.Category, &c.Definition)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting category: %w", err)
	}
	return &c, nil
}

func (s *PostgresStorage) CreateCategory(ctx context.Context, userID string, category models.Category) (string, error) {
	query := `
		INSERT INTO categories (id, user_id, category, definition)
		VALUES ($1, $2, $3, $4)`

	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, query, id, userID, category.Category, category.Definition)
	if isUniqueViolation(err) {
		return "", ErrConflict
	}
	if err != nil {
		return "", fmt.Errorf("error creating category: %w", err)
	}
	return id, nil
}

func (s *PostgresStorage) UpdateCategory(ctx context.Context, userID, id string, category models.Category) error {
	query := `
		UPDATE categories
		SET category = $1, definition = $2
		WHERE user_id = $3 AND id = $4`

	result, err := s.db.ExecContext(ctx, query, category.Category, category.Definition, userID, id)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("error updating category: %w", err)
	}
	return checkAffected(result)
}

func (s *PostgresStorage) DeleteCategory(ctx context.Context, userID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("error deleting category: %w", err)
	}
	return checkAffected(result)
}

// Note methods

const noteColumns = `id, user_id, content, title, url, domain, summary, categories, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*models.Note, error) {
	note := &models.Note{}
	err := row.Scan(
		&note.ID,
		&note.UserID,
		&note.Content,
		&note.Metadata.Title,
		&note.Metadata.URL,
		&note.Metadata.Domain,
		&note.Metadata.Summary,
		pq.Array(&note.Categories),
		&note.CreatedAt,
		&note.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if note.Categories == nil {
		note.Categories = []string{}
	}
	return note, nil
}

func (s *PostgresStorage) queryNotes(ctx context.Context, query string, args ...any) ([]*models.Note, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying notes: %w", err)
	}
	defer rows.Close()

	notes := []*models.Note{}
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning note: %w", err)
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

func (s *PostgresStorage) CreateNote(ctx context.Context, note *models.Note) error {
	query := `
		INSERT INTO notes (id, user_id, content, title, url, domain, summary, categories)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	if note.Categories == nil {
		note.Categories = []string{}
	}

	id := uuid.New().String()
	err := s.db.QueryRowContext(ctx, query,
		id,
		note.UserID,
		note.Content,
		note.Metadata.Title,
		note.Metadata.URL,
		note.Metadata.Domain,
		note.Metadata.Summary,
		pq.Array(note.Categories),
	).Scan(&note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating note: %w", err)
	}
	note.ID = id
	return nil
}

func (s *PostgresStorage) ListNotes(ctx context.Context, userID string, limit, offset int) ([]*models.Note, error) {
	query := `
		SELECT ` + noteColumns + `
		FROM notes
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	return s.queryNotes(ctx, query, userID, limit, offset)
}

func (s *PostgresStorage) GetNote(ctx context.Context, userID, id string) (*models.Note, error) {
	query := `
		SELECT ` + noteColumns + `
		FROM notes
		WHERE user_id = $1 AND id = $2`

	note, err := scanNote(s.db.QueryRowContext(ctx, query, userID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting note: %w", err)
	}
	return note, nil
}

func (s *PostgresStorage) UpdateNote(ctx context.Context, userID, id string, update models.NoteUpdate) error {
	query := `
		UPDATE notes
		SET content = $1, title = $2, url = $3, domain = $4, summary = $5,
			categories = COALESCE($6, categories), updated_at = $7
		WHERE user_id = $8 AND id = $9`

	var categories any
	if update.Categories != nil {
		categories = pq.Array(update.Categories)
	}

	result, err := s.db.ExecContext(ctx, query,
		update.Content,
		update.Metadata.Title,
		update.Metadata.URL,
		update.Metadata.Domain,
		update.Metadata.Summary,
		categories,
		time.Now(),
		userID,
		id,
	)
	if err != nil {
		return fmt.Errorf("error updating note: %w", err)
	}
	return checkAffected(result)
}

func (s *PostgresStorage) DeleteNote(ctx context.Context, userID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("error deleting note: %w", err)
	}
	return checkAffected(result)
}

func (s *PostgresStorage) SearchNotes(ctx context.Context, userID, query string, limit int) ([]*models.Note, error) {
	q := `
		SELECT ` + noteColumns + `
		FROM notes
		WHERE user_id = $1 AND strpos(lower(content), lower($2)) > 0
		ORDER BY created_at DESC
		LIMIT $3`

	return s.queryNotes(ctx, q, userID, query, limit)
}

func (s *PostgresStorage) NotesByCategory(ctx context.Context, userID, category string, limit int) ([]*models.Note, error) {
	query := `
		SELECT ` + noteColumns + `
		FROM notes
		WHERE user_id = $1 AND $2 = ANY(categories)
		ORDER BY created_at DESC
		LIMIT $3`

	return s.queryNotes(ctx, query, userID, category, limit)
}

func (s *PostgresStorage) NoteStatistics(ctx context.Context, userID string) (models.Statistics, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT categories FROM notes WHERE user_id = $1`, userID)
	if err != nil {
		return models.Statistics{}, fmt.Errorf("error querying note statistics: %w", err)
	}
	defer rows.Close()

	var lists [][]string
	for rows.Next() {
		var categories []string
		if err := rows.Scan(pq.Array(&categories)); err != nil {
			return models.Statistics{}, fmt.Errorf("error scanning note categories: %w", err)
		}
		lists = append(lists, categories)
	}
	if err := rows.Err(); err != nil {
		return models.Statistics{}, err
	}
	return models.ComputeStatistics(lists), nil
}

func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
