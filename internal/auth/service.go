package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/kg-note/internal/models"
	"github.com/xaenox/kg-note/internal/storage"
	"go.uber.org/zap"
)

// Login sources recorded on the user.
const (
	SourceGoogle    = "google"
	SourceExtension = "chrome_extension"
	SourceAnonymous = "anonymous"
)

// ErrProviderNotConfigured is returned when a login flow has no verifier.
var ErrProviderNotConfigured = errors.New("login provider not configured")

// Session is the outcome of a successful login.
type Session struct {
	AccessToken string
	ExpiresIn   int
	Identity    Identity
}

// Service runs the login flows: verify, record the user, issue a token.
type Service struct {
	tokens    *TokenIssuer
	users     storage.UserStore
	google    Verifier
	extension Verifier
	logger    *zap.Logger
}

// NewService wires the login flows. users may be nil when no database is
// reachable; google and extension may be nil to disable a flow.
func NewService(tokens *TokenIssuer, users storage.UserStore, google, extension Verifier, logger *zap.Logger) *Service {
	return &Service{
		tokens:    tokens,
		users:     users,
		google:    google,
		extension: extension,
		logger:    logger,
	}
}

func (s *Service) Tokens() *TokenIssuer {
	return s.tokens
}

func (s *Service) LoginGoogle(ctx context.Context, idToken string) (*Session, error) {
	if s.google == nil {
		return nil, ErrProviderNotConfigured
	}
	id, err := s.google.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}
	return s.login(ctx, id, SourceGoogle)
}

// LoginExtension trusts only the identity returned by the provider for the
// access token.
func (s *Service) LoginExtension(ctx context.Context, accessToken string) (*Session, error) {
	if s.extension == nil {
		return nil, ErrProviderNotConfigured
	}
	id, err := s.extension.Verify(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return s.login(ctx, id, SourceExtension)
}

func (s *Service) LoginAnonymous(ctx context.Context) (*Session, error) {
	id := Identity{
		UserID:      NewAnonymousID(),
		IsAnonymous: true,
	}
	return s.login(ctx, id, SourceAnonymous)
}

// NewAnonymousID returns "anonymous_" followed by 8 hex characters.
func NewAnonymousID() string {
	return "anonymous_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func (s *Service) login(ctx context.Context, id Identity, source string) (*Session, error) {
	s.recordUser(ctx, id, source)

	token, err := s.tokens.Issue(id)
	if err != nil {
		return nil, err
	}
	return &Session{
		AccessToken: token,
		ExpiresIn:   int(s.tokens.TTL() / time.Second),
		Identity:    id,
	}, nil
}

// recordUser upserts the user. A failed write does not block the login
// since sessions are stateless.
func (s *Service) recordUser(ctx context.Context, id Identity, source string) {
	if s.users == nil {
		return
	}
	user := &models.User{
		ID:          id.UserID,
		Email:       id.Email,
		Name:        id.Name,
		Picture:     id.Picture,
		GoogleID:    id.GoogleID,
		IsAnonymous: id.IsAnonymous,
		Source:      source,
	}
	if err := s.users.UpsertUser(ctx, user); err != nil {
		s.logger.Error("Failed to record user",
			zap.String("user_id", id.UserID),
			zap.String("source", source),
			zap.Error(err))
	}
}

// CurrentUser resolves the stored profile for the claims, falling back to
// what the token itself carries.
func (s *Service) CurrentUser(ctx context.Context, claims *Claims) (*models.User, error) {
	fromToken := &models.User{
		ID:          claims.UserID,
		Email:       claims.Email,
		Name:        claims.Name,
		IsAnonymous: claims.IsAnonymous,
	}
	if s.users == nil {
		return fromToken, nil
	}

	user, err := s.users.GetUser(ctx, claims.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return fromToken, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}
