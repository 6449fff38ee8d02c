package server

import (
	"errors"
	"net/http"

	"github.com/xaenox/kg-note/internal/auth"
	"go.uber.org/zap"
)

type googleLoginRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// extensionLoginRequest keeps user_info for older clients; it is not used
// to derive the identity.
type extensionLoginRequest struct {
	AccessToken string                 `json:"access_token" validate:"required"`
	UserInfo    map[string]interface{} `json:"user_info"`
}

type authResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	ExpiresIn   int    `json:"expires_in"`
}

type anonymousResponse struct {
	UserID      string `json:"userId"`
	IsAnonymous bool   `json:"isAnonymous"`
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type meResponse struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Picture     string `json:"picture,omitempty"`
	IsAnonymous bool   `json:"is_anonymous"`
}

func newAuthResponse(session *auth.Session) authResponse {
	return authResponse{
		AccessToken: session.AccessToken,
		TokenType:   "Bearer",
		UserID:      session.Identity.UserID,
		Email:       session.Identity.Email,
		Name:        session.Identity.Name,
		ExpiresIn:   session.ExpiresIn,
	}
}

func (s *Server) googleLogin(w http.ResponseWriter, r *http.Request) {
	var req googleLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := s.auth.LoginGoogle(r.Context(), req.IDToken)
	if err != nil {
		s.loginFailed(w, err, "Google authentication failed")
		return
	}
	respondJSON(w, http.StatusOK, newAuthResponse(session))
}

func (s *Server) extensionLogin(w http.ResponseWriter, r *http.Request) {
	var req extensionLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := s.auth.LoginExtension(r.Context(), req.AccessToken)
	if err != nil {
		s.loginFailed(w, err, "Chrome extension authentication failed")
		return
	}
	respondJSON(w, http.StatusOK, newAuthResponse(session))
}

func (s *Server) loginFailed(w http.ResponseWriter, err error, detail string) {
	s.logger.Warn("Login failed", zap.Error(err))
	if errors.Is(err, auth.ErrProviderNotConfigured) {
		respondError(w, http.StatusServiceUnavailable, "Login provider not configured")
		return
	}
	unauthorized(w, detail)
}

func (s *Server) anonymousLogin(w http.ResponseWriter, r *http.Request) {
	session, err := s.auth.LoginAnonymous(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, anonymousResponse{
		UserID:      session.Identity.UserID,
		IsAnonymous: true,
		Message:     "Anonymous user created successfully",
		AccessToken: session.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   session.ExpiresIn,
	})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	user, err := s.auth.CurrentUser(r.Context(), claims)
	if err != nil {
		s.respondServiceError(w, r, err, "User not found")
		return
	}
	respondJSON(w, http.StatusOK, meResponse{
		UserID:      user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Picture:     user.Picture,
		IsAnonymous: user.IsAnonymous,
	})
}
