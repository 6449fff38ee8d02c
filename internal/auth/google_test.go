package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

func TestIdentityFromPayload(t *testing.T) {
	payload := &idtoken.Payload{
		Issuer:  "https://accounts.google.com",
		Subject: "1234",
		Claims: map[string]interface{}{
			"email":   "ada@example.com",
			"name":    "Ada",
			"picture": "https://example.com/ada.png",
		},
	}

	id, err := identityFromPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, Identity{
		UserID:   "google_1234",
		Email:    "ada@example.com",
		Name:     "Ada",
		Picture:  "https://example.com/ada.png",
		GoogleID: "1234",
	}, id)

	payload.Issuer = "accounts.google.com"
	_, err = identityFromPayload(payload)
	assert.NoError(t, err)

	payload.Issuer = "https://evil.example.com"
	_, err = identityFromPayload(payload)
	assert.ErrorIs(t, err, ErrVerification)
}

func newUserinfoServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/oauth2/v2/userinfo") {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":401,"message":"Invalid Credentials"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestUserinfoVerifier(t *testing.T) {
	srv := newUserinfoServer(t, `{"id":"987","email":"grace@example.com","name":"Grace","picture":"https://example.com/g.png"}`)
	v := NewUserinfoVerifier(option.WithEndpoint(srv.URL + "/"))

	id, err := v.Verify(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, "google_987", id.UserID)
	assert.Equal(t, "grace@example.com", id.Email)
	assert.Equal(t, "Grace", id.Name)
	assert.Equal(t, "987", id.GoogleID)

	_, err = v.Verify(context.Background(), "stolen-token")
	assert.ErrorIs(t, err, ErrVerification)

	_, err = v.Verify(context.Background(), "")
	assert.ErrorIs(t, err, ErrVerification)
}

func TestUserinfoVerifierNameFallsBackToEmail(t *testing.T) {
	srv := newUserinfoServer(t, `{"id":"987","email":"grace@example.com"}`)
	v := NewUserinfoVerifier(option.WithEndpoint(srv.URL + "/"))

	id, err := v.Verify(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", id.Name)
}
