package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

// ErrVerification is returned when a provider token is rejected.
var ErrVerification = errors.New("provider token verification failed")

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// Identity is a verified user as seen by a login flow.
type Identity struct {
	UserID      string
	Email       string
	Name        string
	Picture     string
	GoogleID    string
	IsAnonymous bool
}

// Verifier turns a provider token into a verified identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// IDTokenVerifier checks Google id tokens against the OAuth client id.
type IDTokenVerifier struct {
	clientID  string
	validator *idtoken.Validator
}

func NewIDTokenVerifier(ctx context.Context, clientID string, opts ...option.ClientOption) (*IDTokenVerifier, error) {
	if clientID == "" {
		return nil, errors.New("google client id is required")
	}
	v, err := idtoken.NewValidator(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create id token validator: %w", err)
	}
	return &IDTokenVerifier{clientID: clientID, validator: v}, nil
}

func (v *IDTokenVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	payload, err := v.validator.Validate(ctx, token, v.clientID)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrVerification, err)
	}
	return identityFromPayload(payload)
}

func identityFromPayload(payload *idtoken.Payload) (Identity, error) {
	if !googleIssuers[payload.Issuer] {
		return Identity{}, fmt.Errorf("%w: wrong issuer %q", ErrVerification, payload.Issuer)
	}
	if payload.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrVerification)
	}

	claim := func(key string) string {
		s, _ := payload.Claims[key].(string)
		return s
	}
	return Identity{
		UserID:   "google_" + payload.Subject,
		Email:    claim("email"),
		Name:     claim("name"),
		Picture:  claim("picture"),
		GoogleID: payload.Subject,
	}, nil
}

// UserinfoVerifier validates an OAuth access token by calling the Google
// userinfo endpoint with it. Only the provider's answer is trusted.
type UserinfoVerifier struct {
	opts []option.ClientOption
}

// NewUserinfoVerifier accepts extra client options, e.g. option.WithEndpoint.
func NewUserinfoVerifier(opts ...option.ClientOption) *UserinfoVerifier {
	return &UserinfoVerifier{opts: opts}
}

func (v *UserinfoVerifier) Verify(ctx context.Context, accessToken string) (Identity, error) {
	if accessToken == "" {
		return Identity{}, fmt.Errorf("%w: empty access token", ErrVerification)
	}

	opts := append([]option.ClientOption{
		option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})),
	}, v.opts...)
	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to create userinfo client: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrVerification, err)
	}
	if info.Id == "" || info.Email == "" {
		return Identity{}, fmt.Errorf("%w: userinfo lacks id or email", ErrVerification)
	}

	name := info.Name
	if name == "" {
		name = info.Email
	}
	return Identity{
		UserID:   "google_" + info.Id,
		Email:    info.Email,
		Name:     name,
		Picture:  info.Picture,
		GoogleID: info.Id,
	}, nil
}
