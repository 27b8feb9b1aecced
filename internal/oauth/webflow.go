package oauth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/apexmind/backend/internal/models"
)

var appleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://appleid.apple.com/auth/authorize",
	TokenURL: "https://appleid.apple.com/auth/token",
}

// WebFlow implements the browser-based OAuth authorization-code flow for a
// provider. The native mobile path skips this and posts an id-token directly
// to the verifier.
type WebFlow struct {
	config   *oauth2.Config
	authOpts []oauth2.AuthCodeOption
	verifier *IDTokenVerifier
}

func NewGoogleWebFlow(clientID, clientSecret, redirectURL string, verifier *IDTokenVerifier) *WebFlow {
	return &WebFlow{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		authOpts: []oauth2.AuthCodeOption{oauth2.AccessTypeOffline},
		verifier: verifier,
	}
}

// NewAppleWebFlow configures Sign in with Apple for the web. The client id is
// the Services ID, and the client secret is the pre-generated signed JWT Apple
// requires in place of a static secret. Apple only delivers the callback as a
// form POST when scopes are requested.
func NewAppleWebFlow(clientID, clientSecret, redirectURL string, verifier *IDTokenVerifier) *WebFlow {
	return &WebFlow{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"email"},
			Endpoint:     appleEndpoint,
		},
		authOpts: []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("response_mode", "form_post")},
		verifier: verifier,
	}
}

// AuthCodeURL builds the provider consent URL for the given anti-CSRF state.
func (f *WebFlow) AuthCodeURL(state string) string {
	return f.config.AuthCodeURL(state, f.authOpts...)
}

// Exchange trades the authorization code for tokens and verifies the
// id-token carried in the response.
func (f *WebFlow) Exchange(ctx context.Context, code string) (*models.Identity, error) {
	token, err := f.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%w: token response has no id_token", ErrInvalidToken)
	}

	return f.verifier.VerifyToken(rawIDToken)
}
