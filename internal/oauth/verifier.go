package oauth

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/apexmind/backend/internal/models"
)

const (
	googleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
	appleJWKSURL  = "https://appleid.apple.com/auth/keys"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingClaims = errors.New("missing required claims")
)

// IDTokenVerifier verifies a provider-issued id-token against the provider's
// JWKS and the configured audience, reducing it to a verified identity.
type IDTokenVerifier struct {
	provider  string
	audiences []string
	jwks      *keyfunc.JWKS
	mu        sync.RWMutex
}

func NewGoogleVerifier(clientIDs []string) (*IDTokenVerifier, error) {
	return newVerifier(models.ProviderGoogle, googleJWKSURL, clientIDs)
}

func NewAppleVerifier(clientIDs []string) (*IDTokenVerifier, error) {
	return newVerifier(models.ProviderApple, appleJWKSURL, clientIDs)
}

func newVerifier(provider, jwksURL string, audiences []string) (*IDTokenVerifier, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s JWKS: %w", provider, err)
	}

	return &IDTokenVerifier{
		provider:  provider,
		audiences: audiences,
		jwks:      jwks,
	}, nil
}

// VerifyToken checks the id-token's signature and audience and extracts the
// identity attributes from the verified payload.
func (v *IDTokenVerifier) VerifyToken(tokenString string) (*models.Identity, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	token, err := jwt.Parse(tokenString, v.jwks.Keyfunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrMissingClaims
	}

	if !v.audienceAllowed(claims) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrInvalidToken)
	}

	return identityFromClaims(v.provider, claims)
}

func (v *IDTokenVerifier) audienceAllowed(claims jwt.MapClaims) bool {
	auds, err := claims.GetAudience()
	if err != nil {
		return false
	}
	for _, aud := range auds {
		for _, allowed := range v.audiences {
			if aud == allowed {
				return true
			}
		}
	}
	return false
}

func identityFromClaims(provider string, claims jwt.MapClaims) (*models.Identity, error) {
	subject, ok := claims["sub"].(string)
	if !ok || subject == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrMissingClaims)
	}

	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return nil, fmt.Errorf("%w: missing email claim", ErrMissingClaims)
	}

	identity := &models.Identity{
		Provider:   provider,
		Email:      email,
		ExternalID: subject,
	}

	if name, ok := claims["name"].(string); ok && name != "" {
		identity.Name = &name
	}
	if picture, ok := claims["picture"].(string); ok && picture != "" {
		identity.Picture = &picture
	}

	return identity, nil
}

func (v *IDTokenVerifier) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
