package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/apexmind/backend/internal/logger"
	"github.com/apexmind/backend/internal/models"
)

// Resolver maps verified identities onto store records: find by provider
// external id, fall back to linking by email, create as a last resort.
// The email unique constraint keeps concurrent first-signups on one row.
type Resolver struct {
	repo Repository
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

func (r *Resolver) Resolve(ctx context.Context, identity models.Identity) (*models.User, error) {
	identity.Email = strings.TrimSpace(identity.Email)
	if identity.Email == "" {
		return nil, fmt.Errorf("identity has no email")
	}

	if identity.ExternalID != "" {
		u, err := r.repo.GetByExternalID(ctx, identity.Provider, identity.ExternalID)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	u, err := r.repo.GetByEmail(ctx, identity.Email)
	if err == nil {
		return r.link(ctx, u, identity)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	created, err := r.create(ctx, identity)
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, ErrDuplicate) {
		return nil, err
	}

	// Lost the race to another first-signup; the winner's row is ours now.
	u, err = r.repo.GetByEmail(ctx, identity.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to re-fetch user after duplicate insert: %w", err)
	}
	return r.link(ctx, u, identity)
}

// link attaches the identity's external id to an existing account if it is
// not set yet and refreshes the display attributes.
func (r *Resolver) link(ctx context.Context, u *models.User, identity models.Identity) (*models.User, error) {
	if identity.ExternalID == "" {
		return u, nil
	}

	changed := false
	switch identity.Provider {
	case models.ProviderGoogle:
		if u.GoogleID == nil {
			u.GoogleID = &identity.ExternalID
			changed = true
		}
	case models.ProviderApple:
		if u.AppleID == nil {
			u.AppleID = &identity.ExternalID
			changed = true
		}
	}

	if identity.Name != nil {
		u.Name = identity.Name
		changed = true
	}
	if identity.Picture != nil {
		u.Picture = identity.Picture
		changed = true
	}

	if !changed {
		return u, nil
	}

	if err := r.repo.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to link %s identity: %w", identity.Provider, err)
	}

	logger.Log.Info("linked provider to existing account",
		slog.String("user_id", u.ID),
		slog.String("provider", identity.Provider),
	)
	return u, nil
}

func (r *Resolver) create(ctx context.Context, identity models.Identity) (*models.User, error) {
	u := &models.User{
		ID:       uuid.New().String(),
		Email:    identity.Email,
		Provider: identity.Provider,
		Name:     identity.Name,
		Picture:  identity.Picture,
	}
	switch identity.Provider {
	case models.ProviderGoogle:
		u.GoogleID = &identity.ExternalID
	case models.ProviderApple:
		u.AppleID = &identity.ExternalID
	}

	if err := r.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	logger.Log.Info("created new user",
		slog.String("user_id", u.ID),
		slog.String("provider", identity.Provider),
	)
	return u, nil
}
