package otp

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/apexmind/backend/internal/models"
)

type TokenRepository interface {
	Insert(ctx context.Context, identifier, token string, expires time.Time) error
	// Consume deletes every row matching (identifier, token) and reports
	// whether any of them was still unexpired.
	Consume(ctx context.Context, identifier, token string) (bool, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

type BunTokenRepository struct {
	db *bun.DB
}

func NewTokenRepository(db *bun.DB) *BunTokenRepository {
	return &BunTokenRepository{db: db}
}

func (r *BunTokenRepository) Insert(ctx context.Context, identifier, token string, expires time.Time) error {
	row := &models.VerificationTokenDB{
		Identifier: identifier,
		Token:      token,
		Expires:    expires,
	}
	_, err := r.db.NewInsert().Model(row).Exec(ctx)
	return err
}

func (r *BunTokenRepository) Consume(ctx context.Context, identifier, token string) (bool, error) {
	var deleted []models.VerificationTokenDB
	_, err := r.db.NewDelete().
		Model((*models.VerificationTokenDB)(nil)).
		Where("identifier = ?", identifier).
		Where("token = ?", token).
		Returning("expires").
		Exec(ctx, &deleted)
	if err != nil {
		return false, err
	}

	now := time.Now()
	for _, row := range deleted {
		if row.Expires.After(now) {
			return true, nil
		}
	}
	return false, nil
}

func (r *BunTokenRepository) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*models.VerificationTokenDB)(nil)).
		Where("expires < ?", time.Now()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
