package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/apexmind/backend/internal/models"
)

var (
	ErrNotFound  = errors.New("user not found")
	ErrDuplicate = errors.New("user already exists")
)

type Repository interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByExternalID(ctx context.Context, provider, externalID string) (*models.User, error)
	GetByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, userID string) error
}

type UserRepository struct {
	db *bun.DB
}

func NewUserRepository(db *bun.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	return r.getOne(ctx, "id = ?", userID)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "email = ?", email)
}

func (r *UserRepository) GetByExternalID(ctx context.Context, provider, externalID string) (*models.User, error) {
	switch provider {
	case models.ProviderGoogle:
		return r.getOne(ctx, "google_id = ?", externalID)
	case models.ProviderApple:
		return r.getOne(ctx, "apple_id = ?", externalID)
	default:
		return nil, ErrNotFound
	}
}

func (r *UserRepository) GetByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*models.User, error) {
	return r.getOne(ctx, "stripe_subscription_id = ?", subscriptionID)
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg any) (*models.User, error) {
	userDB := new(models.UserDB)
	err := r.db.NewSelect().
		Model(userDB).
		Where(where, arg).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return userDB.ToUser(), nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	userDB := models.UserFromDomain(user)
	userDB.CreatedAt = time.Now()
	userDB.UpdatedAt = time.Now()
	_, err := r.db.NewInsert().Model(userDB).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	user.CreatedAt = userDB.CreatedAt
	user.UpdatedAt = userDB.UpdatedAt
	return nil
}

func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	userDB := models.UserFromDomain(user)
	userDB.UpdatedAt = time.Now()
	_, err := r.db.NewUpdate().
		Model(userDB).
		WherePK().
		Exec(ctx)
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *UserRepository) Delete(ctx context.Context, userID string) error {
	res, err := r.db.NewDelete().
		Model((*models.UserDB)(nil)).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.IntegrityViolation()
}
