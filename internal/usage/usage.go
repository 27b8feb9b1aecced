package usage

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/apexmind/backend/internal/logger"
	"github.com/apexmind/backend/internal/models"
)

type Repository interface {
	Record(ctx context.Context, event *models.UsageEvent) error
	Summarize(ctx context.Context, userID string) (*models.UsageSummary, error)
}

type UsageRepository struct {
	db *bun.DB
}

func NewUsageRepository(db *bun.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) Record(ctx context.Context, event *models.UsageEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	row := &models.UsageEventDB{
		ID:               event.ID,
		UserID:           event.UserID,
		Model:            event.Model,
		PromptTokens:     event.PromptTokens,
		CompletionTokens: event.CompletionTokens,
	}
	_, err := r.db.NewInsert().Model(row).Exec(ctx)
	return err
}

func (r *UsageRepository) Summarize(ctx context.Context, userID string) (*models.UsageSummary, error) {
	var perModel []models.ModelUsage
	err := r.db.NewSelect().
		Model((*models.UsageEventDB)(nil)).
		ColumnExpr("model").
		ColumnExpr("SUM(prompt_tokens) AS prompt_tokens").
		ColumnExpr("SUM(completion_tokens) AS completion_tokens").
		ColumnExpr("COUNT(*) AS messages").
		Where("user_id = ?", userID).
		Group("model").
		Order("model ASC").
		Scan(ctx, &perModel)
	if err != nil {
		return nil, err
	}

	summary := &models.UsageSummary{ByModel: perModel}
	for _, m := range perModel {
		summary.TotalPromptTokens += m.PromptTokens
		summary.TotalCompletionTokens += m.CompletionTokens
		summary.TotalMessages += m.Messages
	}
	return summary, nil
}

// MeterReporter forwards consumed tokens to the payment provider's billing
// meter. Implemented by billing.Client.
type MeterReporter interface {
	ReportUsage(ctx context.Context, stripeCustomerID string, tokens int64) error
}

type Service struct {
	repo  Repository
	meter MeterReporter
}

func NewService(repo Repository, meter MeterReporter) *Service {
	return &Service{
		repo:  repo,
		meter: meter,
	}
}

// Record persists the event and, when the user has a billing identity,
// mirrors the token count to the provider meter. Meter failures are logged
// only; local accounting is the source of truth for /usage.
func (s *Service) Record(ctx context.Context, user *models.User, event *models.UsageEvent) error {
	event.UserID = user.ID
	if err := s.repo.Record(ctx, event); err != nil {
		return err
	}

	if s.meter != nil && user.StripeCustomerID != nil {
		tokens := event.PromptTokens + event.CompletionTokens
		if err := s.meter.ReportUsage(ctx, *user.StripeCustomerID, tokens); err != nil {
			logger.Log.Warn("failed to report usage to billing meter",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

func (s *Service) Summarize(ctx context.Context, userID string) (*models.UsageSummary, error) {
	return s.repo.Summarize(ctx, userID)
}
