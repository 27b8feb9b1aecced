package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/apexmind/backend/internal/logger"
	"github.com/apexmind/backend/internal/models"
)

// Subscription status values mirroring the provider's lifecycle. Subscribed
// is derived: true iff the last applied status is StatusActive.
const (
	StatusActive   = "active"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"
)

var ErrUnknownSubscription = errors.New("no user for subscription")

type UserStore interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	GetByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

type SubscriptionFetcher interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
}

// Reconciler maintains the subscription-state fields of a user record from
// the two independent writers: provider webhooks and client-triggered polls.
// Writes carry an event timestamp; anything older than the last applied
// write is discarded so out-of-order webhook delivery cannot regress state.
type Reconciler struct {
	users  UserStore
	stripe SubscriptionFetcher
}

func NewReconciler(users UserStore, stripe SubscriptionFetcher) *Reconciler {
	return &Reconciler{
		users:  users,
		stripe: stripe,
	}
}

// ApplyCheckoutCompleted attaches a freshly purchased subscription to the
// user named in the checkout metadata and seeds its state from the live
// subscription object.
func (r *Reconciler) ApplyCheckoutCompleted(ctx context.Context, userID, subscriptionID, plan string, eventAt time.Time) error {
	u, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user %s: %w", userID, err)
	}

	sub, err := r.stripe.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("failed to retrieve subscription %s: %w", subscriptionID, err)
	}

	u.StripeSubscriptionID = &subscriptionID
	if plan != "" {
		u.SubscriptionPlan = &plan
	}
	return r.applyState(ctx, u, string(sub.Status), periodEnd(sub), eventAt)
}

func (r *Reconciler) ApplySubscriptionUpdated(ctx context.Context, subscriptionID, status string, endsAt, eventAt time.Time) error {
	u, err := r.userBySubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	return r.applyState(ctx, u, status, endsAt, eventAt)
}

func (r *Reconciler) ApplySubscriptionDeleted(ctx context.Context, subscriptionID string, eventAt time.Time) error {
	u, err := r.userBySubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	return r.applyState(ctx, u, StatusCanceled, time.Time{}, eventAt)
}

// ApplyPaymentFailed flags the subscription as past due. It deliberately
// leaves subscribed and the period end untouched: the provider decides
// whether the subscription survives the dunning process.
func (r *Reconciler) ApplyPaymentFailed(ctx context.Context, subscriptionID string, eventAt time.Time) error {
	u, err := r.userBySubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if stale(u, eventAt) {
		r.logStale(u, StatusPastDue, eventAt)
		return nil
	}

	status := StatusPastDue
	u.SubscriptionStatus = &status
	u.SubscriptionEventAt = &eventAt
	return r.users.Update(ctx, u)
}

// Sync re-fetches the user's subscription from the provider and overwrites
// local state from the live object.
func (r *Reconciler) Sync(ctx context.Context, u *models.User) error {
	if u.StripeSubscriptionID == nil {
		return nil
	}

	sub, err := r.stripe.GetSubscription(ctx, *u.StripeSubscriptionID)
	if err != nil {
		return fmt.Errorf("failed to retrieve subscription %s: %w", *u.StripeSubscriptionID, err)
	}

	if plan := sub.Metadata["plan"]; plan != "" {
		u.SubscriptionPlan = &plan
	}
	return r.applyState(ctx, u, string(sub.Status), periodEnd(sub), time.Now())
}

func (r *Reconciler) applyState(ctx context.Context, u *models.User, status string, endsAt, eventAt time.Time) error {
	if stale(u, eventAt) {
		r.logStale(u, status, eventAt)
		return nil
	}

	u.SubscriptionStatus = &status
	u.Subscribed = status == StatusActive
	if endsAt.IsZero() {
		u.SubscriptionEndsAt = nil
	} else {
		u.SubscriptionEndsAt = &endsAt
	}
	u.SubscriptionEventAt = &eventAt
	return r.users.Update(ctx, u)
}

func (r *Reconciler) userBySubscription(ctx context.Context, subscriptionID string) (*models.User, error) {
	u, err := r.users.GetByStripeSubscriptionID(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrUnknownSubscription, subscriptionID, err)
	}
	return u, nil
}

func stale(u *models.User, eventAt time.Time) bool {
	return u.SubscriptionEventAt != nil && eventAt.Before(*u.SubscriptionEventAt)
}

func (r *Reconciler) logStale(u *models.User, status string, eventAt time.Time) {
	logger.Log.Warn("discarding stale subscription event",
		slog.String("user_id", u.ID),
		slog.String("status", status),
		slog.Time("event_at", eventAt),
		slog.Time("last_applied_at", *u.SubscriptionEventAt),
	)
}

func periodEnd(sub *stripe.Subscription) time.Time {
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return time.Time{}
	}
	return time.Unix(sub.Items.Data[0].CurrentPeriodEnd, 0)
}
