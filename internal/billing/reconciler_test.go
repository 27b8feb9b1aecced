package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/apexmind/backend/internal/models"
)

type fakeUserStore struct {
	users map[string]*models.User
}

func newFakeUserStore(users ...*models.User) *fakeUserStore {
	s := &fakeUserStore{users: make(map[string]*models.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeUserStore) GetByID(_ context.Context, userID string) (*models.User, error) {
	if u, ok := s.users[userID]; ok {
		return u, nil
	}
	return nil, errors.New("not found")
}

func (s *fakeUserStore) GetByStripeSubscriptionID(_ context.Context, subscriptionID string) (*models.User, error) {
	for _, u := range s.users {
		if u.StripeSubscriptionID != nil && *u.StripeSubscriptionID == subscriptionID {
			return u, nil
		}
	}
	return nil, errors.New("not found")
}

func (s *fakeUserStore) Update(_ context.Context, u *models.User) error {
	s.users[u.ID] = u
	return nil
}

type fakeSubscriptionFetcher struct {
	sub *stripe.Subscription
	err error
}

func (f *fakeSubscriptionFetcher) GetSubscription(context.Context, string) (*stripe.Subscription, error) {
	return f.sub, f.err
}

func activeSubscription(periodEnd time.Time) *stripe.Subscription {
	return &stripe.Subscription{
		Status: stripe.SubscriptionStatusActive,
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{CurrentPeriodEnd: periodEnd.Unix()},
			},
		},
	}
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func TestApplyCheckoutCompleted(t *testing.T) {
	store := newFakeUserStore(&models.User{ID: "u1", Email: "a@x.com"})
	periodEnd := time.Now().Add(30 * 24 * time.Hour).Truncate(time.Second)
	r := NewReconciler(store, &fakeSubscriptionFetcher{sub: activeSubscription(periodEnd)})

	eventAt := time.Now()
	if err := r.ApplyCheckoutCompleted(context.Background(), "u1", "sub_1", "monthly", eventAt); err != nil {
		t.Fatalf("ApplyCheckoutCompleted() error = %v", err)
	}

	u := store.users["u1"]
	if !u.Subscribed {
		t.Error("Subscribed = false, want true")
	}
	if u.StripeSubscriptionID == nil || *u.StripeSubscriptionID != "sub_1" {
		t.Errorf("StripeSubscriptionID = %v, want sub_1", u.StripeSubscriptionID)
	}
	if u.SubscriptionPlan == nil || *u.SubscriptionPlan != "monthly" {
		t.Errorf("SubscriptionPlan = %v, want monthly", u.SubscriptionPlan)
	}
	if u.SubscriptionStatus == nil || *u.SubscriptionStatus != StatusActive {
		t.Errorf("SubscriptionStatus = %v, want active", u.SubscriptionStatus)
	}
	if u.SubscriptionEndsAt == nil || !u.SubscriptionEndsAt.Equal(periodEnd) {
		t.Errorf("SubscriptionEndsAt = %v, want %v", u.SubscriptionEndsAt, periodEnd)
	}
}

func TestApplySubscriptionDeleted(t *testing.T) {
	store := newFakeUserStore(&models.User{
		ID:                   "u1",
		StripeSubscriptionID: strPtr("sub_1"),
		Subscribed:           true,
		SubscriptionStatus:   strPtr(StatusActive),
	})
	r := NewReconciler(store, &fakeSubscriptionFetcher{})

	if err := r.ApplySubscriptionDeleted(context.Background(), "sub_1", time.Now()); err != nil {
		t.Fatalf("ApplySubscriptionDeleted() error = %v", err)
	}

	u := store.users["u1"]
	if u.Subscribed {
		t.Error("Subscribed = true, want false")
	}
	if *u.SubscriptionStatus != StatusCanceled {
		t.Errorf("SubscriptionStatus = %q, want canceled", *u.SubscriptionStatus)
	}
}

func TestApplyPaymentFailedTouchesOnlyStatus(t *testing.T) {
	endsAt := time.Now().Add(10 * 24 * time.Hour)
	store := newFakeUserStore(&models.User{
		ID:                   "u1",
		StripeSubscriptionID: strPtr("sub_1"),
		Subscribed:           true,
		SubscriptionStatus:   strPtr(StatusActive),
		SubscriptionEndsAt:   &endsAt,
	})
	r := NewReconciler(store, &fakeSubscriptionFetcher{})

	if err := r.ApplyPaymentFailed(context.Background(), "sub_1", time.Now()); err != nil {
		t.Fatalf("ApplyPaymentFailed() error = %v", err)
	}

	u := store.users["u1"]
	if *u.SubscriptionStatus != StatusPastDue {
		t.Errorf("SubscriptionStatus = %q, want past_due", *u.SubscriptionStatus)
	}
	if !u.Subscribed {
		t.Error("Subscribed changed, payment failure must not touch it")
	}
	if u.SubscriptionEndsAt == nil || !u.SubscriptionEndsAt.Equal(endsAt) {
		t.Error("SubscriptionEndsAt changed, payment failure must not touch it")
	}
}

func TestStaleEventDiscarded(t *testing.T) {
	applied := time.Now()
	store := newFakeUserStore(&models.User{
		ID:                   "u1",
		StripeSubscriptionID: strPtr("sub_1"),
		Subscribed:           true,
		SubscriptionStatus:   strPtr(StatusActive),
		SubscriptionEventAt:  timePtr(applied),
	})
	r := NewReconciler(store, &fakeSubscriptionFetcher{})

	// A deletion event older than the last applied write must not regress
	// the freshly reconciled state.
	stale := applied.Add(-time.Minute)
	if err := r.ApplySubscriptionDeleted(context.Background(), "sub_1", stale); err != nil {
		t.Fatalf("ApplySubscriptionDeleted() error = %v", err)
	}

	u := store.users["u1"]
	if !u.Subscribed {
		t.Error("stale event was applied, Subscribed regressed to false")
	}
	if *u.SubscriptionStatus != StatusActive {
		t.Errorf("SubscriptionStatus = %q, want active (stale event discarded)", *u.SubscriptionStatus)
	}
}

func TestApplySubscriptionUpdatedUnknownSubscription(t *testing.T) {
	r := NewReconciler(newFakeUserStore(), &fakeSubscriptionFetcher{})

	err := r.ApplySubscriptionUpdated(context.Background(), "sub_missing", StatusActive, time.Time{}, time.Now())
	if !errors.Is(err, ErrUnknownSubscription) {
		t.Errorf("error = %v, want ErrUnknownSubscription", err)
	}
}

func TestSyncOverwritesFromLiveState(t *testing.T) {
	store := newFakeUserStore(&models.User{
		ID:                   "u1",
		StripeSubscriptionID: strPtr("sub_1"),
		Subscribed:           true,
		SubscriptionStatus:   strPtr(StatusActive),
	})
	canceled := &stripe.Subscription{
		Status: stripe.SubscriptionStatusCanceled,
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{CurrentPeriodEnd: time.Now().Unix()}},
		},
	}
	r := NewReconciler(store, &fakeSubscriptionFetcher{sub: canceled})

	u := store.users["u1"]
	if err := r.Sync(context.Background(), u); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if u.Subscribed {
		t.Error("Subscribed = true after syncing a canceled subscription")
	}
	if *u.SubscriptionStatus != StatusCanceled {
		t.Errorf("SubscriptionStatus = %q, want canceled", *u.SubscriptionStatus)
	}
}

func TestSyncWithoutSubscriptionIsNoop(t *testing.T) {
	store := newFakeUserStore(&models.User{ID: "u1"})
	r := NewReconciler(store, &fakeSubscriptionFetcher{err: errors.New("should not be called")})

	if err := r.Sync(context.Background(), store.users["u1"]); err != nil {
		t.Errorf("Sync() error = %v, want nil", err)
	}
}
