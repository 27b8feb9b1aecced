package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/apexmind/backend/internal/billing"
	"github.com/apexmind/backend/internal/models"
	"github.com/apexmind/backend/internal/user"
)

type BillingService interface {
	CreateCustomer(ctx context.Context, userID, email string) (*stripe.Customer, error)
	CreateSubscriptionCheckout(ctx context.Context, customerID, userID string, plan *billing.Plan, successURL, cancelURL string) (*stripe.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (*stripe.BillingPortalSession, error)
	VerifyWebhookSignature(payload []byte, signature string) (*stripe.Event, error)
}

type SubscriptionReconciler interface {
	ApplyCheckoutCompleted(ctx context.Context, userID, subscriptionID, plan string, eventAt time.Time) error
	ApplySubscriptionUpdated(ctx context.Context, subscriptionID, status string, endsAt, eventAt time.Time) error
	ApplySubscriptionDeleted(ctx context.Context, subscriptionID string, eventAt time.Time) error
	ApplyPaymentFailed(ctx context.Context, subscriptionID string, eventAt time.Time) error
	Sync(ctx context.Context, u *models.User) error
}

type BillingHandler struct {
	billing    BillingService
	reconciler SubscriptionReconciler
	users      user.Repository
	feBaseURL  string
}

func NewBillingHandler(billingService BillingService, reconciler SubscriptionReconciler, users user.Repository, feBaseURL string) *BillingHandler {
	return &BillingHandler{
		billing:    billingService,
		reconciler: reconciler,
		users:      users,
		feBaseURL:  feBaseURL,
	}
}

type createCheckoutRequest struct {
	Plan       string `json:"plan"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

type createCheckoutResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
	SessionID   string `json:"sessionId"`
}

func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	u, ok := GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthorizedMessage)
		return
	}

	var req createCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, invalidRequestMessage)
		return
	}

	plan := billing.GetPlan(req.Plan)
	if plan == nil {
		writeError(w, http.StatusBadRequest, "Unknown plan")
		return
	}
	if plan.PriceID == "" {
		writeError(w, http.StatusInternalServerError, misconfiguredMessage)
		return
	}

	customerID, err := h.ensureCustomer(r.Context(), u.ID)
	if err != nil {
		log.Printf("Failed to ensure Stripe customer for %s: %v", u.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to create checkout session")
		return
	}

	successURL := req.SuccessURL
	if successURL == "" {
		successURL = h.feBaseURL + "/subscription/success"
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = h.feBaseURL + "/subscription/cancel"
	}

	cs, err := h.billing.CreateSubscriptionCheckout(r.Context(), customerID, u.ID, plan, successURL, cancelURL)
	if err != nil {
		log.Printf("Failed to create checkout session: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create checkout session")
		return
	}

	writeJSON(w, createCheckoutResponse{
		CheckoutURL: cs.URL,
		SessionID:   cs.ID,
	})
}

func (h *BillingHandler) CreatePortalSession(w http.ResponseWriter, r *http.Request) {
	u, ok := GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthorizedMessage)
		return
	}

	if u.StripeCustomerID == nil {
		writeError(w, http.StatusBadRequest, "No billing account")
		return
	}

	ps, err := h.billing.CreatePortalSession(r.Context(), *u.StripeCustomerID, h.feBaseURL+"/settings")
	if err != nil {
		log.Printf("Failed to create portal session: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create portal session")
		return
	}

	writeJSON(w, map[string]string{"url": ps.URL})
}

// SyncSubscription re-fetches the user's subscription from the provider and
// overwrites local state from the live object.
func (h *BillingHandler) SyncSubscription(w http.ResponseWriter, r *http.Request) {
	u, ok := GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthorizedMessage)
		return
	}

	if err := h.reconciler.Sync(r.Context(), u); err != nil {
		log.Printf("Failed to sync subscription for %s: %v", u.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to sync subscription")
		return
	}

	writeJSON(w, u)
}

func (h *BillingHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Failed to read webhook body: %v", err)
		writeError(w, http.StatusBadRequest, "Failed to read body")
		return
	}

	event, err := h.billing.VerifyWebhookSignature(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		log.Printf("Webhook signature verification failed: %v", err)
		writeError(w, http.StatusBadRequest, "Invalid signature")
		return
	}

	eventAt := time.Unix(event.Created, 0)

	var handleErr error
	switch event.Type {
	case "checkout.session.completed":
		handleErr = h.handleCheckoutCompleted(r.Context(), event, eventAt)
	case "customer.subscription.updated":
		handleErr = h.handleSubscriptionUpdated(r.Context(), event, eventAt)
	case "customer.subscription.deleted":
		handleErr = h.handleSubscriptionDeleted(r.Context(), event, eventAt)
	case "invoice.payment_failed":
		handleErr = h.handlePaymentFailed(r.Context(), event, eventAt)
	}

	if handleErr != nil {
		// An event for a subscription we don't know is acknowledged rather
		// than errored: failing here only provokes the provider's retries.
		if errors.Is(handleErr, billing.ErrUnknownSubscription) || errors.Is(handleErr, user.ErrNotFound) {
			log.Printf("Webhook %s references unknown account: %v", event.Type, handleErr)
			w.WriteHeader(http.StatusOK)
			return
		}
		log.Printf("Webhook %s handling failed: %v", event.Type, handleErr)
		writeError(w, http.StatusInternalServerError, "Webhook handling failed")
		return
	}

	w.WriteHeader(http.StatusOK)
}

type checkoutSessionEvent struct {
	ID           string            `json:"id"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

type subscriptionEvent struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Items  struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

type invoiceEvent struct {
	Subscription string `json:"subscription"`
}

func (h *BillingHandler) handleCheckoutCompleted(ctx context.Context, event *stripe.Event, eventAt time.Time) error {
	cs, err := parseEventData[checkoutSessionEvent](event)
	if err != nil {
		return fmt.Errorf("failed to parse checkout session: %w", err)
	}

	if cs.Subscription == "" {
		return nil
	}

	userID := cs.Metadata["user_id"]
	if userID == "" {
		return fmt.Errorf("no user_id in checkout session %s metadata", cs.ID)
	}

	return h.reconciler.ApplyCheckoutCompleted(ctx, userID, cs.Subscription, cs.Metadata["plan"], eventAt)
}

func (h *BillingHandler) handleSubscriptionUpdated(ctx context.Context, event *stripe.Event, eventAt time.Time) error {
	sub, err := parseEventData[subscriptionEvent](event)
	if err != nil {
		return fmt.Errorf("failed to parse subscription: %w", err)
	}

	var endsAt time.Time
	if len(sub.Items.Data) > 0 && sub.Items.Data[0].CurrentPeriodEnd > 0 {
		endsAt = time.Unix(sub.Items.Data[0].CurrentPeriodEnd, 0)
	}
	return h.reconciler.ApplySubscriptionUpdated(ctx, sub.ID, sub.Status, endsAt, eventAt)
}

func (h *BillingHandler) handleSubscriptionDeleted(ctx context.Context, event *stripe.Event, eventAt time.Time) error {
	sub, err := parseEventData[subscriptionEvent](event)
	if err != nil {
		return fmt.Errorf("failed to parse subscription: %w", err)
	}
	return h.reconciler.ApplySubscriptionDeleted(ctx, sub.ID, eventAt)
}

func (h *BillingHandler) handlePaymentFailed(ctx context.Context, event *stripe.Event, eventAt time.Time) error {
	inv, err := parseEventData[invoiceEvent](event)
	if err != nil {
		return fmt.Errorf("failed to parse invoice: %w", err)
	}
	if inv.Subscription == "" {
		return nil
	}
	return h.reconciler.ApplyPaymentFailed(ctx, inv.Subscription, eventAt)
}

func (h *BillingHandler) ensureCustomer(ctx context.Context, userID string) (string, error) {
	u, err := h.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.StripeCustomerID != nil {
		return *u.StripeCustomerID, nil
	}

	customer, err := h.billing.CreateCustomer(ctx, u.ID, u.Email)
	if err != nil {
		return "", err
	}

	u.StripeCustomerID = &customer.ID
	if err := h.users.Update(ctx, u); err != nil {
		return "", err
	}
	return customer.ID, nil
}

func parseEventData[T any](event *stripe.Event) (*T, error) {
	var data T
	if err := json.Unmarshal(event.Data.Raw, &data); err != nil {
		return nil, err
	}
	return &data, nil
}
