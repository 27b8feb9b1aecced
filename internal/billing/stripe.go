package billing

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

type Client struct {
	sc             *stripe.Client
	webhookSecret  string
	usageMeterName string
}

func NewClient(secretKey, webhookSecret, usageMeterName string) *Client {
	return &Client{
		sc:             stripe.NewClient(secretKey),
		webhookSecret:  webhookSecret,
		usageMeterName: usageMeterName,
	}
}

func (c *Client) CreateCustomer(ctx context.Context, userID, email string) (*stripe.Customer, error) {
	params := &stripe.CustomerCreateParams{
		Email:    stripe.String(email),
		Metadata: map[string]string{"user_id": userID},
	}
	return c.sc.V1Customers.Create(ctx, params)
}

// CreateSubscriptionCheckout starts a subscription purchase for an existing
// plan price. The user id and plan ride along in the session and
// subscription metadata so the webhook can attribute the result.
func (c *Client) CreateSubscriptionCheckout(ctx context.Context, customerID, userID string, plan *Plan, successURL, cancelURL string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionCreateParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(plan.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		Metadata: map[string]string{
			"user_id": userID,
			"plan":    plan.ID,
		},
		SubscriptionData: &stripe.CheckoutSessionCreateSubscriptionDataParams{
			Metadata: map[string]string{
				"user_id": userID,
				"plan":    plan.ID,
			},
		},
	}
	return c.sc.V1CheckoutSessions.Create(ctx, params)
}

func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*stripe.BillingPortalSession, error) {
	params := &stripe.BillingPortalSessionCreateParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	return c.sc.V1BillingPortalSessions.Create(ctx, params)
}

func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	return c.sc.V1Subscriptions.Retrieve(ctx, subscriptionID, nil)
}

func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	return c.sc.V1Subscriptions.Cancel(ctx, subscriptionID, nil)
}

func (c *Client) ReportUsage(ctx context.Context, stripeCustomerID string, tokens int64) error {
	if stripeCustomerID == "" || tokens <= 0 {
		return nil
	}

	params := &stripe.BillingMeterEventCreateParams{
		EventName: stripe.String(c.usageMeterName),
		Payload: map[string]string{
			"stripe_customer_id": stripeCustomerID,
			"value":              fmt.Sprintf("%d", tokens),
		},
	}
	_, err := c.sc.V1BillingMeterEvents.Create(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to report meter event: %w", err)
	}
	return nil
}

func (c *Client) VerifyWebhookSignature(payload []byte, signature string) (*stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, c.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}
	return &event, nil
}
