package models

import "time"

// Auth providers a user account can be created with. Informational only:
// additional providers may be linked to the same account later.
const (
	ProviderEmail  = "email"
	ProviderGoogle = "google"
	ProviderApple  = "apple"
)

type User struct {
	ID       string  `json:"id"`
	Email    string  `json:"email"`
	Provider string  `json:"provider"`
	GoogleID *string `json:"googleId,omitempty"`
	AppleID  *string `json:"appleId,omitempty"`
	Name     *string `json:"name,omitempty"`
	Picture  *string `json:"picture,omitempty"`

	Onboarded     bool    `json:"onboarded"`
	Age           *int    `json:"age,omitempty"`
	Gender        *string `json:"gender,omitempty"`
	AlphaLevel    *string `json:"alphaLevel,omitempty"`
	Notifications *bool   `json:"notifications,omitempty"`

	StripeCustomerID     *string    `json:"-"`
	StripeSubscriptionID *string    `json:"-"`
	Subscribed           bool       `json:"subscribed"`
	SubscriptionPlan     *string    `json:"subscriptionPlan,omitempty"`
	SubscriptionStatus   *string    `json:"subscriptionStatus,omitempty"`
	SubscriptionEndsAt   *time.Time `json:"subscriptionEndsAt,omitempty"`
	SubscriptionEventAt  *time.Time `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Identity is a verified credential reduced to the attributes the account
// resolver needs. ExternalID is empty for the email OTP method.
type Identity struct {
	Provider   string
	Email      string
	ExternalID string
	Name       *string
	Picture    *string
}
