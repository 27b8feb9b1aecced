package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/apexmind/backend/internal/session"
	"github.com/apexmind/backend/internal/user"
)

type SubscriptionCanceler interface {
	CancelSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
}

type UserHandler struct {
	users   user.Repository
	billing SubscriptionCanceler
}

func NewUserHandler(users user.Repository, billing SubscriptionCanceler) *UserHandler {
	return &UserHandler{
		users:   users,
		billing: billing,
	}
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, ok := GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthorizedMessage)
		return
	}
	writeJSON(w, u)
}

type updateProfileRequest struct {
	Name          *string `json:"name"`
	Picture       *string `json:"picture"`
	Age           *int    `json:"age"`
	Gender        *string `json:"gender"`
	AlphaLevel    *string `json:"alphaLevel"`
	Notifications *bool   `json:"notifications"`
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	u, ok := GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthorizedMessage)
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, invalidRequestMessage)
		return
	}

	if req.Name != nil {
		u.Name = req.Name
	}
	if req.Picture != nil {
		u.Picture = req.Picture
	}
	if req.Age != nil {
		u.Age = req.Age
	}
	if req.Gender != nil {
		u.Gender = req.Gender
	}
	if req.AlphaLevel != nil {
		u.AlphaLevel = req.AlphaLevel
	}
	if req.Notifications != nil {
		u.Notifications = req.Notifications
	}

	if err := h.users.Update(r.Context(), u); err != nil {
		log.Printf("Failed to update profile for %s: %v", u.ID, err)
		writeError(w, http.StatusInternalServerError, internalServerError)
		return
	}

	writeJSON(w, u)
}

// Delete removes the account. An active subscription is cancelled at the
// provider first, best effort: the row goes away regardless of whether the
// provider call succeeded.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	u, ok := GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthorizedMessage)
		return
	}

	if u.StripeSubscriptionID != nil {
		if _, err := h.billing.CancelSubscription(r.Context(), *u.StripeSubscriptionID); err != nil {
			log.Printf("Failed to cancel subscription %s during account deletion: %v", *u.StripeSubscriptionID, err)
		}
	}

	if err := h.users.Delete(r.Context(), u.ID); err != nil {
		log.Printf("Failed to delete user %s: %v", u.ID, err)
		writeError(w, http.StatusInternalServerError, internalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, map[string]string{"message": "Account deleted"})
}
