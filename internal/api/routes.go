package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	Auth          *AuthHandler
	User          *UserHandler
	Conversations *ConversationHandler
	Billing       *BillingHandler
	Usage         *UsageHandler
	Media         *MediaHandler

	AuthMiddleware func(http.Handler) http.Handler
	CORSOrigin     string
	OTPRateLimiter *RateLimiter
}

func SetupRoutes(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()

	r.Use(CORSMiddleware(cfg.CORSOrigin))
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(MetricsMiddleware)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	}).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Unauthenticated surface.
	r.HandleFunc("/auth/email/send", cfg.OTPRateLimiter.Middleware(cfg.Auth.SendCode)).Methods("POST")
	r.HandleFunc("/auth/email/verify", cfg.Auth.VerifyCode).Methods("POST")
	r.HandleFunc("/auth/google/initiate", cfg.Auth.GoogleInitiate).Methods("GET")
	r.HandleFunc("/auth/google/callback", cfg.Auth.GoogleCallback).Methods("GET")
	r.HandleFunc("/auth/google", cfg.Auth.GoogleNative).Methods("POST")
	r.HandleFunc("/auth/apple/initiate", cfg.Auth.AppleInitiate).Methods("GET")
	// Apple sends the callback as a form POST (response_mode=form_post).
	r.HandleFunc("/auth/apple/callback", cfg.Auth.AppleCallback).Methods("POST", "GET")
	r.HandleFunc("/auth/apple", cfg.Auth.AppleNative).Methods("POST")
	r.HandleFunc("/auth/me", cfg.Auth.Me).Methods("GET")

	// The webhook authenticates with the provider signature, not a session.
	r.HandleFunc("/stripe/webhook", cfg.Billing.HandleWebhook).Methods("POST")

	protected := r.NewRoute().Subrouter()
	protected.Use(cfg.AuthMiddleware)

	protected.HandleFunc("/auth/onboard", cfg.Auth.Onboard).Methods("POST")

	protected.HandleFunc("/user/me", cfg.User.Get).Methods("GET")
	protected.HandleFunc("/user/me", cfg.User.Update).Methods("PATCH")
	protected.HandleFunc("/user/me", cfg.User.Delete).Methods("DELETE")
	protected.HandleFunc("/user/me/picture-upload-url", cfg.Media.PictureUploadURL).Methods("POST")

	protected.HandleFunc("/conversations", cfg.Conversations.List).Methods("GET")
	protected.HandleFunc("/conversations", cfg.Conversations.Create).Methods("POST")
	protected.HandleFunc("/conversations/{id}", cfg.Conversations.Get).Methods("GET")
	protected.HandleFunc("/conversations/{id}", cfg.Conversations.Update).Methods("PATCH")
	protected.HandleFunc("/conversations/{id}", cfg.Conversations.Delete).Methods("DELETE")

	protected.HandleFunc("/stripe/create-checkout", cfg.Billing.CreateCheckout).Methods("POST")
	protected.HandleFunc("/stripe/create-portal-session", cfg.Billing.CreatePortalSession).Methods("POST")
	protected.HandleFunc("/stripe/sync-subscription", cfg.Billing.SyncSubscription).Methods("POST")

	protected.HandleFunc("/usage", cfg.Usage.Get).Methods("GET")

	return r
}
