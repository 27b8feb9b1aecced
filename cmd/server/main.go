package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apexmind/backend/internal/api"
	"github.com/apexmind/backend/internal/billing"
	"github.com/apexmind/backend/internal/config"
	"github.com/apexmind/backend/internal/conversation"
	"github.com/apexmind/backend/internal/db"
	"github.com/apexmind/backend/internal/mailer"
	"github.com/apexmind/backend/internal/oauth"
	"github.com/apexmind/backend/internal/otp"
	"github.com/apexmind/backend/internal/session"
	"github.com/apexmind/backend/internal/usage"
	"github.com/apexmind/backend/internal/user"
)

func main() {
	cfg := config.Load()

	database := db.NewBunPostgresClient(cfg.DatabaseURL)
	defer database.Close()

	userRepo := user.NewUserRepository(database)
	resolver := user.NewResolver(userRepo)
	convRepo := conversation.NewConversationRepository(database)
	tokenRepo := otp.NewTokenRepository(database)

	smtpMailer := mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	otpService := otp.NewService(tokenRepo, smtpMailer)

	issuer := session.NewIssuer(cfg.SessionSecret)

	googleVerifier, err := oauth.NewGoogleVerifier(cfg.GoogleClientIDs)
	if err != nil {
		log.Fatalf("Failed to create Google verifier: %v", err)
	}
	defer googleVerifier.Close()

	appleVerifier, err := oauth.NewAppleVerifier(cfg.AppleClientIDs)
	if err != nil {
		log.Fatalf("Failed to create Apple verifier: %v", err)
	}
	defer appleVerifier.Close()

	googleWeb := oauth.NewGoogleWebFlow(
		cfg.GoogleWebClientID,
		cfg.GoogleWebClientSecret,
		cfg.GoogleRedirectURL,
		googleVerifier,
	)
	appleWeb := oauth.NewAppleWebFlow(
		cfg.AppleWebClientID,
		cfg.AppleWebClientSecret,
		cfg.AppleRedirectURL,
		appleVerifier,
	)

	billingClient := billing.NewClient(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.UsageMeterName)
	billing.ConfigurePrices(cfg.StripePriceMonthly, cfg.StripePriceYearly)
	reconciler := billing.NewReconciler(userRepo, billingClient)

	usageRepo := usage.NewUsageRepository(database)
	usageService := usage.NewService(usageRepo, billingClient)

	router := api.SetupRoutes(api.RouterConfig{
		Auth: api.NewAuthHandler(
			otpService, resolver, issuer, userRepo,
			googleVerifier, appleVerifier, googleWeb, appleWeb, cfg.FE_BASE_URL,
		),
		User:          api.NewUserHandler(userRepo, billingClient),
		Conversations: api.NewConversationHandler(convRepo, usageService),
		Billing:       api.NewBillingHandler(billingClient, reconciler, userRepo, cfg.FE_BASE_URL),
		Usage:         api.NewUsageHandler(usageService),
		Media:         api.NewMediaHandler(cfg.UploadBucket),

		AuthMiddleware: api.AuthMiddleware(issuer, userRepo),
		CORSOrigin:     cfg.CORSAllowedOrigin,
		OTPRateLimiter: api.NewRateLimiter(5),
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Server starting on %s", cfg.ServerAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed to start: %v", err)
	}

	log.Println("Server stopped")
}
