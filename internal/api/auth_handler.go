package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/apexmind/backend/internal/models"
	"github.com/apexmind/backend/internal/otp"
	"github.com/apexmind/backend/internal/session"
	"github.com/apexmind/backend/internal/user"
)

const (
	invalidRequestMessage  = "Invalid request"
	invalidCodeMessage     = "Invalid or expired code"
	invalidTokenMessage    = "Invalid token"
	deliveryFailedMessage  = "Failed to send verification email"
	misconfiguredMessage   = "Server misconfigured"
	resolveFailedMessage   = "Failed to sign in"
	oauthStateCookieName   = "oauth_state"
	oauthStateCookieMaxAge = 600
)

type OTPService interface {
	Send(ctx context.Context, email string) error
	Verify(ctx context.Context, email, code string) error
}

type AccountResolver interface {
	Resolve(ctx context.Context, identity models.Identity) (*models.User, error)
}

type IDTokenVerifier interface {
	VerifyToken(tokenString string) (*models.Identity, error)
}

type OAuthWebFlow interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*models.Identity, error)
}

type AuthHandler struct {
	otp       OTPService
	resolver  AccountResolver
	issuer    *session.Issuer
	users     user.Repository
	google    IDTokenVerifier
	apple     IDTokenVerifier
	googleWeb OAuthWebFlow
	appleWeb  OAuthWebFlow
	feBaseURL string
}

func NewAuthHandler(
	otpService OTPService,
	resolver AccountResolver,
	issuer *session.Issuer,
	users user.Repository,
	google IDTokenVerifier,
	apple IDTokenVerifier,
	googleWeb OAuthWebFlow,
	appleWeb OAuthWebFlow,
	feBaseURL string,
) *AuthHandler {
	return &AuthHandler{
		otp:       otpService,
		resolver:  resolver,
		issuer:    issuer,
		users:     users,
		google:    google,
		apple:     apple,
		googleWeb: googleWeb,
		appleWeb:  appleWeb,
		feBaseURL: feBaseURL,
	}
}

type sendCodeRequest struct {
	Email string `json:"email"`
}

func (h *AuthHandler) SendCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, invalidRequestMessage)
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		writeError(w, http.StatusBadRequest, "A valid email is required")
		return
	}

	if err := h.otp.Send(r.Context(), email); err != nil {
		log.Printf("Failed to send OTP to %s: %v", email, err)
		if errors.Is(err, otp.ErrDeliveryFailed) {
			writeError(w, http.StatusInternalServerError, deliveryFailedMessage)
			return
		}
		writeError(w, http.StatusInternalServerError, internalServerError)
		return
	}

	writeJSON(w, map[string]string{"message": "Verification code sent"})
}

type verifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, invalidRequestMessage)
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "Email and code are required")
		return
	}

	if err := h.otp.Verify(r.Context(), email, req.Code); err != nil {
		if errors.Is(err, otp.ErrInvalidCode) {
			writeError(w, http.StatusBadRequest, invalidCodeMessage)
			return
		}
		log.Printf("Failed to verify OTP for %s: %v", email, err)
		writeError(w, http.StatusInternalServerError, internalServerError)
		return
	}

	h.signIn(w, r, models.Identity{
		Provider: models.ProviderEmail,
		Email:    email,
	})
}

type idTokenRequest struct {
	IDToken string `json:"idToken"`
}

func (h *AuthHandler) GoogleNative(w http.ResponseWriter, r *http.Request) {
	h.nativeTokenExchange(w, r, h.google)
}

func (h *AuthHandler) AppleNative(w http.ResponseWriter, r *http.Request) {
	h.nativeTokenExchange(w, r, h.apple)
}

func (h *AuthHandler) nativeTokenExchange(w http.ResponseWriter, r *http.Request, verifier IDTokenVerifier) {
	var req idTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IDToken == "" {
		writeError(w, http.StatusBadRequest, invalidRequestMessage)
		return
	}

	identity, err := verifier.VerifyToken(req.IDToken)
	if err != nil {
		log.Printf("ID token verification failed: %v", err)
		writeError(w, http.StatusUnauthorized, invalidTokenMessage)
		return
	}

	h.signIn(w, r, *identity)
}

func (h *AuthHandler) GoogleInitiate(w http.ResponseWriter, r *http.Request) {
	h.oauthInitiate(w, r, h.googleWeb, http.SameSiteLaxMode)
}

// AppleInitiate starts the Apple web flow. Apple delivers the callback as a
// cross-site form POST, and a Lax cookie would not ride along with it, so the
// state cookie is SameSite=None.
func (h *AuthHandler) AppleInitiate(w http.ResponseWriter, r *http.Request) {
	h.oauthInitiate(w, r, h.appleWeb, http.SameSiteNoneMode)
}

func (h *AuthHandler) oauthInitiate(w http.ResponseWriter, r *http.Request, flow OAuthWebFlow, sameSite http.SameSite) {
	state, err := randomState()
	if err != nil {
		writeError(w, http.StatusInternalServerError, internalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   oauthStateCookieMaxAge,
		HttpOnly: true,
		Secure:   sameSite == http.SameSiteNoneMode,
		SameSite: sameSite,
	})
	http.Redirect(w, r, flow.AuthCodeURL(state), http.StatusSeeOther)
}

func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	h.oauthCallback(w, r, h.googleWeb)
}

func (h *AuthHandler) AppleCallback(w http.ResponseWriter, r *http.Request) {
	h.oauthCallback(w, r, h.appleWeb)
}

// oauthCallback finishes a web flow. FormValue covers both transports: Google
// redirects with query parameters, Apple posts a form body.
func (h *AuthHandler) oauthCallback(w http.ResponseWriter, r *http.Request, flow OAuthWebFlow) {
	stateCookie, err := r.Cookie(oauthStateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.FormValue("state") {
		writeError(w, http.StatusBadRequest, "Invalid OAuth state")
		return
	}

	identity, err := flow.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		log.Printf("OAuth code exchange failed: %v", err)
		writeError(w, http.StatusUnauthorized, invalidTokenMessage)
		return
	}

	u, err := h.resolver.Resolve(r.Context(), *identity)
	if err != nil {
		log.Printf("Failed to resolve account: %v", err)
		writeError(w, http.StatusInternalServerError, resolveFailedMessage)
		return
	}

	token, err := h.issuer.Issue(u.ID, u.Email)
	if err != nil {
		log.Printf("Failed to issue session: %v", err)
		writeError(w, http.StatusInternalServerError, misconfiguredMessage)
		return
	}

	setSessionCookie(w, token)
	http.Redirect(w, r, h.feBaseURL, http.StatusSeeOther)
}

// Me returns the current session's user, or null for anonymous or invalid
// sessions. Read-style endpoint: a bad token is no session, not an error.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	token, ok := session.FromRequest(r)
	if !ok {
		writeJSON(w, nil)
		return
	}

	claims, err := h.issuer.Validate(token)
	if err != nil {
		// An unsigned deployment is an operator error, not an anonymous
		// visitor.
		if errors.Is(err, session.ErrMissingSecret) {
			writeError(w, http.StatusInternalServerError, misconfiguredMessage)
			return
		}
		writeJSON(w, nil)
		return
	}

	u, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		writeJSON(w, nil)
		return
	}

	writeJSON(w, u)
}

type onboardRequest struct {
	Age           *int    `json:"age"`
	Gender        *string `json:"gender"`
	AlphaLevel    *string `json:"alphaLevel"`
	Notifications *bool   `json:"notifications"`
}

func (h *AuthHandler) Onboard(w http.ResponseWriter, r *http.Request) {
	u, ok := GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthorizedMessage)
		return
	}

	var req onboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, invalidRequestMessage)
		return
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
	u.Onboarded = true

	if err := h.users.Update(r.Context(), u); err != nil {
		log.Printf("Failed to save onboarding for %s: %v", u.ID, err)
		writeError(w, http.StatusInternalServerError, internalServerError)
		return
	}

	writeJSON(w, u)
}

type sessionResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (h *AuthHandler) signIn(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	u, err := h.resolver.Resolve(r.Context(), identity)
	if err != nil {
		log.Printf("Failed to resolve account: %v", err)
		writeError(w, http.StatusInternalServerError, resolveFailedMessage)
		return
	}

	token, err := h.issuer.Issue(u.ID, u.Email)
	if err != nil {
		log.Printf("Failed to issue session: %v", err)
		writeError(w, http.StatusInternalServerError, misconfiguredMessage)
		return
	}

	setSessionCookie(w, token)
	writeJSON(w, sessionResponse{
		Token: token,
		User:  u,
	})
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int((30 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
