package session

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestIssueAndValidate(t *testing.T) {
	issuer := NewIssuer("test-secret")

	token, err := issuer.Issue("user-1", "a@x.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := issuer.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", claims.UserID, "user-1")
	}
	if claims.Email != "a@x.com" {
		t.Errorf("Email = %q, want %q", claims.Email, "a@x.com")
	}
}

func TestIssueWithoutSecret(t *testing.T) {
	issuer := NewIssuer("")

	if _, err := issuer.Issue("user-1", "a@x.com"); !errors.Is(err, ErrMissingSecret) {
		t.Errorf("Issue() error = %v, want ErrMissingSecret", err)
	}
}

func TestValidateTamperedToken(t *testing.T) {
	issuer := NewIssuer("test-secret")

	token, err := issuer.Issue("user-1", "a@x.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	tampered := token[:len(token)-2] + "xx"
	if _, err := issuer.Validate(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate(tampered) error = %v, want ErrInvalidToken", err)
	}
}

func TestValidateWrongSecret(t *testing.T) {
	token, err := NewIssuer("secret-a").Issue("user-1", "a@x.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := NewIssuer("secret-b").Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate() error = %v, want ErrInvalidToken", err)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	issuer := &Issuer{
		secret: []byte("test-secret"),
		ttl:    -time.Hour,
	}

	token, err := issuer.Issue("user-1", "a@x.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := issuer.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate(expired) error = %v, want ErrInvalidToken", err)
	}
}

func TestFromRequest(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(r *http.Request)
		wantToken string
		wantOK    bool
	}{
		{
			name: "cookie",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: CookieName, Value: "cookie-token"})
			},
			wantToken: "cookie-token",
			wantOK:    true,
		},
		{
			name: "bearer header",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer header-token")
			},
			wantToken: "header-token",
			wantOK:    true,
		},
		{
			name: "cookie wins over header",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: CookieName, Value: "cookie-token"})
				r.Header.Set("Authorization", "Bearer header-token")
			},
			wantToken: "cookie-token",
			wantOK:    true,
		},
		{
			name:   "anonymous",
			setup:  func(r *http.Request) {},
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := http.NewRequest(http.MethodGet, "/", nil)
			tt.setup(r)

			token, ok := FromRequest(r)
			if ok != tt.wantOK {
				t.Fatalf("FromRequest() ok = %v, want %v", ok, tt.wantOK)
			}
			if token != tt.wantToken {
				t.Errorf("FromRequest() token = %q, want %q", token, tt.wantToken)
			}
		})
	}
}
