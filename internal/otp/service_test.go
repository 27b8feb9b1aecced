package otp

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"
)

type fakeTokenRepo struct {
	tokens []fakeToken
}

type fakeToken struct {
	identifier string
	token      string
	expires    time.Time
}

func (r *fakeTokenRepo) Insert(_ context.Context, identifier, token string, expires time.Time) error {
	r.tokens = append(r.tokens, fakeToken{identifier, token, expires})
	return nil
}

func (r *fakeTokenRepo) Consume(_ context.Context, identifier, token string) (bool, error) {
	valid := false
	remaining := r.tokens[:0]
	for _, t := range r.tokens {
		if t.identifier == identifier && t.token == token {
			if t.expires.After(time.Now()) {
				valid = true
			}
			continue
		}
		remaining = append(remaining, t)
	}
	r.tokens = remaining
	return valid, nil
}

func (r *fakeTokenRepo) PurgeExpired(context.Context) (int64, error) {
	return 0, nil
}

type fakeMailer struct {
	sent []string
	err  error
}

func (m *fakeMailer) SendVerificationCode(to, code string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, code)
	return nil
}

func TestSendStoresSixDigitCode(t *testing.T) {
	repo := &fakeTokenRepo{}
	mail := &fakeMailer{}
	svc := NewService(repo, mail)

	if err := svc.Send(context.Background(), "a@x.com"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if len(repo.tokens) != 1 {
		t.Fatalf("stored %d tokens, want 1", len(repo.tokens))
	}
	stored := repo.tokens[0]
	if !regexp.MustCompile(`^[1-9]\d{5}$`).MatchString(stored.token) {
		t.Errorf("code %q is not a 6-digit code", stored.token)
	}
	if until := time.Until(stored.expires); until < 9*time.Minute || until > 10*time.Minute {
		t.Errorf("expiry %v away, want ~10 minutes", until)
	}
	if len(mail.sent) != 1 || mail.sent[0] != stored.token {
		t.Errorf("mailed code %v, want %q", mail.sent, stored.token)
	}
}

func TestSendKeepsPriorCodesValid(t *testing.T) {
	repo := &fakeTokenRepo{}
	svc := NewService(repo, &fakeMailer{})
	ctx := context.Background()

	if err := svc.Send(ctx, "a@x.com"); err != nil {
		t.Fatalf("first Send() error = %v", err)
	}
	first := repo.tokens[0].token

	if err := svc.Send(ctx, "a@x.com"); err != nil {
		t.Fatalf("second Send() error = %v", err)
	}

	if err := svc.Verify(ctx, "a@x.com", first); err != nil {
		t.Errorf("Verify(first code) error = %v, want nil", err)
	}
}

func TestVerifyConsumesCodeExactlyOnce(t *testing.T) {
	repo := &fakeTokenRepo{}
	svc := NewService(repo, &fakeMailer{})
	ctx := context.Background()

	if err := svc.Send(ctx, "a@x.com"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	code := repo.tokens[0].token

	if err := svc.Verify(ctx, "a@x.com", code); err != nil {
		t.Fatalf("first Verify() error = %v", err)
	}
	if err := svc.Verify(ctx, "a@x.com", code); !errors.Is(err, ErrInvalidCode) {
		t.Errorf("second Verify() error = %v, want ErrInvalidCode", err)
	}
}

func TestVerifyWrongCode(t *testing.T) {
	repo := &fakeTokenRepo{}
	svc := NewService(repo, &fakeMailer{})
	ctx := context.Background()

	if err := svc.Send(ctx, "a@x.com"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if err := svc.Verify(ctx, "a@x.com", "000000"); !errors.Is(err, ErrInvalidCode) {
		t.Errorf("Verify(wrong code) error = %v, want ErrInvalidCode", err)
	}
}

func TestVerifyExpiredCode(t *testing.T) {
	repo := &fakeTokenRepo{}
	repo.tokens = append(repo.tokens, fakeToken{
		identifier: "a@x.com",
		token:      "123456",
		expires:    time.Now().Add(-time.Minute),
	})
	svc := NewService(repo, &fakeMailer{})

	if err := svc.Verify(context.Background(), "a@x.com", "123456"); !errors.Is(err, ErrInvalidCode) {
		t.Errorf("Verify(expired) error = %v, want ErrInvalidCode", err)
	}
}

func TestSendDeliveryFailure(t *testing.T) {
	repo := &fakeTokenRepo{}
	svc := NewService(repo, &fakeMailer{err: errors.New("smtp down")})

	err := svc.Send(context.Background(), "a@x.com")
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Errorf("Send() error = %v, want ErrDeliveryFailed", err)
	}
}
