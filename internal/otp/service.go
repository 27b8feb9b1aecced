package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
)

const codeTTL = 10 * time.Minute

var (
	ErrInvalidCode    = errors.New("invalid or expired code")
	ErrDeliveryFailed = errors.New("failed to deliver verification code")
)

type Mailer interface {
	SendVerificationCode(to, code string) error
}

type Service struct {
	repo   TokenRepository
	mailer Mailer
}

func NewService(repo TokenRepository, mailer Mailer) *Service {
	return &Service{
		repo:   repo,
		mailer: mailer,
	}
}

// Send issues a fresh 6-digit code to the given address. Prior unexpired
// codes stay valid; each send stores an independent token row.
func (s *Service) Send(ctx context.Context, email string) error {
	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}

	if err := s.repo.Insert(ctx, email, code, time.Now().Add(codeTTL)); err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}

	if err := s.mailer.SendVerificationCode(email, code); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

// Verify redeems a code. All rows matching (email, code) are consumed so the
// same pair can never succeed twice.
func (s *Service) Verify(ctx context.Context, email, code string) error {
	ok, err := s.repo.Consume(ctx, email, code)
	if err != nil {
		return fmt.Errorf("failed to consume verification token: %w", err)
	}
	if !ok {
		return ErrInvalidCode
	}
	return nil
}

// generateCode draws a uniform 6-digit numeric code in [100000, 999999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
