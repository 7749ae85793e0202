package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/aussiebroadwan/storefront/internal/identity/domain"
	"github.com/aussiebroadwan/storefront/internal/identity/store"
	"github.com/aussiebroadwan/storefront/pkg/cryptox"
	"github.com/aussiebroadwan/storefront/pkg/idx"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// ConfirmationCodePeriod is how long an email confirmation code stays valid.
const ConfirmationCodePeriod = 10 * time.Minute

// CodeSender delivers email confirmation codes.
type CodeSender interface {
	SendConfirmation(ctx context.Context, email, code string) error
}

// LogMailer is the development CodeSender: it writes the code to the log.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) SendConfirmation(ctx context.Context, email, code string) error {
	m.Logger.InfoContext(ctx, "email confirmation code", "email", email, "code", code)
	return nil
}

type UserService struct {
	Store  store.Store
	Issuer string
	Mailer CodeSender

	// RequireEmailConfirmation leaves new users unconfirmed until they
	// redeem their code. When false users are confirmed at sign-up.
	RequireEmailConfirmation bool

	Now func() time.Time
}

func (s *UserService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// GetUserByID fetches a user by id.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return u, err
}

// SignUp registers a new user and sends the confirmation code. The returned
// bool tells the caller whether the user must confirm before signing in.
func (s *UserService) SignUp(ctx context.Context, email, password string) (domain.User, bool, error) {
	email = domain.NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return domain.User{}, false, ErrInvalidEmail
	}
	if err := cryptox.ValidatePassword(password); err != nil {
		return domain.User{}, false, ErrWeakPassword
	}

	if _, err := s.Store.Users().GetUserByEmail(ctx, email); err == nil {
		return domain.User{}, false, ErrEmailExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, false, err
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, false, fmt.Errorf("hash password: %w", err)
	}

	issuer := s.Issuer
	if issuer == "" {
		issuer = "storefront-identity"
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: email,
		Period:      uint(ConfirmationCodePeriod.Seconds()),
	})
	if err != nil {
		return domain.User{}, false, fmt.Errorf("generate confirmation secret: %w", err)
	}

	now := s.now()
	u := domain.User{
		ID:            idx.NewAt(now).String(),
		Email:         email,
		PasswordHash:  hash,
		ConfirmSecret: key.Secret(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if !s.RequireEmailConfirmation {
		u.EmailConfirmedAt = &now
	}

	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, false, ErrEmailExists
		}
		return domain.User{}, false, err
	}

	if s.RequireEmailConfirmation {
		if err := s.sendCode(ctx, u, now); err != nil {
			// The user exists; a later verify attempt can still succeed
			// once a code reaches them.
			slogx.FromContext(ctx).Error("failed to send confirmation code", "user_id", u.ID, "err", err)
		}
	}

	return u, s.RequireEmailConfirmation, nil
}

// Verify redeems an email confirmation code. Verifying an already confirmed
// user is a no-op.
func (s *UserService) Verify(ctx context.Context, email, code string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrInvalidCode
		}
		return domain.User{}, err
	}
	if u.Confirmed() {
		return u, nil
	}

	now := s.now()
	ok, err := totp.ValidateCustom(code, u.ConfirmSecret, now, codeOpts())
	if err != nil || !ok {
		return domain.User{}, ErrInvalidCode
	}

	if err := s.Store.Users().ConfirmEmail(ctx, u.ID, now); err != nil {
		return domain.User{}, err
	}
	return s.GetUserByID(ctx, u.ID)
}

// ConfirmationCode returns the code currently valid for the user.
func (s *UserService) ConfirmationCode(u domain.User, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(u.ConfirmSecret, at, codeOpts())
}

func (s *UserService) sendCode(ctx context.Context, u domain.User, now time.Time) error {
	if s.Mailer == nil {
		return nil
	}
	code, err := s.ConfirmationCode(u, now)
	if err != nil {
		return err
	}
	return s.Mailer.SendConfirmation(ctx, u.Email, code)
}

func codeOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    uint(ConfirmationCodePeriod.Seconds()),
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}
