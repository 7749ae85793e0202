package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/aussiebroadwan/storefront/internal/identity/domain"
	"github.com/aussiebroadwan/storefront/internal/identity/store"
	"github.com/aussiebroadwan/storefront/pkg/cryptox"
	"github.com/aussiebroadwan/storefront/pkg/idx"
	"github.com/aussiebroadwan/storefront/pkg/jwtx"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
)

// DefaultRefreshTokenTTL bounds how long an unused refresh token stays valid.
const DefaultRefreshTokenTTL = 30 * 24 * time.Hour

type TokenService struct {
	KeyManager *jwtx.KeyManager
	Store      store.Store
	Issuer     string
	Audience   []string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// RequireEmailConfirmation rejects password sign-in until the email
	// confirmation code has been redeemed.
	RequireEmailConfirmation bool

	// Now is overridable in tests.
	Now func() time.Time
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// SignInWithPassword implements the password grant. It starts a new session
// with a fresh session id.
func (s *TokenService) SignInWithPassword(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	u, err := s.Store.Users().GetUserByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			l.Info("password grant rejected", "user_id", u.ID)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if s.RequireEmailConfirmation && !u.Confirmed() {
		return nil, ErrEmailNotConfirmed
	}

	return s.issue(ctx, u, idx.New().String(), []string{domain.AMRPassword})
}

// ExchangeRefreshToken implements the refresh grant with rotation: the
// presented token is spent and a new one in the same session is returned.
//
// Two concurrent exchanges of the same token race on a conditional update.
// Exactly one wins; the other gets ErrRefreshAlreadyUsed.
func (s *TokenService) ExchangeRefreshToken(ctx context.Context, refreshOpaque string) (*domain.TokenPair, error) {
	if !cryptox.WellFormedToken(refreshOpaque, cryptox.TokenSize256) {
		return nil, ErrRefreshMalformed
	}
	now := s.now()

	fp := cryptox.FingerprintToken(refreshOpaque)
	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRefreshNotFound
		}
		return nil, err
	}

	switch {
	case rt.Rotated():
		return nil, ErrRefreshAlreadyUsed
	case rt.Revoked:
		return nil, ErrRefreshRevoked
	case now.After(rt.ExpiresAt):
		return nil, ErrRefreshExpired
	}

	u, err := s.Store.Users().GetUserByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRefreshRevoked
		}
		return nil, err
	}

	amr := rt.AMR
	if !slices.Contains(amr, domain.AMRRefresh) {
		amr = append(slices.Clone(amr), domain.AMRRefresh)
	}

	var pair *domain.TokenPair
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		next, err := s.newRefreshToken(u.ID, rt.SessionID, amr, now)
		if err != nil {
			return err
		}

		won, err := tx.RefreshTokens().RotateRefreshToken(ctx, fp, next.row.ID, now)
		if err != nil {
			return err
		}
		if !won {
			return ErrRefreshAlreadyUsed
		}
		if err := tx.RefreshTokens().CreateRefreshToken(ctx, next.row); err != nil {
			return err
		}

		pair, err = s.pair(u, rt.SessionID, amr, next.opaque, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// SignOut revokes every refresh token of the session the access token
// belongs to. Already-issued access tokens stay valid until they expire.
func (s *TokenService) SignOut(ctx context.Context, sessionID string) error {
	n, err := s.Store.RefreshTokens().RevokeSession(ctx, sessionID, s.now())
	if err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("session revoked", "sid", sessionID, "tokens", n)
	return nil
}

// RevokeRefreshToken revokes the whole session the refresh token belongs to,
// whether or not the token itself is still active. It needs no access token,
// so a client can sign out after its access token has expired.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, refreshOpaque string) error {
	if !cryptox.WellFormedToken(refreshOpaque, cryptox.TokenSize256) {
		return ErrRefreshMalformed
	}

	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(refreshOpaque))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrRefreshNotFound
		}
		return err
	}
	return s.SignOut(ctx, rt.SessionID)
}

func (s *TokenService) issue(ctx context.Context, u domain.User, sessionID string, amr []string) (*domain.TokenPair, error) {
	now := s.now()

	next, err := s.newRefreshToken(u.ID, sessionID, amr, now)
	if err != nil {
		return nil, err
	}
	if err := s.Store.RefreshTokens().CreateRefreshToken(ctx, next.row); err != nil {
		return nil, err
	}
	return s.pair(u, sessionID, amr, next.opaque, now)
}

type mintedRefresh struct {
	opaque string
	row    domain.RefreshToken
}

func (s *TokenService) newRefreshToken(userID, sessionID string, amr []string, now time.Time) (mintedRefresh, error) {
	opaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return mintedRefresh{}, err
	}
	return mintedRefresh{
		opaque: opaque,
		row: domain.RefreshToken{
			ID:        idx.NewAt(now).String(),
			UserID:    userID,
			TokenHash: cryptox.FingerprintToken(opaque),
			SessionID: sessionID,
			AMR:       amr,
			ExpiresAt: now.Add(s.refreshTTL()),
			CreatedAt: now,
			UpdatedAt: now,
		},
	}, nil
}

func (s *TokenService) pair(u domain.User, sessionID string, amr []string, refreshOpaque string, now time.Time) (*domain.TokenPair, error) {
	accessToken, err := s.signAccess(u, sessionID, amr, now)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshOpaque,
		ExpiresIn:    s.accessTTL(),
		ExpiresAt:    now.Add(s.accessTTL()),
		User:         u,
	}, nil
}

func (s *TokenService) signAccess(u domain.User, sessionID string, amr []string, now time.Time) (string, error) {
	claims := jwtx.NewAccessClaims(
		u.ID,
		sessionID,
		u.Email,
		amr,
		s.accessTTL(),
		s.Issuer,
		s.Audience,
		now,
	)
	// Spread signing across the key set
	return s.KeyManager.GetSigner().Sign(claims)
}

func (s *TokenService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func (s *TokenService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return DefaultRefreshTokenTTL
}
