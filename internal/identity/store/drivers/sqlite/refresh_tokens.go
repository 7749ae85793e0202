package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/aussiebroadwan/storefront/internal/identity/domain"
)

type refreshTokensRepo struct {
	q querier
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO refresh_tokens
		    (id, user_id, token_hash, session_id, amr, expires_at, revoked, replaced_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.UserID,
		t.TokenHash,
		t.SessionID,
		strings.Join(t.AMR, " "),
		toMillis(t.ExpiresAt),
		t.Revoked,
		t.ReplacedBy,
		toMillis(t.CreatedAt),
		toMillis(t.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(
	ctx context.Context,
	hash string,
) (domain.RefreshToken, error) {
	var (
		t                         domain.RefreshToken
		amr                       string
		expires, created, updated int64
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, session_id, amr, expires_at, revoked, replaced_by, created_at, updated_at
		   FROM refresh_tokens
		  WHERE token_hash = ?`,
		hash,
	).Scan(
		&t.ID,
		&t.UserID,
		&t.TokenHash,
		&t.SessionID,
		&amr,
		&expires,
		&t.Revoked,
		&t.ReplacedBy,
		&created,
		&updated,
	)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}

	t.AMR = splitFields(amr)
	t.ExpiresAt = fromMillis(expires)
	t.CreatedAt = fromMillis(created)
	t.UpdatedAt = fromMillis(updated)
	return t, nil
}

func (r *refreshTokensRepo) RotateRefreshToken(
	ctx context.Context,
	hash, replacedBy string,
	at time.Time,
) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE refresh_tokens
		    SET revoked = 1, replaced_by = ?, updated_at = ?
		  WHERE token_hash = ? AND revoked = 0`,
		replacedBy, toMillis(at), hash,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *refreshTokensRepo) RevokeSession(ctx context.Context, sessionID string, at time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1, updated_at = ? WHERE session_id = ? AND revoked = 0`,
		toMillis(at), sessionID,
	)
	return rowsAffected(res, err)
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < ?`, toMillis(now))
	return rowsAffected(res, err)
}

func rowsAffected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
