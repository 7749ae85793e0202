package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/storefront/internal/identity/domain"
)

type usersRepo struct {
	q querier
}

const userColumns = `id, email, password_hash, confirm_secret, email_confirmed_at, created_at, updated_at`

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID,
		u.Email,
		u.PasswordHash,
		u.ConfirmSecret,
		mapOptionalMillis(u.EmailConfirmedAt),
		toMillis(u.CreatedAt),
		toMillis(u.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *usersRepo) ConfirmEmail(ctx context.Context, userID string, at time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users
		    SET email_confirmed_at = COALESCE(email_confirmed_at, ?), updated_at = ?
		  WHERE id = ?`,
		toMillis(at), toMillis(at), userID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

func scanUser(row *sql.Row) (domain.User, error) {
	var (
		u         domain.User
		confirmed sql.NullInt64
		created   int64
		updated   int64
	)
	if err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.ConfirmSecret,
		&confirmed,
		&created,
		&updated,
	); err != nil {
		return domain.User{}, mapNotFound(err)
	}

	u.EmailConfirmedAt = mapNullMillis(confirmed)
	u.CreatedAt = fromMillis(created)
	u.UpdatedAt = fromMillis(updated)
	return u, nil
}
