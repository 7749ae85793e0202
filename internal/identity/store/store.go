package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/storefront/internal/identity/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement this
// and expose sub-repositories so a transaction-scoped Store can be handed to
// the same code paths as the root one.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail expects an already normalised email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user. A duplicate email yields ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	// ConfirmEmail sets email_confirmed_at if it is not set yet.
	ConfirmEmail(ctx context.Context, userID string, at time.Time) error
}

type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the token by its fingerprint, revoked or not.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// RotateRefreshToken revokes the token only if it is still active and
	// records its successor. It reports false when another caller already
	// spent or revoked it, so concurrent rotations have exactly one winner.
	RotateRefreshToken(ctx context.Context, hash, replacedBy string, at time.Time) (bool, error)

	// RevokeSession revokes every active token of a session (sign-out).
	RevokeSession(ctx context.Context, sessionID string, at time.Time) (int64, error)

	// DeleteExpiredRefreshTokens is housekeeping.
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}
