package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/storefront/internal/storefront/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type Store struct {
	pool *pgxpool.Pool
	url  string
}

var _ store.Store = (*Store)(nil)

// NewStore connects to databaseURL (postgres:// or postgresql://).
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	return &Store{pool: pool, url: databaseURL}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Products() store.Products { return &productsRepo{pool: s.pool} }
func (s *Store) Orders() store.Orders     { return &ordersRepo{pool: s.pool} }

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case uniqueViolation:
		return store.ErrAlreadyExists
	case foreignKeyViolation:
		return store.ErrUnknownProduct
	}
	return err
}

// migrateURL rewrites a postgres URL for golang-migrate's pgx/v5 driver.
func migrateURL(databaseURL string) string {
	for _, scheme := range []string{"postgresql://", "postgres://"} {
		if rest, ok := strings.CutPrefix(databaseURL, scheme); ok {
			return "pgx5://" + rest
		}
	}
	return databaseURL
}
