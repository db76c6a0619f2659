// Package postgres implements the UserStore on PostgreSQL via pgx. It
// expects a users table with id, email (unique), payment_status,
// magic_link_token, magic_link_expires_at, and last_login columns; schema
// management is out of scope here.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	coursegate "github.com/hakanda/coursegate"
)

// Store is a pgx-backed UserStore.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store using the given connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const identityColumns = `id, email, payment_status, magic_link_token, magic_link_expires_at, last_login`

// FindByEmail implements coursegate.UserStore.
func (s *Store) FindByEmail(ctx context.Context, email string) (*coursegate.Identity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+identityColumns+` FROM users WHERE email = $1`, email)

	identity, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coursegate.ErrIdentityNotFound
		}
		return nil, err
	}
	return identity, nil
}

// FindByMagicLinkToken implements coursegate.UserStore.
func (s *Store) FindByMagicLinkToken(ctx context.Context, token string) (*coursegate.Identity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+identityColumns+` FROM users WHERE magic_link_token = $1`, token)

	identity, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coursegate.ErrTokenNotFound
		}
		return nil, err
	}
	return identity, nil
}

// SetMagicLink implements coursegate.UserStore.
func (s *Store) SetMagicLink(ctx context.Context, identityID, token string, expiresAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET magic_link_token = $2, magic_link_expires_at = $3 WHERE id = $1`,
		identityID, token, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return coursegate.ErrIdentityNotFound
	}
	return nil
}

// ConsumeMagicLink implements coursegate.UserStore. The conditional UPDATE
// is the compare-and-clear: of any number of concurrent attempts with the
// same token, exactly one matches a row.
func (s *Store) ConsumeMagicLink(ctx context.Context, token string, now time.Time) (*coursegate.Identity, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE users
		    SET magic_link_token = NULL, magic_link_expires_at = NULL, last_login = $2
		  WHERE magic_link_token = $1 AND magic_link_expires_at > $2
		 RETURNING `+identityColumns,
		token, now)

	identity, err := scanIdentity(row)
	if err == nil {
		return identity, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// No row consumed: distinguish expired-but-present from absent for the
	// audit stream.
	var exists bool
	if lookupErr := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE magic_link_token = $1)`, token,
	).Scan(&exists); lookupErr != nil {
		return nil, lookupErr
	}
	if exists {
		return nil, coursegate.ErrTokenExpired
	}
	return nil, coursegate.ErrTokenNotFound
}

// SetPaymentStatus implements coursegate.UserStore.
func (s *Store) SetPaymentStatus(ctx context.Context, email string, status coursegate.PaymentStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET payment_status = $2 WHERE email = $1`, email, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return coursegate.ErrIdentityNotFound
	}
	return nil
}

// Upsert implements coursegate.UserStore. Conflicts resolve on the unique
// email so a racing double-enroll converges on one record.
func (s *Store) Upsert(ctx context.Context, identity *coursegate.Identity) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, payment_status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (email) DO UPDATE SET payment_status = EXCLUDED.payment_status`,
		identity.ID, identity.Email, string(identity.PaymentStatus))
	return err
}

func scanIdentity(row pgx.Row) (*coursegate.Identity, error) {
	var (
		identity  coursegate.Identity
		status    string
		token     *string
		expiresAt *time.Time
		lastLogin *time.Time
	)

	if err := row.Scan(&identity.ID, &identity.Email, &status, &token, &expiresAt, &lastLogin); err != nil {
		return nil, err
	}

	identity.PaymentStatus = coursegate.PaymentStatus(status)
	if token != nil {
		identity.MagicLinkToken = *token
	}
	if expiresAt != nil {
		identity.MagicLinkExpiresAt = *expiresAt
	}
	if lastLogin != nil {
		identity.LastLogin = *lastLogin
	}
	return &identity, nil
}
