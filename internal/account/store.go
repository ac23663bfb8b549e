package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/alecgard/ekklesia/internal/role"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no account matches the lookup.
	ErrNotFound = errors.New("account not found")
	// ErrEmailTaken is returned when the unique email index rejects an insert.
	ErrEmailTaken = errors.New("email already registered")
)

// pgUniqueViolation is the SQLSTATE raised by a unique index conflict.
const pgUniqueViolation = "23505"

const accountColumns = `id, name, email, role, password_hash, created_at, updated_at`

// Store provides database operations for accounts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new account store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanAccount(scan func(dest ...any) error) (*Account, error) {
	a := &Account{}
	var r string
	err := scan(&a.ID, &a.Name, &a.Email, &r, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Role = role.Role(r)
	return a, nil
}

// Create inserts a new account. Email uniqueness is enforced by the
// accounts_email_key index, so concurrent inserts of the same address yield
// exactly one row and ErrEmailTaken for the rest.
func (s *Store) Create(ctx context.Context, in CreateAccountInput) (*Account, error) {
	a, err := scanAccount(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`INSERT INTO accounts (name, email, role, password_hash)
			 VALUES ($1, $2, $3, $4)
			 RETURNING `+accountColumns,
			in.Name, NormalizeEmail(in.Email), string(in.Role), in.PasswordHash,
		).Scan(dest...)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("creating account: %w", err)
	}
	return a, nil
}

// GetByID retrieves an account by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*Account, error) {
	a, err := scanAccount(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, notFoundOr(err, "getting account by id")
	}
	return a, nil
}

// GetByEmail retrieves an account by its normalized email address.
func (s *Store) GetByEmail(ctx context.Context, email string) (*Account, error) {
	a, err := scanAccount(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, NormalizeEmail(email),
		).Scan(dest...)
	})
	if err != nil {
		return nil, notFoundOr(err, "getting account by email")
	}
	return a, nil
}

// UpdateRole changes an account's role. Tokens already issued keep the old
// role until they expire.
func (s *Store) UpdateRole(ctx context.Context, id string, r role.Role) (*Account, error) {
	a, err := scanAccount(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`UPDATE accounts SET role = $1, updated_at = now() WHERE id = $2
			 RETURNING `+accountColumns,
			string(r), id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, notFoundOr(err, "updating account role")
	}
	return a, nil
}

// Count returns the number of registered accounts.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting accounts: %w", err)
	}
	return n, nil
}

func notFoundOr(err error, op string) error {
	// An id that is not a valid uuid can never match a row.
	if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}
