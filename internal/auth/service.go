package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alecgard/ekklesia/internal/account"
	"github.com/alecgard/ekklesia/internal/role"
)

// AccountStore is the persistence the auth service needs.
type AccountStore interface {
	Create(ctx context.Context, in account.CreateAccountInput) (*account.Account, error)
	GetByID(ctx context.Context, id string) (*account.Account, error)
	GetByEmail(ctx context.Context, email string) (*account.Account, error)
}

// RegisterInput holds the registration request fields.
type RegisterInput struct {
	Name     string
	Email    string
	Role     string
	Password string
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Account   *account.Account
}

// Service authenticates credentials and issues session tokens.
type Service struct {
	accounts   AccountStore
	issuer     *Issuer
	bcryptCost int

	// decoy is checked on unknown emails so both login failure
	// paths cost one bcrypt comparison.
	decoy *account.Account
}

// NewService creates a new authentication service.
func NewService(accounts AccountStore, issuer *Issuer, bcryptCost int) *Service {
	s := &Service{
		accounts:   accounts,
		issuer:     issuer,
		bcryptCost: bcryptCost,
		decoy:      &account.Account{},
	}
	if h, err := account.HashPassword("ekklesia-login-equalizer", bcryptCost); err == nil {
		s.decoy.PasswordHash = h
	}
	return s
}

// Issuer returns the token issuer used by the service.
func (s *Service) Issuer() *Issuer {
	return s.issuer
}

// Register creates a new account. An omitted role defaults to the lowest rank.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*account.Account, error) {
	name := strings.TrimSpace(in.Name)
	email := account.NormalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, validationError("name, email and password are required")
	}
	if !strings.Contains(email, "@") {
		return nil, validationError("email is malformed")
	}
	if len(in.Password) > account.MaxPasswordBytes {
		return nil, validationError("password must be at most 72 bytes")
	}

	r, err := role.Parse(in.Role)
	if err != nil {
		return nil, validationError("role must be one of membro, lider, pastor, admin")
	}

	hash, err := account.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	a, err := s.accounts.Create(ctx, account.CreateAccountInput{
		Name:         name,
		Email:        email,
		Role:         r,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, account.ErrEmailTaken) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("registering account: %w", err)
	}

	slog.InfoContext(ctx, "account registered", "account_id", a.ID, "role", a.Role)
	return a, nil
}

// Login verifies credentials and issues a session token embedding the
// account's current role. Unknown email and wrong password both return
// ErrInvalidCredentials; only the log line tells them apart.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = account.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, validationError("email and password are required")
	}

	a, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			_ = account.CheckPassword(s.decoy, password)
			slog.InfoContext(ctx, "login rejected", "reason", "unknown_email")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up account: %w", err)
	}

	if !account.CheckPassword(a, password) {
		slog.InfoContext(ctx, "login rejected", "reason", "password_mismatch", "account_id", a.ID)
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.issuer.Issue(a.ID, a.Role)
	if err != nil {
		return nil, err
	}

	return &LoginResult{Token: token, ExpiresAt: expiresAt, Account: a}, nil
}

// Me returns the account behind a verified subject id. Tokens are not
// revocation-aware, so the account may have been removed since issuance.
func (s *Service) Me(ctx context.Context, subjectID string) (*account.Account, error) {
	if subjectID == "" {
		return nil, ErrUnauthenticated
	}

	a, err := s.accounts.GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading account: %w", err)
	}
	return a, nil
}
