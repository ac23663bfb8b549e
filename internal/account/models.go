package account

import (
	"time"

	"github.com/alecgard/ekklesia/internal/role"
)

// Account represents a registered user.
type Account struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         role.Role `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// View is the sanitized representation of an Account sent over the wire.
type View struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      role.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Sanitize strips the password hash.
func (a *Account) Sanitize() View {
	return View{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		Role:      a.Role,
		CreatedAt: a.CreatedAt,
	}
}

// CreateAccountInput holds the fields required to insert a new account.
// PasswordHash must already be hashed.
type CreateAccountInput struct {
	Name         string
	Email        string
	Role         role.Role
	PasswordHash string
}
