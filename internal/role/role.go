package role

import (
	"errors"
	"strings"
)

// Role is one of the four static congregation roles.
type Role string

const (
	Membro Role = "membro"
	Lider  Role = "lider"
	Pastor Role = "pastor"
	Admin  Role = "admin"
)

// ErrInvalidRole is returned by Parse for values outside the hierarchy.
var ErrInvalidRole = errors.New("invalid role")

// rankTable defines the hierarchy levels (higher number = more privileges).
var rankTable = map[Role]int{
	Membro: 1,
	Lider:  2,
	Pastor: 3,
	Admin:  4,
}

// Default is assigned when a registration omits the role.
const Default = Membro

// All returns every role in ascending rank order.
func All() []Role {
	return []Role{Membro, Lider, Pastor, Admin}
}

// Rank returns the hierarchy level of r, or 0 if r is not a known role.
func Rank(r Role) int {
	return rankTable[r]
}

// Parse normalizes s into a Role. An empty value yields Default.
func Parse(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Default, nil
	}
	r := Role(s)
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	_, ok := rankTable[r]
	return ok
}

// Allows reports whether a holder of r satisfies a minimum of required.
// Unknown roles on either side never match.
func (r Role) Allows(required Role) bool {
	have, ok := rankTable[r]
	if !ok {
		return false
	}
	need, ok := rankTable[required]
	if !ok {
		return false
	}
	return have >= need
}

func (r Role) String() string {
	return string(r)
}
