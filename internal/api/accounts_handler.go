package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/alecgard/ekklesia/internal/account"
	"github.com/alecgard/ekklesia/internal/auth"
	"github.com/alecgard/ekklesia/internal/role"
	"github.com/go-chi/chi/v5"
)

// RoleUpdater changes an account's stored role.
type RoleUpdater interface {
	UpdateRole(ctx context.Context, id string, r role.Role) (*account.Account, error)
}

type accountsHandler struct {
	store RoleUpdater
}

func newAccountsHandler(store RoleUpdater) *accountsHandler {
	return &accountsHandler{store: store}
}

type roleEntry struct {
	Name    string `json:"name"`
	Rank    int    `json:"rank"`
	Granted bool   `json:"granted"`
}

// ListRoles handles GET /api/v1/roles. Granted reports whether the caller's
// role satisfies each entry.
func (h *accountsHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	if p == nil {
		writeServiceError(w, r, auth.ErrUnauthenticated)
		return
	}

	all := role.All()
	entries := make([]roleEntry, 0, len(all))
	for _, rl := range all {
		entries = append(entries, roleEntry{
			Name:    rl.String(),
			Rank:    role.Rank(rl),
			Granted: p.Role.Allows(rl),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"current": p.Role,
		"roles":   entries,
	})
}

// UpdateRole handles PUT /api/v1/admin/accounts/{id}/role. The new role
// takes effect on the account's next login.
func (h *accountsHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	if p == nil {
		writeServiceError(w, r, auth.ErrUnauthenticated)
		return
	}

	id := chi.URLParam(r, "id")

	var req struct {
		Role string `json:"role"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if strings.TrimSpace(req.Role) == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "role is required")
		return
	}
	newRole, err := role.Parse(req.Role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if id == p.SubjectID {
		writeError(w, http.StatusBadRequest, "validation_error", "cannot change your own role")
		return
	}

	a, err := h.store.UpdateRole(r.Context(), id, newRole)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, a.Sanitize())
}
