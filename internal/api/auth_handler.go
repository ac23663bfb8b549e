package api

import (
	"net/http"

	"github.com/alecgard/ekklesia/internal/auth"
	"github.com/alecgard/ekklesia/internal/metrics"
)

// authHandler groups authentication HTTP handlers.
type authHandler struct {
	svc     *auth.Service
	metrics *metrics.Metrics
}

func newAuthHandler(svc *auth.Service, m *metrics.Metrics) *authHandler {
	return &authHandler{svc: svc, metrics: m}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// registeredUser is the reduced account shape returned by Register.
type registeredUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type loginUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Register handles POST /auth/register.
func (h *authHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := readJSON(r, &req); err != nil {
		h.metrics.IncAuthFailure("register", "invalid_body")
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	a, err := h.svc.Register(r.Context(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Role:     req.Role,
		Password: req.Password,
	})
	if err != nil {
		_, code := classifyError(err)
		h.metrics.IncAuthFailure("register", code)
		writeServiceError(w, r, err)
		return
	}

	h.metrics.IncAuthSuccess("register")
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "user registered successfully",
		"user": registeredUser{
			ID:    a.ID,
			Email: a.Email,
			Role:  a.Role.String(),
		},
	})
}

// Login handles POST /auth/login.
func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		h.metrics.IncAuthFailure("login", "invalid_body")
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		_, code := classifyError(err)
		h.metrics.IncAuthFailure("login", code)
		writeServiceError(w, r, err)
		return
	}

	h.metrics.IncAuthSuccess("login")
	h.metrics.IncTokenIssued(res.Account.Role.String())
	writeJSON(w, http.StatusOK, map[string]any{
		"token": res.Token,
		"user": loginUser{
			ID:    res.Account.ID,
			Name:  res.Account.Name,
			Email: res.Account.Email,
			Role:  res.Account.Role.String(),
		},
	})
}

// Me handles GET /auth/me.
func (h *authHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	if p == nil {
		writeServiceError(w, r, auth.ErrUnauthenticated)
		return
	}

	a, err := h.svc.Me(r.Context(), p.SubjectID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, a.Sanitize())
}

// Logout handles POST /auth/logout. Tokens are stateless, so the server
// only acknowledges; the client discards its credential.
func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.metrics.IncAuthSuccess("logout")
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "logged out",
	})
}
