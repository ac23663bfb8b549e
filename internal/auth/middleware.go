package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alecgard/ekklesia/internal/role"
)

type contextKey int

const principalContextKey contextKey = iota

// ContextWithPrincipal returns a new context carrying the given principal.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext extracts the principal from the context, or nil if not present.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey).(*Principal)
	return p
}

// Authenticate returns middleware that verifies the bearer token in the
// Authorization header and injects the resulting principal into the request
// context. onReject hooks receive a short failure reason.
func Authenticate(verifier TokenVerifier, onReject ...func(reason string)) func(http.Handler) http.Handler {
	reject := func(reason string) {
		for _, fn := range onReject {
			fn(reason)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractBearerToken(r)
			if token == "" {
				reject("missing_token")
				writeUnauthorized(w, "unauthenticated", "missing or malformed authorization header")
				return
			}

			p, err := verifier.Verify(token)
			if err != nil {
				reason := "invalid"
				var te *TokenError
				if errors.As(err, &te) {
					reason = te.Reason
				}
				slog.DebugContext(r.Context(), "token rejected", "reason", reason)
				reject(reason)
				writeUnauthorized(w, "invalid_token", "invalid or expired token")
				return
			}

			ctx := ContextWithPrincipal(r.Context(), p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole returns middleware that admits only principals whose role
// ranks at or above min. It must run after Authenticate.
func RequireRole(min role.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil {
				writeUnauthorized(w, "unauthenticated", "not authenticated")
				return
			}
			if !p.Role.Allows(min) {
				writeForbidden(w, min.String()+" role or higher required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ExtractBearerToken returns the token from an "Authorization: Bearer <token>"
// header. The scheme keyword is matched case-insensitively.
func ExtractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	writeAuthError(w, http.StatusUnauthorized, code, message)
}

func writeForbidden(w http.ResponseWriter, message string) {
	writeAuthError(w, http.StatusForbidden, "forbidden", message)
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error: errorBody{
			Code:    code,
			Message: message,
		},
	})
}
