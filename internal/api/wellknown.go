package api

import "net/http"

// wellKnownManifest is the static JSON manifest for /.well-known/ekklesia.json.
const wellKnownManifest = `{
  "name": "Ekklesia",
  "description": "Church management API",
  "version": "0.1.0",
  "api_base": "/api/v1",
  "auth": {
    "type": "bearer",
    "header": "Authorization",
    "token_format": "jwt"
  },
  "roles": ["membro", "lider", "pastor", "admin"],
  "endpoints": {
    "register": "/auth/register",
    "login": "/auth/login",
    "me": "/auth/me",
    "logout": "/auth/logout",
    "roles": "/api/v1/roles"
  },
  "health": "/health"
}`

// WellKnownHandler returns the static Ekklesia well-known manifest.
func WellKnownHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(wellKnownManifest))
}
