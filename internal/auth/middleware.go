package auth

import (
	"encoding/json"
	"net/http"

	"github.com/micro-nova/unlockchime/internal/models"
)

const (
	// HeaderAPIKey carries the access key on API calls.
	HeaderAPIKey = "X-API-Key"
	// QueryAPIKey carries the access key where headers cannot be set, such
	// as an EventSource.
	QueryAPIKey       = "api-key"
	sessionCookieName = "unlockchime-session"
)

// Middleware enforces authentication. In open mode every request passes.
// Otherwise the key is taken from the header, the session cookie or the
// query string.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.IsOpenMode() || s.VerifyKey(requestKey(r)) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(models.ErrUnauthorized.Status)
		_ = json.NewEncoder(w).Encode(models.ErrUnauthorized)
	})
}

func requestKey(r *http.Request) string {
	if k := r.Header.Get(HeaderAPIKey); k != "" {
		return k
	}
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get(QueryAPIKey)
}
