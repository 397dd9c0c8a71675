package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"riffrate/internal/identity"
	"riffrate/internal/logging"
)

// Authenticate resolves an "Authorization: Bearer" token through verifier and
// stores the identity on the request context. Requests without a token pass
// through anonymously; a token that fails verification is rejected with 401.
// A nil verifier disables authentication entirely.
func Authenticate(verifier identity.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if verifier == nil || token == "" {
				next.ServeHTTP(w, r)
				return
			}

			who, err := verifier.Verify(r.Context(), token)
			if err != nil {
				logging.WithContext(r.Context()).Warn().Err(err).Msg("rejected bearer token")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid or expired token"})
				return
			}

			next.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), who)))
		})
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
