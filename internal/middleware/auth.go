package middleware

import (
	"net/http"
	"strings"

	"github.com/leduyhoang1994/quivr/internal/model/user"
	"github.com/leduyhoang1994/quivr/pkg/utils"
)

// Auth validates the bearer api key and attaches the resolved identity to the
// request context. apiKeys maps key -> email.
func Auth(apiKeys map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				utils.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			email, ok := apiKeys[token]
			if !ok {
				utils.RespondError(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			identity := user.Identity{ID: user.DeriveID(email), Email: email}
			next.ServeHTTP(w, r.WithContext(user.NewContext(r.Context(), identity)))
		})
	}
}
