package middleware

import (
	"net/http"

	"github.com/smartfix-api/internal/domain"
)

// RequirePermission allows the request only when the authenticated account
// may perform action.
func RequirePermission(action domain.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, ok := AccountFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !domain.CanPerform(a, action, "") {
				writeJSONError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
