package middleware

import (
	"net/http"

	"github.com/bikebill/authcore"
)

// RateLimit consumes one api-scope point per request, keyed by the client
// address set by ClientContext.
func RateLimit(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := authcore.ClientIPFromContext(r.Context())
			if ip == "" {
				ip = "unknown"
			}
			if err := engine.AdmitAPI(r.Context(), ip); err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
