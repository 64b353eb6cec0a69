package middleware

import (
	"context"
	"net/http"

	"github.com/bikebill/authcore"
)

type identityContextKey struct{}

// IdentityFromContext returns the identity stored by Guard.
func IdentityFromContext(ctx context.Context) (*authcore.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*authcore.Identity)
	return id, ok
}

// Guard rejects requests without a valid "Authorization: Bearer" access token.
func Guard(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, authcore.ErrInvalidToken)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				WriteError(w, authcore.ErrInvalidToken)
				return
			}

			id, err := engine.VerifyAccessToken(r.Context(), header)
			if err != nil {
				WriteError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
