package middleware

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/shopfront/accounts/internal/app/services/auth"
	"github.com/shopfront/accounts/pkg/logger"
)

// Identity extracts the caller's identity from a Bearer token when present.
// It never rejects: enforcement happens in the view layer, which knows which
// endpoints permit anonymous access. Requests with an invalid token proceed
// anonymously.
func Identity(authSvc *auth.Service, log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := authSvc.ValidateAccess(r.Context(), token)
			if err != nil {
				log.WithContext(r.Context()).WithError(err).Debug("token rejected; continuing as anonymous")
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithUser(r.Context(), claims.UserID, claims.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
