package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"

	"poolorder/internal/domain/identity"
)

type contextKey int

const userContextKey contextKey = iota

// UserFromContext returns the identity attached by Authenticate, or the
// anonymous identity when none is present.
func UserFromContext(ctx context.Context) identity.User {
	if u, ok := ctx.Value(userContextKey).(identity.User); ok {
		return u
	}
	return identity.Anonymous
}

// Authenticate resolves the bearer credential to an identity and attaches it
// to the request context. The token comes from the Authorization header, or
// from the "token" query parameter for WebSocket upgrades where browsers
// cannot set headers. With allowAnonymous, verification failures degrade to
// the anonymous identity instead of failing the request, matching the
// public-endpoint behavior of the rest of the API.
func Authenticate(verifier identity.Verifier, allowAnonymous bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" || verifier == nil {
				next.ServeHTTP(w, r.WithContext(withUser(r.Context(), identity.Anonymous)))
				return
			}

			user, err := verifier.Verify(r.Context(), token)
			if err != nil {
				if !allowAnonymous {
					respondWithError(w, http.StatusUnauthorized, "Authentication required", err)
					return
				}
				log.Printf("token verification failed, continuing as anonymous: %v", err)
				user = identity.Anonymous
			}

			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}

func withUser(ctx context.Context, u identity.User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}
