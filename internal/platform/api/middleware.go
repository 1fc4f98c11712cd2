package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type principalKey struct{}

// PrincipalFromContext returns the subject claim of the bearer token that
// authenticated this request, set by RequireBearerAuth.
func PrincipalFromContext(ctx context.Context) string {
	v, _ := ctx.Value(principalKey{}).(string)
	return v
}

// RequireBearerAuth validates an HS256 JWT bearer token and stores its
// subject claim on the request context for audit logging. Admin API routes
// are mounted behind this middleware; the bus's message-handling path never
// runs through HTTP and is unaffected.
func RequireBearerAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				WriteUnauthorized(w, "missing bearer token")
				return
			}

			claims := jwt.MapClaims{}
			parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrTokenSignatureInvalid
				}
				return secret, nil
			})
			if err != nil || !parsed.Valid {
				WriteUnauthorized(w, "invalid bearer token")
				return
			}

			sub, _ := claims["sub"].(string)
			ctx := context.WithValue(r.Context(), principalKey{}, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
