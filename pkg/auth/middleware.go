package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/raktar-project/raktar/pkg/apperr"
	"github.com/raktar-project/raktar/pkg/log"
	"github.com/raktar-project/raktar/pkg/types"
)

// TokenLookup resolves a raw credential to its stored token. Satisfied
// by the token repository.
type TokenLookup interface {
	GetToken(ctx context.Context, raw []byte) (*types.Token, error)
}

type contextKey struct{}

// WithUser attaches the authenticated principal to the context.
func WithUser(ctx context.Context, user types.AuthenticatedUser) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFromContext returns the authenticated principal, if any.
func UserFromContext(ctx context.Context) (types.AuthenticatedUser, bool) {
	user, ok := ctx.Value(contextKey{}).(types.AuthenticatedUser)
	return user, ok
}

// TokenAuthenticator gates the registry endpoints. The raw bytes of the
// Authorization header are the lookup key; cargo sends the bare token
// with no scheme prefix, and none is stripped.
func TokenAuthenticator(tokens TokenLookup) func(http.Handler) http.Handler {
	logger := log.WithComponent("auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header != "" {
				token, err := tokens.GetToken(r.Context(), []byte(header))
				if err == nil && token != nil {
					user := types.AuthenticatedUser{ID: token.UserID}
					next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
					return
				}
				if err != nil {
					logger.Error().Err(err).Msg("token lookup failed")
				}
			}

			logger.Warn().Str("path", r.URL.Path).Msg("unauthorized attempt to access registry")
			apperr.Write(w, apperr.Unauthorized("unauthorized"))
		})
	}
}

// JWTAuthenticator gates the web API. The identity provider mints a JWT
// whose payload carries the registry user id as the autogen_id claim;
// the token arrives pre-verified from the edge, so only the claim is
// extracted here. When allowAnonymous is set (local development),
// requests without a usable token proceed unauthenticated.
func JWTAuthenticator(allowAnonymous bool) func(http.Handler) http.Handler {
	logger := log.WithComponent("auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if id, ok := userIDFromJWT(raw); ok {
				user := types.AuthenticatedUser{ID: id}
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
				return
			}

			if allowAnonymous {
				next.ServeHTTP(w, r)
				return
			}

			logger.Warn().Str("path", r.URL.Path).Msg("unauthorized attempt to access web API")
			apperr.Write(w, apperr.Unauthorized("unauthorized"))
		})
	}
}

// userIDFromJWT extracts the autogen_id claim from a compact JWT
// without signature verification.
func userIDFromJWT(token string) (uint32, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return 0, false
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return 0, false
	}

	var claims struct {
		AutogenID uint32 `json:"autogen_id"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return 0, false
	}
	if claims.AutogenID == 0 {
		return 0, false
	}
	return claims.AutogenID, true
}
