package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/angelmondragon/cropmarket-backend/api/responses"
	"github.com/angelmondragon/cropmarket-backend/pkg/auth"
	"github.com/angelmondragon/cropmarket-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/cropmarket-backend/pkg/errors"
	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
)

const authRealm = `Bearer realm="cropmarket"`

// Auth requires an "Authorization: Bearer <jwt>" header and puts the caller's
// id and role on the request context.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", authRealm)
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			claims, err := auth.ParseAccessToken(cfg, token)
			if err != nil {
				message := "invalid token"
				if errors.Is(err, auth.ErrTokenExpired) {
					message = "token expired"
				}
				w.Header().Set("WWW-Authenticate", authRealm+`, error="invalid_token", error_description="`+message+`"`)
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, message))
				return
			}

			ctx := WithActor(r.Context(), claims.UserID, claims.Role)
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{"user_id": claims.UserID.String(), "actor_role": string(claims.Role)})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
