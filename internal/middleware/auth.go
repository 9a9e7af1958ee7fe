package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/spotreel/backend/internal/logging"
	"github.com/spotreel/backend/internal/models"
)

type userCtxKey struct{}

// TokenVerifier validates a bearer token and returns the identity
// provider's stable subject for the caller.
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// UserProvisioner resolves the local account for an identity-provider
// subject, creating it on first sight.
type UserProvisioner interface {
	GetOrCreateByExternalID(ctx context.Context, externalID string) (models.User, error)
}

// CurrentUser returns the authenticated account stored by Authenticate.
func CurrentUser(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userCtxKey{}).(models.User)
	return user, ok
}

// WithCurrentUser stores an account on the context. Exposed for handler tests.
func WithCurrentUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, user)
}

// Authenticate verifies the Authorization header, provisions the local
// account and attaches it to the request context. Requests without a valid
// bearer token are rejected with 401.
func Authenticate(verifier TokenVerifier, users UserProvisioner) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := logging.FromContext(ctx)

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				logger.Warn("missing bearer token")
				unauthorized(w)
				return
			}

			externalID, err := verifier.VerifyToken(token)
			if err != nil {
				logger.Warn("bearer token rejected", "error", err)
				unauthorized(w)
				return
			}

			user, err := users.GetOrCreateByExternalID(ctx, externalID)
			if err != nil {
				logger.Error("resolve account failed", "error", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			ctx = WithCurrentUser(ctx, user)
			ctx = logging.WithUserID(ctx, user.ID)
			ctx = logging.WithLogger(ctx, logger.With("user_id", user.ID))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="spotreel"`)
	http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
}
