package middleware

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/maxsergeev/YD-Project-2/pkg/auth"
	pkgerrors "github.com/maxsergeev/YD-Project-2/pkg/errors"
)

// Authenticate validates the bearer token and requires the operator role
func Authenticate(validator *auth.JWTValidator, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				errHandler.Handle(w, r, pkgerrors.NewUnauthorizedError("missing authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.Warn("Invalid token",
					zap.Error(err),
					zap.String("remote_addr", r.RemoteAddr),
				)
				msg := "invalid token"
				if errors.Is(err, auth.ErrExpiredToken) {
					msg = "token has expired"
				}
				errHandler.Handle(w, r, pkgerrors.NewUnauthorizedError(msg))
				return
			}

			if !claims.HasRole(auth.RoleOperator) {
				errHandler.Handle(w, r, pkgerrors.NewForbiddenError("operator role required"))
				return
			}

			logger.Debug("Request authenticated",
				zap.String("subject", claims.Subject),
				zap.String("method", r.Method),
			)
			next.ServeHTTP(w, r.WithContext(auth.SetClaimsInContext(r.Context(), claims)))
		})
	}
}

// extractToken reads a bearer token from the Authorization header
func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
