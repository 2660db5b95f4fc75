package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/recipe-app/recipe-api/internal/platform/httpx"
	"github.com/recipe-app/recipe-api/internal/shared"
)

var errMalformedHeader = errors.New("invalid token header")

// RequireToken authenticates requests carrying "Authorization: Token <key>"
// (or "Bearer <key>") and stores the principal in the request context.
func RequireToken(service *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := tokenFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				httpx.Unauthorized(w, err.Error())
				return
			}
			user, err := service.Resolve(r.Context(), key)
			if err != nil {
				if errors.Is(err, shared.ErrUnauthorized) {
					httpx.Unauthorized(w, "Invalid token.")
					return
				}
				logger.Error("resolve token", slog.Any("error", err))
				httpx.RespondError(w, err)
				return
			}
			ctx := shared.ContextWithPrincipal(r.Context(), shared.Principal{
				UserID:  user.ID,
				Email:   user.Email,
				IsStaff: user.IsStaff,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromHeader(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", shared.ErrUnauthorized
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return "", errMalformedHeader
	}
	switch strings.ToLower(parts[0]) {
	case "token", "bearer":
		return parts[1], nil
	default:
		return "", errMalformedHeader
	}
}
