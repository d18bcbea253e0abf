package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/infrastructure/auth"
	"github.com/iho/clubmarket/internal/infrastructure/metrics"
)

// Identity headers read when token authentication is disabled.
const (
	UserIDHeader = "X-User-ID"
	ClubIDHeader = "X-Club-ID"
	RoleHeader   = "X-Role"
)

// AuthMiddleware resolves the calling actor. With a JWT manager every request needs a
// bearer token; without one the identity headers are trusted and may be absent.
func AuthMiddleware(jwtManager *auth.JWTManager, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				actor  *domain.Actor
				reason string
			)
			if jwtManager != nil {
				actor, reason = bearerActor(jwtManager, r)
			} else {
				actor, reason = headerActor(r)
			}

			if reason != "" {
				if m != nil {
					m.AuthFailures.WithLabelValues(reason).Inc()
				}
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", reason)
				return
			}
			if actor == nil {
				next.ServeHTTP(w, r)
				return
			}

			zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("actor", actor.UserID).Str("role", string(actor.Role))
			})
			next.ServeHTTP(w, r.WithContext(domain.WithActor(r.Context(), actor)))
		})
	}
}

func bearerActor(jwtManager *auth.JWTManager, r *http.Request) (*domain.Actor, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, "missing authorization header"
	}

	// Parse Bearer token
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, "invalid authorization header format"
	}

	claims, err := jwtManager.Verify(parts[1])
	if err != nil {
		return nil, "invalid or expired token"
	}
	return claims.Actor(), ""
}

func headerActor(r *http.Request) (*domain.Actor, string) {
	userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if userID == "" {
		return nil, ""
	}

	actor := &domain.Actor{
		UserID: userID,
		ClubID: strings.TrimSpace(r.Header.Get(ClubIDHeader)),
		Role:   domain.Role(strings.TrimSpace(r.Header.Get(RoleHeader))),
	}
	if actor.Role == "" {
		actor.Role = domain.RoleManager
		if actor.ClubID == "" {
			actor.Role = domain.RoleViewer
		}
	}
	if !actor.Role.IsValid() {
		return nil, "invalid role"
	}
	return actor, ""
}

// RequireRole creates a middleware that checks for a specific role
func RequireRole(minRole domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := domain.ActorFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}

			// Check role permissions
			switch minRole {
			case domain.RoleAdmin:
				if actor.Role != domain.RoleAdmin {
					writeJSONError(w, http.StatusForbidden, "forbidden", "insufficient permissions")
					return
				}
			case domain.RoleManager:
				if !actor.Role.CanNegotiate() {
					writeJSONError(w, http.StatusForbidden, "forbidden", "insufficient permissions")
					return
				}
			case domain.RoleViewer:
				// All authenticated users can view
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin guards administrative routes.
func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(domain.RoleAdmin)(next)
}

func writeJSONError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   message,
		"message": details,
	})
}
