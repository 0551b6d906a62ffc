package http

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"rently-backend/internal/config"
	"rently-backend/internal/domain"
	"rently-backend/internal/logger"
	"rently-backend/internal/security"
)

type AuthMiddleware struct {
	tokenManager security.TokenManager
}

func NewAuthMiddleware(tm security.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokenManager: tm}
}

// Handler authenticates requests by the security level of the matched route.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := ""
		if route := mux.CurrentRoute(r); route != nil {
			name = route.GetName()
		}
		level := config.GetSecurityLevel(name)

		// Public endpoint - skip auth
		if level == config.SecurityPublic {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := extractToken(r)
		if !ok {
			writeStatus(w, http.StatusUnauthorized, "UNAUTHENTICATED", "authorization token is not provided")
			return
		}
		claims, err := m.tokenManager.ValidateToken(token)
		if err != nil {
			writeStatus(w, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid token: "+err.Error())
			return
		}
		if msg := checkSecurityLevel(level, claims); msg != "" {
			logger.Warn("Rejected request", "route", name, "user_id", claims.UserID, "reason", msg)
			writeStatus(w, http.StatusForbidden, string(domain.CodePermissionDenied), msg)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), claims.Actor())))
	})
}

func extractToken(r *http.Request) (string, bool) {
	token := r.Header.Get("Authorization")
	// Remove Bearer prefix if present
	if len(token) > 7 && strings.ToUpper(token[0:7]) == "BEARER " {
		token = token[7:]
	}
	return token, token != ""
}

func checkSecurityLevel(level config.SecurityLevel, claims *security.UserClaims) string {
	switch level {
	case config.SecurityAccess:
		if claims.Type != security.TokenTypeAccess {
			return "access token required"
		}
	case config.SecurityAdmin:
		if claims.Type != security.TokenTypeAccess || claims.Role != domain.UserRoleAdmin {
			return "admin role required"
		}
	case config.SecurityService:
		if claims.Type != security.TokenTypeService || claims.Role != domain.UserRoleService {
			return "service token required"
		}
	}
	return ""
}
