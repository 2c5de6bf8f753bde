package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wellbeing-foundation/registration-engine/internal/models"
)

// IdentityClaims are the claims of the foundation's access tokens
type IdentityClaims struct {
	jwt.RegisteredClaims
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// IdentityMiddleware turns the caller's access token into a CurrentUser
type IdentityMiddleware struct {
	secret []byte
}

// NewIdentityMiddleware creates identity middleware verifying HS256 tokens
// signed with secret
func NewIdentityMiddleware(secret string) *IdentityMiddleware {
	return &IdentityMiddleware{secret: []byte(secret)}
}

// Identify attaches the CurrentUser to the request context. Requests
// without a token continue as anonymous; requests with a bad token are
// rejected.
// Supports "Authorization: Bearer <token>" and, for WebSocket upgrades,
// an access_token query parameter.
func (m *IdentityMiddleware) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := extractToken(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.parse(raw)
		if err != nil {
			slog.Warn("invalid access token", "error", err, "remote_addr", r.RemoteAddr)
			respondError(w, http.StatusUnauthorized, "invalid_token", "the provided access token is not valid")
			return
		}

		slog.Debug("identified request", "user_id", user.ID, "role", user.Role)

		ctx := ContextWithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser rejects anonymous requests
func (m *IdentityMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()).Anonymous() {
			respondError(w, http.StatusUnauthorized, "login_required", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *IdentityMiddleware) parse(raw string) (models.CurrentUser, error) {
	var claims IdentityClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.CurrentUser{}, err
	}

	role := claims.Role
	if role == "" {
		role = models.RoleUser
	}

	return models.CurrentUser{
		ID:    models.ID(claims.Subject),
		Role:  role,
		Name:  claims.Name,
		Email: claims.Email,
		Token: raw,
	}, nil
}

// extractToken reads the bearer token from the request
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}
