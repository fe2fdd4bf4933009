package middleware

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/upb/site-control-plane/utils"
)

// ownerTokenHeader is the non-standard header accepted alongside the
// Authorization bearer form
const ownerTokenHeader = "X-Owner-Token"

// OwnerAuth authenticates the single owner credential. The presented token
// is accepted when it equals the configured secret (constant-time compare)
// or when it is an HS256 JWT signed with that secret.
type OwnerAuth struct {
	secret string
	logger *zap.Logger
}

// NewOwnerAuth creates an OwnerAuth middleware. An empty secret rejects
// every request, so a misconfigured deployment fails closed.
func NewOwnerAuth(secret string, logger *zap.Logger) *OwnerAuth {
	if secret == "" {
		logger.Warn("owner token not configured, all owner endpoints will reject")
	}
	return &OwnerAuth{
		secret: secret,
		logger: logger,
	}
}

// RequireOwner is a middleware that requires a valid owner credential.
// Requests failing the check never reach the handler.
func (m *OwnerAuth) RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := extractOwnerToken(r)
		if token == "" {
			m.logger.Warn("missing owner credential",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
			return
		}

		subject, err := m.validate(token)
		if err != nil {
			m.logger.Warn("owner credential rejected",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid owner credential")
			return
		}

		ctx = WithOwner(ctx, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validate checks the token against the shared secret, falling back to
// parsing it as an HS256 JWT signed with that secret
func (m *OwnerAuth) validate(token string) (string, error) {
	if m.secret == "" {
		return "", fmt.Errorf("owner authentication not configured")
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(m.secret)) == 1 {
		return "owner", nil
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(m.secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("token validation failed: %w", err)
	}
	if !parsed.Valid {
		return "", fmt.Errorf("token is not valid")
	}

	subject := "owner"
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		subject = sub
	}
	return subject, nil
}

// extractOwnerToken reads the credential from the Authorization header
// ("Bearer TOKEN") or the X-Owner-Token header. Authorization wins when
// both are present.
func extractOwnerToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return strings.TrimSpace(parts[1])
		}
	}
	return strings.TrimSpace(r.Header.Get(ownerTokenHeader))
}
