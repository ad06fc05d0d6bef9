package middleware

import (
	"errors"
	"net/http"
	"strings"

	"cinema-checkout/pkg/utils"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Claims carried by access tokens issued by the account service
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Auth validates a Bearer access token and puts user id + role into the context
func Auth(secret string, logger *zap.Logger) func(http.Handler) http.Handler {
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.ResponseUnauthorized(w, "Missing authorization token")
				return
			}

			raw, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || raw == "" {
				utils.ResponseUnauthorized(w, "Invalid token format. Use: Bearer <token>")
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				return key, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				if errors.Is(err, jwt.ErrTokenExpired) {
					utils.ResponseUnauthorized(w, "Token expired")
					return
				}
				logger.Warn("Invalid access token", zap.Error(err), zap.String("path", r.URL.Path))
				utils.ResponseUnauthorized(w, "Invalid or expired token")
				return
			}

			if claims.Subject == "" {
				utils.ResponseUnauthorized(w, "Token has no subject")
				return
			}

			role := claims.Role
			if role == "" {
				role = "customer"
			}

			ctx := utils.SetUserContext(r.Context(), claims.Subject, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Admin - middleware cek role admin
func Admin(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := utils.GetUserIDFromContext(r.Context())
			if !ok {
				utils.ResponseUnauthorized(w, "Authentication required")
				return
			}

			role, _ := utils.GetRoleFromContext(r.Context())
			if role != utils.RoleAdmin {
				logger.Warn("Admin check: non-admin access attempt",
					zap.String("user_id", userID),
					zap.String("path", r.URL.Path))
				utils.ResponseForbidden(w, "Admin access required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
