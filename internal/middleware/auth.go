package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// Context keys set by Auth.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// AccessClaims is the payload of an access token issued by the auth service.
type AccessClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// UserLookup resolves the principal named in a token.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

var authLogger = logging.NewLoggerV2("auth-middleware")

// Auth verifies the access token from the named cookie or a Bearer header and
// loads the caller's role.
func Auth(secret, cookieName string, users UserLookup) gin.HandlerFunc {
	key := []byte(secret)

	return func(c *gin.Context) {
		raw := tokenFromRequest(c, cookieName)
		if raw == "" {
			abort(c, http.StatusUnauthorized, apperrors.KindUnauthorized, "Unauthorized - No access token provided")
			return
		}

		claims := &AccessClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			msg := "Unauthorized - Invalid access token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "Unauthorized - Access token expired"
			}
			abort(c, http.StatusUnauthorized, apperrors.KindUnauthorized, msg)
			return
		}
		if claims.UserID == "" {
			abort(c, http.StatusUnauthorized, apperrors.KindUnauthorized, "Unauthorized - Invalid access token")
			return
		}

		user, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				abort(c, http.StatusUnauthorized, apperrors.KindUnauthorized, "Unauthorized - User not found")
				return
			}
			authLogger.Error("Failed to load user", logging.Fields{
				"user_id": claims.UserID,
				"error":   err.Error(),
			})
			abort(c, http.StatusInternalServerError, apperrors.KindInternal, "internal server error")
			return
		}

		c.Set(ContextUserID, user.ID)
		c.Set(ContextRole, string(user.Role))
		c.Next()
	}
}

// AdminOnly rejects callers without the admin role. It must run after Auth.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextRole) != string(models.RoleAdmin) {
			abort(c, http.StatusForbidden, apperrors.KindForbidden, "Forbidden - Admin access only")
			return
		}
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context, cookieName string) string {
	if token, err := c.Cookie(cookieName); err == nil && token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

func abort(c *gin.Context, status int, kind apperrors.Kind, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": msg,
		"kind":  kind,
	})
}
