package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

const ContextKeySubject = "auth_subject"

// AuthMiddleware guards mutating routes with an HS256 bearer token. With no
// secret configured every request passes.
type AuthMiddleware struct {
	log    *logger.Logger
	secret []byte
}

func NewAuthMiddleware(log *logger.Logger, secret string) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), secret: []byte(strings.TrimSpace(secret))}
}

func (am *AuthMiddleware) Enabled() bool { return am != nil && len(am.secret) > 0 }

func (am *AuthMiddleware) RequireToken() gin.HandlerFunc {
	if !am.Enabled() {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "missing or invalid token", "code": "unauthorized"},
			})
			return
		}
		claims := jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
			return am.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			am.log.Debug("Rejected bearer token", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": err.Error(), "code": "unauthorized"},
			})
			return
		}
		if claims.Subject != "" {
			c.Set(ContextKeySubject, claims.Subject)
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
