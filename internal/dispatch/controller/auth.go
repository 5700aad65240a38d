package controller

import (
	"fmt"
	"strings"

	appErr "rivoj/pkg/errors"
	"rivoj/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AdminAuth validates the bearer JWT on admin routes and requires an admin
// role claim.
func AdminAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := extractBearerToken(c.GetHeader("Authorization"))
		if tokenStr == "" {
			response.AbortWithErrorCode(c, appErr.Unauthorized, "missing bearer token")
			return
		}
		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			response.AbortWithErrorCode(c, appErr.Unauthorized, "invalid token")
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			response.AbortWithErrorCode(c, appErr.Unauthorized, "invalid token claims")
			return
		}
		role, _ := claims["role"].(string)
		if !isAdminRole(role) {
			response.AbortWithErrorCode(c, appErr.Forbidden, "insufficient role")
			return
		}
		if sub, ok := claims["sub"].(string); ok {
			c.Set("user_id", sub)
		}
		c.Next()
	}
}

func extractBearerToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func isAdminRole(role string) bool {
	return strings.EqualFold(role, "admin") || strings.EqualFold(role, "super_admin")
}
