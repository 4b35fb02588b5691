package middleware

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinovia/hospital-api/internal/services"
	"github.com/clinovia/hospital-api/internal/utils"
)

// AuthMiddleware validates the Bearer token, rejects revoked tokens, and
// stashes the principal's id, role and hospital into the gin context for
// handlers to use.
func AuthMiddleware(secret []byte, tokens services.TokenStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := utils.ValidateJWT(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		if tokens != nil && claims.ID != "" {
			revoked, err := tokens.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				// Revocation store being down must not lock everyone out.
				log.Printf("Token revocation check failed: %v", err)
			} else if revoked {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token has been revoked"})
				return
			}
		}

		c.Set("userID", claims.UserID)
		c.Set("userRole", claims.Role)
		c.Set("userHospital", claims.Hospital)
		c.Set("tokenID", claims.ID)
		// A signed token without an exp claim still validates.
		if claims.ExpiresAt != nil {
			c.Set("tokenExpiresAt", claims.ExpiresAt.Time)
		} else {
			c.Set("tokenExpiresAt", time.Time{})
		}

		c.Next()
	}
}

// RequireRoles rejects callers whose role is not in the allow list. It runs
// after AuthMiddleware.
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		role, ok := c.Get("userRole")
		if !ok || !allowed[role.(string)] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient role for this operation"})
			return
		}
		c.Next()
	}
}
