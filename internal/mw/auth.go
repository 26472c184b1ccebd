package mw

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by the auth middleware.
const (
	CtxUserID   = "userID"
	CtxSystemID = "systemID"
)

// Claims carries the caller identity embedded in the bearer token by the
// authentication provider.
type Claims struct {
	SystemID string `json:"systemId"`
	jwt.RegisteredClaims
}

// Auth validates the bearer token and stores the caller id and tenant system
// id on the request context. Websocket clients cannot set headers, so a
// token query parameter is accepted as a fallback.
func Auth(secret string) gin.HandlerFunc {
	keyFunc := func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}

	return func(c *gin.Context) {
		tokenString := ""
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			tokenString = strings.TrimPrefix(header, "Bearer ")
		} else {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, keyFunc,
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if claims.Subject == "" || claims.SystemID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token is missing caller or system id"})
			return
		}

		c.Set(CtxUserID, claims.Subject)
		c.Set(CtxSystemID, claims.SystemID)
		c.Next()
	}
}
