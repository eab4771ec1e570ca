package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const actorContextKey = "actor"

// Actor identifies the authenticated caller of a request.
type Actor struct {
	ID    uuid.UUID
	Email string
	Name  string
}

// Middleware extracts the actor identity from a bearer token.
// Full session management lives in the identity service; this only
// validates the token signature and lifts the claims into the context.
func Middleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			return
		}

		actor := Actor{}
		if sub, _ := claims["sub"].(string); sub != "" {
			if id, err := uuid.Parse(sub); err == nil {
				actor.ID = id
			}
		}
		actor.Email, _ = claims["email"].(string)
		actor.Name, _ = claims["name"].(string)

		if actor.Email == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token missing email claim"})
			return
		}

		c.Set(actorContextKey, actor)
		c.Next()
	}
}

// ActorFromContext returns the authenticated actor set by Middleware.
func ActorFromContext(c *gin.Context) (Actor, bool) {
	v, exists := c.Get(actorContextKey)
	if !exists {
		return Actor{}, false
	}
	actor, ok := v.(Actor)
	return actor, ok
}
