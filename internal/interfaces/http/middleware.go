package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/crestlinehotels/onboarding/internal/application/orchestrator"
)

const actorContextKey = "actor"

// authMiddleware resolves the bearer credential to an actor and rejects the
// request when verification fails. Role checks stay in the application layer;
// the middleware only establishes identity.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		bearer := strings.TrimPrefix(header, "Bearer ")
		if bearer == "" || bearer == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing bearer credential",
			})
			return
		}

		cred, err := s.verifier.Verify(c.Request.Context(), bearer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "invalid credential",
			})
			return
		}

		c.Set(actorContextKey, orchestrator.Actor{
			ID:   cred.ActorID,
			Role: cred.Role,
		})

		c.Next()
	}
}

// currentActor returns the actor established by authMiddleware.
func currentActor(c *gin.Context) orchestrator.Actor {
	if v, ok := c.Get(actorContextKey); ok {
		if actor, ok := v.(orchestrator.Actor); ok {
			return actor
		}
	}
	return orchestrator.Actor{}
}
