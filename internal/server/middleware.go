package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const contextUserIDKey = "user_id"

// authMiddleware extracts and verifies the bearer token, putting the
// authenticated user id on the request context. Token issuance is the auth
// service's business; we only verify.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			respondProblem(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			c.Abort()
			return
		}
		userID, err := s.verifier.VerifyToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			respondProblem(c, http.StatusUnauthorized, "unauthorized", "invalid bearer token")
			c.Abort()
			return
		}
		c.Set(contextUserIDKey, userID)
		c.Next()
	}
}
