package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xaenox/botpanel/internal/identity"
	"go.uber.org/zap"
)

// operatorAuth verifies the bearer token and scopes the request context to
// the operator it names. Agent tokens are refused.
func (s *Server) operatorAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "authorization header required"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid authorization header format"})
			return
		}

		id, err := s.verifier.Verify(parts[1])
		if err != nil {
			s.logger.Debug("Rejected token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid or expired token"})
			return
		}
		if id.Role != identity.RoleOperator {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "operator token required"})
			return
		}

		c.Request = c.Request.WithContext(identity.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}
