package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bbus-fleet/backend/internal/auth"
	"github.com/bbus-fleet/backend/pkg/response"
)

const (
	// ContextUserID is the key for the provider user id in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextOrganizationID is the key for the session's active organization, if any.
	ContextOrganizationID = "organization_id"
)

// Session returns a middleware that validates the session token and sets user claims in context.
func Session(verifier *auth.SessionVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := verifier.Verify(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired session")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID())
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextOrganizationID, claims.OrganizationID)
		c.Next()
	}
}

// UserID returns the authenticated user id, or "" outside a session.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
