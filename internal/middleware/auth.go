package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/gymstack/gymstack/internal/auth"
	"github.com/gymstack/gymstack/pkg/errors"
	"github.com/gymstack/gymstack/pkg/response"
)

const (
	CtxClaimsKey   = "authClaims"
	CtxUserIDKey   = "userID"
	CtxMemberIDKey = "memberID"
	CtxRoleKey     = "role"
)

// Auth enforces JWT authentication using the supplied JWT service.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		token := strings.TrimSpace(authz[7:])
		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxRoleKey, claims.Role)
		if claims.MemberID != "" {
			c.Set(CtxMemberIDKey, claims.MemberID)
		}

		c.Next()
	}
}

// IsStaff reports whether the authenticated token carries the staff role.
func IsStaff(c *gin.Context) bool {
	role, ok := c.Get(CtxRoleKey)
	return ok && role == iauth.RoleStaff
}

// RequireStaff rejects requests whose token does not carry the staff role.
// Opening and closing check-in sessions and managing classes is staff-only.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := c.Get(CtxRoleKey)
		if !ok || role != iauth.RoleStaff {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
