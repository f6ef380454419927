package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/gymstack/gymstack/internal/auth"
)

func newAuthRouter(t *testing.T) (*gin.Engine, *iauth.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret", Issuer: "gymstack-test"})
	require.NoError(t, err)

	router := gin.New()
	router.GET("/protected", Auth(jwt), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":   c.GetString(CtxUserIDKey),
			"member_id": c.GetString(CtxMemberIDKey),
		})
	})
	router.GET("/staff", Auth(jwt), RequireStaff(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router, jwt
}

func TestAuthRejectsMissingAndMalformedHeaders(t *testing.T) {
	router, _ := newAuthRouter(t)

	for _, header := range []string{"", "Basic abc", "Bearer", "Bearer   "} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestAuthAcceptsValidToken(t *testing.T) {
	router, jwt := newAuthRouter(t)

	token, err := jwt.GenerateAccessToken(iauth.AccessTokenInput{
		UserID:   "user-1",
		Role:     iauth.RoleMember,
		MemberID: "member-1",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "member-1")
}

func TestRequireStaffBlocksMembers(t *testing.T) {
	router, jwt := newAuthRouter(t)

	memberToken, err := jwt.GenerateAccessToken(iauth.AccessTokenInput{
		UserID: "user-1", Role: iauth.RoleMember, MemberID: "member-1",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/staff", nil)
	req.Header.Set("Authorization", "Bearer "+memberToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	staffToken, err := jwt.GenerateAccessToken(iauth.AccessTokenInput{
		UserID: "user-2", Role: iauth.RoleStaff,
	})
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/staff", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}
