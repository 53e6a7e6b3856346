package ginauth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/portalauth/jwt"
	"github.com/MrEthical07/portalauth/middleware"
)

func setup(t *testing.T) (*gin.Engine, *jwt.Manager, *bool) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	codec, err := jwt.NewManager(jwt.Config{
		Secret:   []byte("gin-adapter-test-secret-0123456789"),
		Issuer:   "Said App",
		Audience: "User Management Portal",
		Lifetime: time.Hour,
	})
	require.NoError(t, err)
	f, err := middleware.NewFilter(codec)
	require.NoError(t, err)

	reached := false
	r := gin.New()
	r.Use(Middleware(f))
	r.OPTIONS("/user/delete/:id", func(c *gin.Context) { reached = true })
	r.DELETE("/user/delete/:id", RequireAuthority("user:delete"), func(c *gin.Context) {
		sc, _ := SecurityContext(c)
		c.String(http.StatusOK, sc.Subject)
	})
	return r, codec, &reached
}

func TestGinPreflight(t *testing.T) {
	r, _, reached := setup(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/user/delete/1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, *reached)
}

func TestGinAccess(t *testing.T) {
	r, codec, _ := setup(t)
	reader, err := codec.Issue("alice", []string{"user:read"})
	require.NoError(t, err)
	admin, err := codec.Issue("root", []string{"user:delete"})
	require.NoError(t, err)

	cases := []struct {
		header string
		status int
		body   string
	}{
		{"", http.StatusUnauthorized, middleware.MessageLoginRequired},
		{"Bearer a.b.c", http.StatusUnauthorized, middleware.MessageTokenUnverified},
		{"Bearer " + reader, http.StatusForbidden, middleware.MessagePermissionDenied},
		{"Bearer " + admin, http.StatusOK, "root"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodDelete, "/user/delete/1", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, tc.status, rec.Code)
		assert.Contains(t, rec.Body.String(), tc.body)
	}
}
