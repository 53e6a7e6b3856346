// Package ginauth adapts the authorization filter to Gin.
package ginauth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/portalauth/middleware"
)

// Middleware runs f on every request. Preflight requests are aborted with 200.
func Middleware(f *middleware.Filter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, decision := f.Resolve(c.Request.Context(), c.Request.Method, c.GetHeader("Authorization"))
		if decision == middleware.DecisionPreflight {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireAuthority aborts unless the caller holds one of authorities. With
// none given it only requires an authenticated caller.
func RequireAuthority(authorities ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := middleware.Check(c.Request.Context(), authorities...); err != nil {
			status, msg := middleware.Denial(err)
			c.AbortWithStatusJSON(status, gin.H{"httpStatusCode": status, "message": msg})
			return
		}
		c.Next()
	}
}

// SecurityContext returns the caller's identity, if authenticated.
func SecurityContext(c *gin.Context) (middleware.SecurityContext, bool) {
	return middleware.FromContext(c.Request.Context())
}
