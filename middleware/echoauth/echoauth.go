// Package echoauth adapts the authorization filter to Echo.
package echoauth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/MrEthical07/portalauth/middleware"
)

// Middleware runs f on every request. Preflight requests end with 200.
func Middleware(f *middleware.Filter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := c.Request()
			ctx, decision := f.Resolve(r.Context(), r.Method, r.Header.Get(echo.HeaderAuthorization))
			if decision == middleware.DecisionPreflight {
				return c.NoContent(http.StatusOK)
			}
			c.SetRequest(r.WithContext(ctx))
			return next(c)
		}
	}
}

// RequireAuthority rejects callers holding none of authorities.
func RequireAuthority(authorities ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := middleware.Check(c.Request().Context(), authorities...); err != nil {
				status, msg := middleware.Denial(err)
				return echo.NewHTTPError(status, msg)
			}
			return next(c)
		}
	}
}
