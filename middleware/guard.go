package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Messages returned to clients on denial.
const (
	MessageLoginRequired    = "YOU NEED TO LOG IN TO ACCESS THIS PAGE!"
	MessageTokenUnverified  = "TOKEN CANNOT BE VERIFIED"
	MessagePermissionDenied = "YOU DO NOT HAVE PERMISSION TO ACCESS THIS PAGE!"
)

var (
	// ErrUnauthenticated means the request carries no security context.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrTokenUnverified means a bearer token was presented but rejected.
	ErrTokenUnverified = errors.New("token cannot be verified")
	// ErrForbidden means the identity lacks every required authority.
	ErrForbidden = errors.New("forbidden")
)

// Check decides access for ctx. With no authorities it only requires an
// authenticated identity; otherwise the identity must hold at least one.
func Check(ctx context.Context, authorities ...string) error {
	sc, ok := FromContext(ctx)
	if !ok {
		if VerificationFailed(ctx) {
			return ErrTokenUnverified
		}
		return ErrUnauthenticated
	}
	if len(authorities) > 0 && !sc.HasAuthority(authorities...) {
		return ErrForbidden
	}
	return nil
}

// Denial maps a Check error to the HTTP status and client message.
func Denial(err error) (int, string) {
	switch {
	case errors.Is(err, ErrTokenUnverified):
		return http.StatusUnauthorized, MessageTokenUnverified
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, MessagePermissionDenied
	default:
		return http.StatusUnauthorized, MessageLoginRequired
	}
}

// DenyFunc writes a denial response.
type DenyFunc func(w http.ResponseWriter, r *http.Request, status int, message string)

func defaultDeny(w http.ResponseWriter, _ *http.Request, status int, message string) {
	http.Error(w, message, status)
}

// RequireAuthenticated rejects requests without a security context.
func RequireAuthenticated(deny DenyFunc) func(http.Handler) http.Handler {
	return RequireAuthority(deny)
}

// RequireAuthority rejects requests whose identity holds none of authorities.
// A nil deny writes a plain-text body.
func RequireAuthority(deny DenyFunc, authorities ...string) func(http.Handler) http.Handler {
	if deny == nil {
		deny = defaultDeny
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := Check(r.Context(), authorities...); err != nil {
				status, msg := Denial(err)
				deny(w, r, status, msg)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
