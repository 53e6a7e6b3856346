package middleware

import (
	"context"
	"slices"
)

// SecurityContext is the identity a request carries once its bearer token
// has verified.
type SecurityContext struct {
	Subject     string
	Authorities []string
}

// HasAuthority reports whether sc grants any of the given authorities.
func (sc SecurityContext) HasAuthority(authorities ...string) bool {
	for _, a := range authorities {
		if slices.Contains(sc.Authorities, a) {
			return true
		}
	}
	return false
}

type securityContextKey struct{}

type requestState struct {
	security *SecurityContext
	rejected bool
}

// WithSecurityContext returns a copy of ctx carrying sc.
func WithSecurityContext(ctx context.Context, sc SecurityContext) context.Context {
	sc.Authorities = slices.Clone(sc.Authorities)
	return context.WithValue(ctx, securityContextKey{}, &requestState{security: &sc})
}

// FromContext returns the security context set by a [Filter], if any.
func FromContext(ctx context.Context) (SecurityContext, bool) {
	st, ok := ctx.Value(securityContextKey{}).(*requestState)
	if !ok || st.security == nil {
		return SecurityContext{}, false
	}
	return *st.security, true
}

// VerificationFailed reports whether the request presented a bearer token
// that was rejected.
func VerificationFailed(ctx context.Context) bool {
	st, ok := ctx.Value(securityContextKey{}).(*requestState)
	return ok && st.rejected
}

// clearSecurityContext shadows any security context in ctx and marks the
// request as having failed verification.
func clearSecurityContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, securityContextKey{}, &requestState{rejected: true})
}
