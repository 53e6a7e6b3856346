package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/MrEthical07/portalauth/jwt"
)

// ErrNilVerifier is returned by NewFilter when no verifier is supplied.
var ErrNilVerifier = errors.New("middleware: nil token verifier")

// Verifier checks a raw bearer token. *jwt.Manager satisfies it.
type Verifier interface {
	Verify(token string) (*jwt.Verified, error)
}

// Recorder receives one observation per filtered request.
type Recorder interface {
	ObserveVerification(decision string)
}

// Decision is the outcome of filtering one request.
type Decision int

const (
	// DecisionAnonymous means no bearer credential was presented.
	DecisionAnonymous Decision = iota
	// DecisionPreflight means a CORS preflight was answered without authorization.
	DecisionPreflight
	// DecisionRejected means a bearer token was presented but not accepted.
	DecisionRejected
	// DecisionAuthenticated means the token verified and a SecurityContext was set.
	DecisionAuthenticated
)

func (d Decision) String() string {
	switch d {
	case DecisionPreflight:
		return "preflight"
	case DecisionRejected:
		return "rejected"
	case DecisionAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// Option customizes a Filter.
type Option func(*Filter)

// WithLogger sets the logger used for rejected tokens.
func WithLogger(l logrus.FieldLogger) Option {
	return func(f *Filter) {
		if l != nil {
			f.log = l
		}
	}
}

// WithTracer wraps every non-preflight pass in a span from t.
func WithTracer(t trace.Tracer) Option {
	return func(f *Filter) {
		if t != nil {
			f.tracer = t
		}
	}
}

// WithMetrics reports each decision to r.
func WithMetrics(r Recorder) Option {
	return func(f *Filter) {
		if r != nil {
			f.metrics = r
		}
	}
}

// Filter turns the Authorization header of a request into a SecurityContext.
// It never writes an error response itself; access decisions belong to
// RequireAuthenticated and RequireAuthority further down the chain.
type Filter struct {
	verifier Verifier
	log      logrus.FieldLogger
	tracer   trace.Tracer
	metrics  Recorder
}

type noopRecorder struct{}

func (noopRecorder) ObserveVerification(string) {}

// NewFilter builds a Filter around v.
func NewFilter(v Verifier, opts ...Option) (*Filter, error) {
	if v == nil {
		return nil, ErrNilVerifier
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	f := &Filter{
		verifier: v,
		log:      discard,
		tracer:   noop.NewTracerProvider().Tracer("portalauth/middleware"),
		metrics:  noopRecorder{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Resolve runs the filter state machine for a request with the given HTTP
// method and Authorization header value. The returned context is the one
// downstream handlers must see.
func (f *Filter) Resolve(ctx context.Context, method, authorization string) (context.Context, Decision) {
	if method == http.MethodOptions {
		f.metrics.ObserveVerification(DecisionPreflight.String())
		return ctx, DecisionPreflight
	}

	ctx, span := f.tracer.Start(ctx, "portalauth.filter")
	defer span.End()

	decision := DecisionAnonymous
	defer func() {
		span.SetAttributes(attribute.String("auth.decision", decision.String()))
		f.metrics.ObserveVerification(decision.String())
	}()

	token, ok := bearerToken(authorization)
	if !ok {
		return ctx, decision
	}

	if _, set := FromContext(ctx); set {
		f.log.Warn("security context already set, clearing")
		decision = DecisionRejected
		return clearSecurityContext(ctx), decision
	}

	verified, err := f.verifier.Verify(token)
	if err != nil {
		f.log.WithError(err).Debug("bearer token rejected")
		decision = DecisionRejected
		return clearSecurityContext(ctx), decision
	}

	decision = DecisionAuthenticated
	span.SetAttributes(attribute.String("auth.subject", verified.Subject))
	return WithSecurityContext(ctx, SecurityContext{
		Subject:     verified.Subject,
		Authorities: verified.Authorities,
	}), decision
}

// Handler is the net/http form of the filter. Preflight requests are
// answered with 200 and go no further.
func (f *Filter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, decision := f.Resolve(r.Context(), r.Method, r.Header.Get("Authorization"))
		if decision == DecisionPreflight {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
