package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                          "/",
		"/user/login":               "/user/login",
		"/user/find/alice":          "/user/find/:username",
		"/user/find/":               "/user/find/",
		"/user/delete/01J0":         "/user/delete/:id",
		"/user/resetPassword/a@b.c": "/user/resetPassword/:email",
		"/user/list?page=2":         "/user/list",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestCounters(t *testing.T) {
	c := New()
	c.ObserveVerification("authenticated")
	c.ObserveVerification("authenticated")
	c.ObserveVerification("rejected")
	c.ObserveLogin("success")
	c.ObserveLockout()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.verifications.WithLabelValues("authenticated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.verifications.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.logins.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.lockouts))
}

func TestCacheSizeGauge(t *testing.T) {
	c := New()
	size := 3
	c.TrackCacheSize(func() int { return size })

	expected := `
# HELP portal_attempt_cache_entries Identities currently tracked by the in-process attempt limiter.
# TYPE portal_attempt_cache_entries gauge
portal_attempt_cache_entries 3
`
	require.NoError(t, testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "portal_attempt_cache_entries"))
}

func TestInstrumentAndHandler(t *testing.T) {
	c := New()
	h := c.Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/user/find/alice", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("GET", "/user/find/:username", "418")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.httpInFlight))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "portal_http_requests_total")
}
