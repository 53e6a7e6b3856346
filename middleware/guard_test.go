package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	authed := WithSecurityContext(context.Background(), SecurityContext{Subject: "alice", Authorities: []string{"user:read"}})

	cases := []struct {
		name        string
		ctx         context.Context
		authorities []string
		want        error
	}{
		{"anonymous", context.Background(), nil, ErrUnauthenticated},
		{"rejected", clearSecurityContext(context.Background()), nil, ErrTokenUnverified},
		{"authenticated", authed, nil, nil},
		{"has authority", authed, []string{"user:delete", "user:read"}, nil},
		{"missing authority", authed, []string{"user:delete"}, ErrForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Check(tc.ctx, tc.authorities...)
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestRequireAuthorityResponses(t *testing.T) {
	f, _, codec := newTestFilter(t)
	reader, err := codec.Issue("alice", []string{"user:read"})
	require.NoError(t, err)
	deleter, err := codec.Issue("root", []string{"user:read", "user:delete"})
	require.NoError(t, err)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := f.Handler(RequireAuthority(nil, "user:delete")(ok))

	cases := []struct {
		header string
		status int
		body   string
	}{
		{"", http.StatusUnauthorized, MessageLoginRequired},
		{"Bearer tampered.token.value", http.StatusUnauthorized, MessageTokenUnverified},
		{"Bearer " + reader, http.StatusForbidden, MessagePermissionDenied},
		{"Bearer " + deleter, http.StatusNoContent, ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodDelete, "/user/delete/1", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, tc.status, rec.Code, tc.header)
		assert.Contains(t, rec.Body.String(), tc.body)
	}
}

func TestRequireAuthenticatedUsesDenyFunc(t *testing.T) {
	var gotStatus int
	var gotMsg string
	deny := func(w http.ResponseWriter, _ *http.Request, status int, message string) {
		gotStatus, gotMsg = status, message
		w.WriteHeader(status)
	}
	h := RequireAuthenticated(deny)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler reached without identity")
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/user/list", nil))
	assert.Equal(t, http.StatusUnauthorized, gotStatus)
	assert.Equal(t, MessageLoginRequired, gotMsg)
}

func TestSecurityContextCopiesAuthorities(t *testing.T) {
	auths := []string{"user:read"}
	ctx := WithSecurityContext(context.Background(), SecurityContext{Subject: "a", Authorities: auths})
	auths[0] = "user:delete"

	sc, ok := FromContext(ctx)
	require.True(t, ok)
	assert.False(t, sc.HasAuthority("user:delete"))
}
