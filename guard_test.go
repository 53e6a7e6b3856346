package portalauth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/abtime"

	"github.com/MrEthical07/portalauth"
	"github.com/MrEthical07/portalauth/attempt"
	"github.com/MrEthical07/portalauth/store/memory"
)

func newLimiter(t *testing.T) *attempt.Cache {
	t.Helper()
	c, err := attempt.NewCache(attempt.Options{Clock: abtime.NewManual()})
	require.NoError(t, err)
	return c
}

func TestValidateLoginAttemptTransitions(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name          string
		notLocked     bool
		failures      int
		keep          bool
		wantNotLocked bool
		wantAttempts  int
	}{
		{"under limit stays unlocked", true, 4, false, true, 4},
		{"at limit locks", true, 5, false, false, 5},
		{"locked lookup evicts", false, 5, false, false, 0},
		{"locked lookup keeps count when configured", false, 5, true, false, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			limiter := newLimiter(t)
			guard := portalauth.NewGuard(memory.New(), limiter, tc.keep)
			for i := 0; i < tc.failures; i++ {
				require.NoError(t, limiter.RecordFailure(ctx, "alice"))
			}

			u := &portalauth.User{Username: "alice", NotLocked: tc.notLocked}
			require.NoError(t, guard.ValidateLoginAttempt(ctx, u))
			assert.Equal(t, tc.wantNotLocked, u.NotLocked)

			n, err := limiter.Attempts(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, tc.wantAttempts, n)
		})
	}
}

func TestValidateLoginAttemptIsIdempotentWhenUnlocked(t *testing.T) {
	ctx := context.Background()
	guard := portalauth.NewGuard(memory.New(), newLimiter(t), false)
	u := &portalauth.User{Username: "alice", NotLocked: true}

	for i := 0; i < 3; i++ {
		require.NoError(t, guard.ValidateLoginAttempt(ctx, u))
		assert.True(t, u.NotLocked)
	}
}

func TestValidateNewUsernameAndEmail(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	alice := &portalauth.User{Username: "alice", Email: "alice@example.com"}
	bob := &portalauth.User{Username: "bob", Email: "bob@example.com"}
	require.NoError(t, repo.Save(ctx, alice))
	require.NoError(t, repo.Save(ctx, bob))
	guard := portalauth.NewGuard(repo, newLimiter(t), false)

	t.Run("registration", func(t *testing.T) {
		_, err := guard.ValidateNewUsernameAndEmail(ctx, "", "alice", "new@example.com")
		require.ErrorIs(t, err, portalauth.ErrUsernameExists)

		_, err = guard.ValidateNewUsernameAndEmail(ctx, "", "carol", "bob@example.com")
		require.ErrorIs(t, err, portalauth.ErrEmailExists)

		// Username is checked first.
		_, err = guard.ValidateNewUsernameAndEmail(ctx, "", "alice", "bob@example.com")
		require.ErrorIs(t, err, portalauth.ErrUsernameExists)

		u, err := guard.ValidateNewUsernameAndEmail(ctx, "", "carol", "carol@example.com")
		require.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("update", func(t *testing.T) {
		u, err := guard.ValidateNewUsernameAndEmail(ctx, "alice", "alice", "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, u.ID)

		_, err = guard.ValidateNewUsernameAndEmail(ctx, "alice", "bob", "alice@example.com")
		require.ErrorIs(t, err, portalauth.ErrUsernameExists)

		_, err = guard.ValidateNewUsernameAndEmail(ctx, "alice", "alice2", "bob@example.com")
		require.ErrorIs(t, err, portalauth.ErrEmailExists)

		_, err = guard.ValidateNewUsernameAndEmail(ctx, "ghost", "ghost", "ghost@example.com")
		require.ErrorIs(t, err, portalauth.ErrUserNotFound)
		assert.Contains(t, err.Error(), "ghost")
	})
}
