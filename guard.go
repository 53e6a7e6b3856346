package portalauth

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrEthical07/portalauth/attempt"
)

// Guard holds the account-state rules applied around login and user edits.
type Guard struct {
	repo    Repository
	limiter attempt.Limiter

	// keepWhileLocked stops a locked lookup from clearing the attempt count.
	keepWhileLocked bool
}

// NewGuard builds a Guard. With keepAttemptsWhileLocked false a locked
// account's attempt record is evicted each time it is looked up.
func NewGuard(repo Repository, limiter attempt.Limiter, keepAttemptsWhileLocked bool) *Guard {
	return &Guard{repo: repo, limiter: limiter, keepWhileLocked: keepAttemptsWhileLocked}
}

// ValidateLoginAttempt updates u.NotLocked from the attempt limiter:
//
//   - not locked and over the limit: u becomes locked
//   - not locked and under the limit: unchanged
//   - locked: the attempt record is evicted
//
// The caller persists u.
func (g *Guard) ValidateLoginAttempt(ctx context.Context, u *User) error {
	if !u.NotLocked {
		if g.keepWhileLocked {
			return nil
		}
		return g.limiter.Evict(ctx, u.Username)
	}

	exceeded, err := g.limiter.HasExceededLimit(ctx, u.Username)
	if err != nil {
		return err
	}
	if exceeded {
		u.NotLocked = false
	}
	return nil
}

// ValidateNewUsernameAndEmail checks that newUsername and newEmail are free.
//
// With a blank currentUsername (registration) any existing owner is a
// conflict and the result is nil. Otherwise the current user is resolved
// and returned, and only owners with a different ID conflict.
func (g *Guard) ValidateNewUsernameAndEmail(ctx context.Context, currentUsername, newUsername, newEmail string) (*User, error) {
	byUsername, err := g.repo.FindByUsername(ctx, newUsername)
	if err != nil {
		return nil, err
	}
	byEmail, err := g.repo.FindByEmail(ctx, newEmail)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(currentUsername) == "" {
		if byUsername != nil {
			return nil, ErrUsernameExists
		}
		if byEmail != nil {
			return nil, ErrEmailExists
		}
		return nil, nil
	}

	current, err := g.repo.FindByUsername(ctx, currentUsername)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("%w %s", ErrUserNotFound, currentUsername)
	}
	if byUsername != nil && byUsername.ID != current.ID {
		return nil, ErrUsernameExists
	}
	if byEmail != nil && byEmail.ID != current.ID {
		return nil, ErrEmailExists
	}
	return current, nil
}
