package portalauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/portalauth/attempt"
	"github.com/MrEthical07/portalauth/password"
	"github.com/MrEthical07/portalauth/permission"
)

const profileImagePath = "/user/image/profile/"

// Service runs the account flows of the portal. It is safe for concurrent use.
type Service struct {
	repo     Repository
	guard    *Guard
	limiter  attempt.Limiter
	hasher   password.Hasher
	tokens   TokenIssuer
	notifier PasswordNotifier
	audit    AuditSink
	recorder Recorder
	log      logrus.FieldLogger
	now      func() time.Time
}

// Guard exposes the account-state rules the service applies.
func (s *Service) Guard() *Guard { return s.guard }

func (s *Service) emit(ctx context.Context, eventType AuditType, username string, err error) {
	ev := AuditEvent{
		Time:     s.now().UTC(),
		Type:     eventType,
		Username: username,
		ClientIP: clientIPFromContext(ctx),
		Success:  err == nil,
	}
	if err != nil {
		ev.Reason = err.Error()
	}
	s.audit.Emit(ctx, ev)
}

// Login authenticates username with plain and returns the user and a fresh
// token. Failed password checks are counted per username; once the limit is
// reached the account is locked on its next lookup.
func (s *Service) Login(ctx context.Context, username, plain string) (*User, string, error) {
	u, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		s.recorder.ObserveLogin(LoginError)
		return nil, "", err
	}
	if u == nil {
		// Unknown names are not counted; they would only crowd real
		// accounts out of a bounded limiter.
		s.recorder.ObserveLogin(LoginBadCredentials)
		s.emit(ctx, EventLoginFailure, username, ErrBadCredentials)
		return nil, "", ErrBadCredentials
	}

	wasNotLocked := u.NotLocked
	if err := s.guard.ValidateLoginAttempt(ctx, u); err != nil {
		s.recorder.ObserveLogin(LoginError)
		return nil, "", err
	}
	switch {
	case wasNotLocked && !u.NotLocked:
		s.log.WithField("username", u.Username).Warn("account locked after repeated login failures")
		s.recorder.ObserveLockout()
		s.emit(ctx, EventAccountLocked, u.Username, nil)
	case !wasNotLocked && !s.guard.keepWhileLocked:
		s.emit(ctx, EventAttemptsReset, u.Username, nil)
	}

	now := s.now()
	u.LastLoginDateDisplay = u.LastLoginDate
	u.LastLoginDate = &now
	if err := s.repo.Save(ctx, u); err != nil {
		s.recorder.ObserveLogin(LoginError)
		return nil, "", err
	}

	if !u.NotLocked {
		s.recorder.ObserveLogin(LoginLocked)
		s.emit(ctx, EventLoginFailure, u.Username, ErrAccountLocked)
		return nil, "", ErrAccountLocked
	}
	if !u.Active {
		s.recorder.ObserveLogin(LoginDisabled)
		s.emit(ctx, EventLoginFailure, u.Username, ErrAccountDisabled)
		return nil, "", ErrAccountDisabled
	}

	ok, err := s.hasher.Verify(plain, u.PasswordHash)
	if err != nil {
		s.log.WithError(err).WithField("username", u.Username).Error("stored password hash unusable")
	}
	if !ok {
		return nil, "", s.loginFailed(ctx, u.Username)
	}

	if err := s.limiter.Evict(ctx, u.Username); err != nil {
		s.recorder.ObserveLogin(LoginError)
		return nil, "", err
	}
	token, err := s.tokens.Issue(u.Username, u.Authorities)
	if err != nil {
		s.recorder.ObserveLogin(LoginError)
		return nil, "", err
	}

	s.recorder.ObserveLogin(LoginSuccess)
	s.emit(ctx, EventLoginSuccess, u.Username, nil)
	return u, token, nil
}

func (s *Service) loginFailed(ctx context.Context, username string) error {
	if err := s.limiter.RecordFailure(ctx, username); err != nil {
		s.recorder.ObserveLogin(LoginError)
		return err
	}
	s.recorder.ObserveLogin(LoginBadCredentials)
	s.emit(ctx, EventLoginFailure, username, ErrBadCredentials)
	return ErrBadCredentials
}

// Register creates an active USER account with a generated password, which
// is passed to the notifier and never returned.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	u, err := s.create(ctx, in.FirstName, in.LastName, in.Username, in.Email, permission.RoleUser, true, true)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, EventUserRegistered, u.Username, nil)
	return u, nil
}

// AddUser creates an account with an explicit role and flags.
func (s *Service) AddUser(ctx context.Context, in UserInput) (*User, error) {
	role, err := permission.ParseRole(in.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	u, err := s.create(ctx, in.FirstName, in.LastName, in.Username, in.Email, role, in.Active, in.NotLocked)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, EventUserAdded, u.Username, nil)
	return u, nil
}

func (s *Service) create(ctx context.Context, first, last, username, email string, role permission.Role, active, notLocked bool) (*User, error) {
	username, email = strings.TrimSpace(username), strings.TrimSpace(email)
	if username == "" || email == "" {
		return nil, fmt.Errorf("%w: username and email are required", ErrInvalidInput)
	}
	if _, err := s.guard.ValidateNewUsernameAndEmail(ctx, "", username, email); err != nil {
		return nil, err
	}

	plain, err := password.Generate(password.GeneratedLength)
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return nil, err
	}

	u := &User{
		UserID:          uuid.NewString(),
		FirstName:       first,
		LastName:        last,
		Username:        username,
		Email:           email,
		PasswordHash:    hash,
		ProfileImageURL: profileImagePath + username,
		JoinDate:        s.now(),
		Role:            role,
		Authorities:     role.Authorities(),
		Active:          active,
		NotLocked:       notLocked,
	}
	if err := s.repo.Save(ctx, u); err != nil {
		return nil, err
	}
	s.notify(ctx, u, plain)
	return u, nil
}

func (s *Service) notify(ctx context.Context, u *User, plain string) {
	if err := s.notifier.SendNewPassword(ctx, u.FirstName, plain, u.Email); err != nil {
		s.log.WithError(err).WithField("username", u.Username).Error("password notification failed")
	}
}

// UpdateUser applies in to the account currently named currentUsername.
func (s *Service) UpdateUser(ctx context.Context, currentUsername string, in UserInput) (*User, error) {
	if strings.TrimSpace(currentUsername) == "" {
		return nil, fmt.Errorf("%w: current username is required", ErrInvalidInput)
	}
	in.Username, in.Email = strings.TrimSpace(in.Username), strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" {
		return nil, fmt.Errorf("%w: username and email are required", ErrInvalidInput)
	}
	role, err := permission.ParseRole(in.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	u, err := s.guard.ValidateNewUsernameAndEmail(ctx, currentUsername, in.Username, in.Email)
	if err != nil {
		return nil, err
	}

	oldUsername := u.Username
	wasLocked := !u.NotLocked
	u.FirstName = in.FirstName
	u.LastName = in.LastName
	u.Username = in.Username
	u.Email = in.Email
	u.Active = in.Active
	u.NotLocked = in.NotLocked
	u.Role = role
	u.Authorities = role.Authorities()
	if err := s.repo.Save(ctx, u); err != nil {
		return nil, err
	}
	if oldUsername != u.Username {
		// Counts are keyed by username; a rename must not leave one behind.
		if err := s.limiter.Evict(ctx, oldUsername); err != nil {
			return nil, err
		}
	}
	if wasLocked && u.NotLocked {
		// An administrator unlock starts the count over.
		if err := s.limiter.Evict(ctx, u.Username); err != nil {
			return nil, err
		}
	}
	s.emit(ctx, EventUserUpdated, u.Username, nil)
	return u, nil
}

// DeleteUser removes the account with storage key id.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return err
	}
	s.emit(ctx, EventUserDeleted, "", nil)
	return nil
}

// ResetPassword assigns a generated password to the account owning email.
func (s *Service) ResetPassword(ctx context.Context, email string) error {
	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("%w %s", ErrEmailNotFound, email)
	}

	plain, err := password.Generate(password.GeneratedLength)
	if err != nil {
		return err
	}
	if u.PasswordHash, err = s.hasher.Hash(plain); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, u); err != nil {
		return err
	}
	s.notify(ctx, u, plain)
	s.emit(ctx, EventPasswordReset, u.Username, nil)
	return nil
}

// FindByUsername returns the account or ErrUserNotFound.
func (s *Service) FindByUsername(ctx context.Context, username string) (*User, error) {
	u, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w %s", ErrUserNotFound, username)
	}
	return u, nil
}

// List returns every account.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.FindAll(ctx)
}

// IsClientError reports whether err is one of the account errors a caller
// can act on, as opposed to a storage or backend fault.
func IsClientError(err error) bool {
	for _, target := range []error{
		ErrUsernameExists, ErrEmailExists, ErrUserNotFound, ErrEmailNotFound,
		ErrBadCredentials, ErrAccountLocked, ErrAccountDisabled, ErrInvalidInput,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
