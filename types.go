package portalauth

import (
	"context"
	"time"

	"github.com/MrEthical07/portalauth/permission"
)

// User is an account record as kept by a Repository.
type User struct {
	// ID is the storage key, assigned by the repository on first save.
	ID string `json:"id"`
	// UserID is the public identifier shown to administrators.
	UserID    string `json:"userId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	Email     string `json:"email"`

	PasswordHash string `json:"-"`

	ProfileImageURL      string     `json:"profileImageUrl"`
	LastLoginDate        *time.Time `json:"lastLoginDate,omitempty"`
	LastLoginDateDisplay *time.Time `json:"lastLoginDateDisplay,omitempty"`
	JoinDate             time.Time  `json:"joinDate"`

	Role        permission.Role `json:"role"`
	Authorities []string        `json:"authorities"`
	Active      bool            `json:"active"`
	NotLocked   bool            `json:"notLocked"`
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Authorities = append([]string(nil), u.Authorities...)
	if u.LastLoginDate != nil {
		t := *u.LastLoginDate
		c.LastLoginDate = &t
	}
	if u.LastLoginDateDisplay != nil {
		t := *u.LastLoginDateDisplay
		c.LastLoginDateDisplay = &t
	}
	return &c
}

// Repository persists users. The Find methods return (nil, nil) when
// nothing matches; DeleteByID returns ErrUserNotFound.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindAll(ctx context.Context) ([]User, error)
	Save(ctx context.Context, u *User) error
	DeleteByID(ctx context.Context, id string) error
}

// TokenIssuer signs a token for a subject. *jwt.Manager satisfies it.
type TokenIssuer interface {
	Issue(subject string, authorities []string) (string, error)
}

// PasswordNotifier delivers a generated password to the account owner.
type PasswordNotifier interface {
	SendNewPassword(ctx context.Context, firstName, password, email string) error
}

// NotifierFunc adapts a function to PasswordNotifier.
type NotifierFunc func(ctx context.Context, firstName, password, email string) error

func (f NotifierFunc) SendNewPassword(ctx context.Context, firstName, password, email string) error {
	return f(ctx, firstName, password, email)
}

type noopNotifier struct{}

func (noopNotifier) SendNewPassword(context.Context, string, string, string) error { return nil }

// Recorder receives login outcomes and lockout transitions.
type Recorder interface {
	ObserveLogin(outcome string)
	ObserveLockout()
}

type noopRecorder struct{}

func (noopRecorder) ObserveLogin(string) {}
func (noopRecorder) ObserveLockout()     {}

// Login outcomes passed to Recorder.
const (
	LoginSuccess        = "success"
	LoginBadCredentials = "bad_credentials"
	LoginLocked         = "locked"
	LoginDisabled       = "disabled"
	LoginError          = "error"
)

// RegisterInput is a self-service sign-up request.
type RegisterInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	Email     string `json:"email"`
}

// UserInput is an administrator's create or update request.
type UserInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Active    bool   `json:"active"`
	NotLocked bool   `json:"notLocked"`
}
