package portalauth

import (
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/portalauth/attempt"
	"github.com/MrEthical07/portalauth/password"
)

// Builder assembles a Service. A Builder is single use.
type Builder struct {
	security SecurityConfig

	repo     Repository
	limiter  attempt.Limiter
	hasher   password.Hasher
	tokens   TokenIssuer
	notifier PasswordNotifier
	audit    AuditSink
	recorder Recorder
	log      logrus.FieldLogger
	now      func() time.Time

	built bool
}

// New starts a Builder.
func New() *Builder {
	return &Builder{}
}

func (b *Builder) WithSecurity(cfg SecurityConfig) *Builder {
	b.security = cfg
	return b
}

func (b *Builder) WithRepository(repo Repository) *Builder {
	b.repo = repo
	return b
}

func (b *Builder) WithLimiter(l attempt.Limiter) *Builder {
	b.limiter = l
	return b
}

func (b *Builder) WithHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithTokenIssuer(t TokenIssuer) *Builder {
	b.tokens = t
	return b
}

func (b *Builder) WithNotifier(n PasswordNotifier) *Builder {
	b.notifier = n
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.audit = sink
	return b
}

func (b *Builder) WithRecorder(r Recorder) *Builder {
	b.recorder = r
	return b
}

func (b *Builder) WithLogger(l logrus.FieldLogger) *Builder {
	b.log = l
	return b
}

// WithClock overrides time.Now for join and last-login dates.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the collaborators and returns the Service.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	switch {
	case b.repo == nil:
		return nil, errors.New("repository required")
	case b.limiter == nil:
		return nil, errors.New("attempt limiter required")
	case b.tokens == nil:
		return nil, errors.New("token issuer required")
	}
	b.built = true

	s := &Service{
		repo:     b.repo,
		guard:    NewGuard(b.repo, b.limiter, b.security.KeepAttemptsWhileLocked),
		limiter:  b.limiter,
		hasher:   b.hasher,
		tokens:   b.tokens,
		notifier: b.notifier,
		audit:    b.audit,
		recorder: b.recorder,
		log:      b.log,
		now:      b.now,
	}
	if s.hasher == nil {
		h, err := password.NewBcrypt(b.security.BcryptCost)
		if err != nil {
			return nil, err
		}
		s.hasher = h
	}
	if s.notifier == nil {
		s.notifier = noopNotifier{}
	}
	if s.audit == nil {
		s.audit = NoOpSink{}
	}
	if s.recorder == nil {
		s.recorder = noopRecorder{}
	}
	if s.log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		s.log = discard
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}
