package portalauth

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// AuditType names an account event.
type AuditType string

const (
	EventLoginSuccess   AuditType = "login_success"
	EventLoginFailure   AuditType = "login_failure"
	EventAccountLocked  AuditType = "account_locked"
	EventAttemptsReset  AuditType = "attempts_reset"
	EventUserRegistered AuditType = "user_registered"
	EventUserAdded      AuditType = "user_added"
	EventUserUpdated    AuditType = "user_updated"
	EventUserDeleted    AuditType = "user_deleted"
	EventPasswordReset  AuditType = "password_reset"
)

// AuditEvent records one account event. Reason is set only on failures.
type AuditEvent struct {
	Time     time.Time `json:"time"`
	Type     AuditType `json:"type"`
	Username string    `json:"username,omitempty"`
	ClientIP string    `json:"client_ip,omitempty"`
	Success  bool      `json:"success"`
	Reason   string    `json:"reason,omitempty"`
}

// AuditSink receives events synchronously from the request goroutine.
// Wrap slow sinks in an AsyncSink.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink hands events to a consumer goroutine. Emit blocks while the
// buffer is full unless ctx is done.
type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan AuditEvent, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// LogSink writes each event as one log entry at info level, or warn level
// for failures. Pair it with a JSON formatter for a line-per-event trail.
type LogSink struct {
	log logrus.FieldLogger
}

func NewLogSink(log logrus.FieldLogger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Emit(_ context.Context, event AuditEvent) {
	entry := s.log.WithFields(logrus.Fields{
		"audit":    string(event.Type),
		"username": event.Username,
		"success":  event.Success,
	}).WithTime(event.Time)
	if event.ClientIP != "" {
		entry = entry.WithField("client_ip", event.ClientIP)
	}
	if !event.Success {
		entry.WithField("reason", event.Reason).Warn("audit")
		return
	}
	entry.Info("audit")
}
