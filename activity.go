package identity

import (
	"context"
	"errors"
	"time"
)

// ActivityEventType names an audited identity action
type ActivityEventType string

const (
	ActivityEventUserRegistered         ActivityEventType = "auth.user.registered"
	ActivityEventUserDeleted            ActivityEventType = "auth.user.deleted"
	ActivityEventLoginSuccess           ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure           ActivityEventType = "auth.login.failure"
	ActivityEventSocialLogin            ActivityEventType = "auth.social.login"
	ActivityEventInvitationIssued       ActivityEventType = "auth.invitation.issued"
	ActivityEventInvitationRedeemed     ActivityEventType = "auth.invitation.redeemed"
	ActivityEventPasswordResetRequested ActivityEventType = "auth.password.reset_requested"
	ActivityEventPasswordResetSuccess   ActivityEventType = "auth.password.reset"
)

// ActorRef identifies who triggered an event
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent is what the service hands to an ActivitySink after a
// registration, login, invitation or reset step.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

func newActivityEvent(eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any, at time.Time) ActivityEvent {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return ActivityEvent{
		EventType:  eventType,
		Actor:      actor,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: at.UTC(),
	}
}

// ActivitySink receives activity events. Errors are logged by the caller
// and never fail the operation that produced the event.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc lets a plain function act as an ActivitySink
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// MultiActivitySink fans an event out to every sink and joins their errors
type MultiActivitySink []ActivitySink

func (m MultiActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error { return nil }

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

func userActor(user *User) ActorRef {
	if user == nil {
		return ActorRef{Type: "unknown"}
	}
	return ActorRef{ID: user.ID.String(), Type: "user"}
}
