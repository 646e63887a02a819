package identity

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Codec signs and verifies claim bearing tokens
type Codec interface {
	Issue(claims *TokenClaims, ttl time.Duration) (string, error)
	Verify(token string) (*TokenClaims, error)
}

// FederatedIdentity is the verified subset of an external identity token
type FederatedIdentity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	DisplayName   string
}

// IdentityVerifier checks identity tokens issued by an external provider.
// Implementations own any key distribution lookups.
type IdentityVerifier interface {
	Verify(ctx context.Context, rawToken, audience string) (*FederatedIdentity, error)
}

// NotificationKind selects the message template a Notifier renders
type NotificationKind string

const (
	NotificationInvitation    NotificationKind = "invitation"
	NotificationPasswordReset NotificationKind = "password_reset"
)

// Notification is the payload handed to a Notifier
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	Recipient string           `json:"recipient"`
	Username  string           `json:"username,omitempty"`
	Token     string           `json:"token"`
}

// Notifier delivers invitation and reset tokens. Delivery is best-effort,
// a failure never revokes the issued token.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	if f == nil {
		return nil
	}
	return f(ctx, n)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Notification) error { return nil }

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] IDENTITY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] IDENTITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] IDENTITY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] IDENTITY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
