package notify

import (
	"context"

	identity "github.com/goliatone/go-identity"
)

// Log writes the notification link to a logger. Meant for local setups
// without a mail provider.
type Log struct {
	logger identity.Logger
	links  Links
}

var _ identity.Notifier = (*Log)(nil)

func NewLog(logger identity.Logger, clientURL string) *Log {
	return &Log{logger: logger, links: Links{ClientURL: clientURL}}
}

func (l *Log) Notify(ctx context.Context, n identity.Notification) error {
	email, err := l.links.Render(n)
	if err != nil {
		return err
	}
	l.logger.Info("notification %s to %s: %s", n.Kind, email.To, email.Text)
	return nil
}
