package notify

import (
	"context"
	"time"

	identity "github.com/goliatone/go-identity"
	goerrors "github.com/goliatone/go-errors"
	mg "github.com/mailgun/mailgun-go/v4"
)

// DefaultSendTimeout bounds a single Mailgun API call
const DefaultSendTimeout = 10 * time.Second

// Mailgun sends notifications through the Mailgun API
type Mailgun struct {
	client       *mg.MailgunImpl
	sender       string
	links        Links
	useTemplates bool
	timeout      time.Duration
	send         func(ctx context.Context, msg *mg.Message) (string, string, error)
}

var _ identity.Notifier = (*Mailgun)(nil)

// NewMailgun creates a notifier for domain. Links point at clientURL.
func NewMailgun(domain, apiKey, sender, clientURL string) *Mailgun {
	client := mg.NewMailgun(domain, apiKey)
	return &Mailgun{
		client:  client,
		sender:  sender,
		links:   Links{ClientURL: clientURL},
		timeout: DefaultSendTimeout,
		send:    client.Send,
	}
}

// WithTemplates sends stored Mailgun templates with template variables
// instead of the plain text body
func (m *Mailgun) WithTemplates() *Mailgun {
	m.useTemplates = true
	return m
}

// WithAPIBase points the client at another API region, e.g. mg.APIBaseEU
func (m *Mailgun) WithAPIBase(base string) *Mailgun {
	if base != "" {
		m.client.SetAPIBase(base)
	}
	return m
}

// Notify renders and sends n
func (m *Mailgun) Notify(ctx context.Context, n identity.Notification) error {
	email, err := m.links.Render(n)
	if err != nil {
		return err
	}

	msg := m.client.NewMessage(m.sender, email.Subject, email.Text, email.To)
	if email.HTML != "" {
		msg.SetHtml(email.HTML)
	}

	if m.useTemplates && email.Template != "" {
		msg.SetTemplate(email.Template)
		for k, v := range email.Data {
			if err := msg.AddTemplateVariable(k, v); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to set template variable")
			}
		}
	}

	c, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if _, _, err := m.send(c, msg); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "mailgun send failed").
			WithMetadata(map[string]any{"kind": string(n.Kind)})
	}

	return nil
}
