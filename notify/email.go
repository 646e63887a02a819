// Package notify delivers invitation and password reset tokens to users,
// either directly through Mailgun or as jobs on a RabbitMQ queue.
package notify

import (
	"fmt"
	"net/url"
	"strings"

	identity "github.com/goliatone/go-identity"
	goerrors "github.com/goliatone/go-errors"
)

// Template names used when a mail provider renders stored templates
const (
	TemplateInvitation    = "invitation"
	TemplatePasswordReset = "forgot_password"
)

// Email is a rendered notification. It doubles as the queue job payload.
type Email struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject,omitempty"`
	Text     string         `json:"text,omitempty"`
	HTML     string         `json:"html,omitempty"`
	Template string         `json:"template,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// Links builds the client facing URLs embedded in emails
type Links struct {
	ClientURL string
}

// ResetPasswordURL is the page where a reset token is redeemed
func (l Links) ResetPasswordURL(token string) string {
	q := url.Values{}
	q.Set("token", token)
	return strings.TrimRight(l.ClientURL, "/") + "/reset-password?" + q.Encode()
}

// InvitationURL is the registration page for an invited email
func (l Links) InvitationURL(token, email string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("email", email)
	return strings.TrimRight(l.ClientURL, "/") + "/register?" + q.Encode()
}

// Render turns a notification into an Email
func (l Links) Render(n identity.Notification) (Email, error) {
	if n.Recipient == "" {
		return Email{}, goerrors.New("notification has no recipient", goerrors.CategoryValidation).
			WithTextCode(identity.TextCodeValidation)
	}

	switch n.Kind {
	case identity.NotificationInvitation:
		link := l.InvitationURL(n.Token, n.Recipient)
		return Email{
			To:       n.Recipient,
			Subject:  "You have been invited",
			Text:     fmt.Sprintf("You have been invited to create an account.\n\nComplete your registration at %s\n", link),
			Template: TemplateInvitation,
			Data: map[string]any{
				"InvitationUrl": link,
			},
		}, nil
	case identity.NotificationPasswordReset:
		link := l.ResetPasswordURL(n.Token)
		return Email{
			To:       n.Recipient,
			Subject:  "Reset your password",
			Text:     fmt.Sprintf("Hi %s,\n\nReset your password at %s\n\nIf you did not request this you can ignore this email.\n", n.Username, link),
			Template: TemplatePasswordReset,
			Data: map[string]any{
				"Username":         n.Username,
				"ResetPasswordUrl": link,
			},
		}, nil
	default:
		return Email{}, goerrors.New("unknown notification kind", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"kind": string(n.Kind)})
	}
}
