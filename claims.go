package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPurpose binds a token to the flow that minted it
type TokenPurpose = string

const (
	PurposeSession       TokenPurpose = "session"
	PurposeInvitation    TokenPurpose = "invitation"
	PurposePasswordReset TokenPurpose = "password_reset"
)

// TokenClaims is the claim bag carried by every token the codec signs
type TokenClaims struct {
	jwt.RegisteredClaims
	UID      string `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Purpose  string `json:"purpose,omitempty"`
}

// UserID returns the user ID
func (c *TokenClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject
}

// Expires returns the expiration time, zero when the token never expires
func (c *TokenClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *TokenClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// SessionClaims builds the claims of a session token for the given user
func SessionClaims(user *User) *TokenClaims {
	return &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: user.ID.String(),
		},
		UID:      user.ID.String(),
		Username: user.Username,
		Email:    user.Email,
		Purpose:  PurposeSession,
	}
}
