package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model. Accounts created through an identity provider
// have no password hash and may have no username.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Username      string    `bun:"username,nullzero,unique" json:"username,omitempty"`
	Email         string    `bun:"email,notnull,unique" json:"email"`
	PasswordHash  string    `bun:"password_hash,nullzero" json:"-"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// HasPassword reports whether the user can sign in with a local password
func (u *User) HasPassword() bool {
	return u != nil && u.PasswordHash != ""
}

// OAuthLinked reports whether the account is federated only
func (u *User) OAuthLinked() bool {
	return u != nil && u.PasswordHash == ""
}

// Public returns the view of the user that is safe to hand to callers
func (u *User) Public() PublicUser {
	if u == nil {
		return PublicUser{}
	}
	return PublicUser{
		ID:       u.ID.String(),
		Username: u.Username,
		Email:    u.Email,
	}
}

// PublicUser never carries the password hash
type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Invitation lets one email address complete registration. There is at
// most one row per email.
type Invitation struct {
	bun.BaseModel `bun:"table:invitations,alias:inv"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Email         string     `bun:"email,notnull,unique" json:"email"`
	Token         string     `bun:"token,notnull,unique" json:"token"`
	ExpireAt      *time.Time `bun:"expire_at,nullzero" json:"expire_at,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// PasswordReset lets one username set a new password until ExpireAt.
// There is at most one row per username.
type PasswordReset struct {
	bun.BaseModel `bun:"table:password_resets,alias:pwdr"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Username      string    `bun:"username,notnull,unique" json:"username"`
	Email         string    `bun:"email,notnull" json:"email"`
	Token         string    `bun:"token,notnull,unique" json:"token"`
	ExpireAt      time.Time `bun:"expire_at,notnull" json:"expire_at"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// IsExpired reports whether the reset window elapsed at the given instant
func (r *PasswordReset) IsExpired(now time.Time) bool {
	return now.After(r.ExpireAt)
}
