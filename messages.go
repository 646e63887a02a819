package identity

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// RegisterUserMessage is the input of a direct registration
type RegisterUserMessage struct {
	Username string `json:"username" example:"johndoe"`
	Email    string `json:"email" example:"johndoe@example.com"`
	Password string `json:"password" example:"password123"`
}

func (m RegisterUserMessage) Type() string { return "user.register" }

// Validate will run validation rules
func (m RegisterUserMessage) Validate() error {
	return validate(func() error {
		return validation.ValidateStruct(&m,
			validation.Field(&m.Username, validation.Required, validation.Length(3, 64)),
			validation.Field(&m.Email, validation.Required, validation.Length(3, 254), is.Email),
			validation.Field(&m.Password, validation.Required, validation.Length(8, MaxPasswordBytes)),
		)
	}, "invalid registration payload")
}

// RegisterInvitedMessage registers a user with an invitation token
type RegisterInvitedMessage struct {
	RegisterUserMessage
	Token string `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI..."`
}

func (m RegisterInvitedMessage) Type() string { return "user.register_invited" }

// Validate will run validation rules
func (m RegisterInvitedMessage) Validate() error {
	if err := m.RegisterUserMessage.Validate(); err != nil {
		return err
	}
	return validate(func() error {
		return validation.ValidateStruct(&m,
			validation.Field(&m.Token, validation.Required),
		)
	}, "invalid registration payload")
}

// LoginMessage holds password credentials
type LoginMessage struct {
	Username string `json:"username" example:"johndoe"`
	Password string `json:"password" example:"password123"`
}

func (m LoginMessage) Type() string { return "user.authenticate" }

// Validate will run validation rules
func (m LoginMessage) Validate() error {
	return validate(func() error {
		return validation.ValidateStruct(&m,
			validation.Field(&m.Username, validation.Required),
			validation.Field(&m.Password, validation.Required),
		)
	}, "invalid login request payload")
}

// FederatedLoginMessage carries an identity token issued by a provider
type FederatedLoginMessage struct {
	Token string `json:"token" example:"eyJhbGciOiJSUzI1NiIsInR5cCI..."`
}

func (m FederatedLoginMessage) Type() string { return "user.authenticate_federated" }

// Validate will run validation rules
func (m FederatedLoginMessage) Validate() error {
	return validate(func() error {
		return validation.ValidateStruct(&m,
			validation.Field(&m.Token, validation.Required),
		)
	}, "invalid federated login payload")
}

// InviteUserMessage requests an invitation for an email address
type InviteUserMessage struct {
	Email string `json:"email" example:"johndoe@example.com"`
}

func (m InviteUserMessage) Type() string { return "user.invite" }

// Validate will run validation rules
func (m InviteUserMessage) Validate() error {
	return validate(func() error {
		return validation.ValidateStruct(&m,
			validation.Field(&m.Email, validation.Required, validation.Length(3, 254), is.Email),
		)
	}, "invalid invitation payload")
}

// ForgotPasswordMessage requests a password reset
type ForgotPasswordMessage struct {
	Username string `json:"username" example:"johndoe"`
}

func (m ForgotPasswordMessage) Type() string { return "user.password_reset" }

// Validate will run validation rules
func (m ForgotPasswordMessage) Validate() error {
	return validate(func() error {
		return validation.ValidateStruct(&m,
			validation.Field(&m.Username, validation.Required),
		)
	}, "invalid password reset request payload")
}

// ResetPasswordMessage finalizes a password reset
type ResetPasswordMessage struct {
	Token    string `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI..."`
	Password string `json:"password" example:"newpassword123"`
}

func (m ResetPasswordMessage) Type() string { return "user.password_reset_finalize" }

// Validate will run validation rules
func (m ResetPasswordMessage) Validate() error {
	return validate(func() error {
		return validation.ValidateStruct(&m,
			validation.Field(&m.Token, validation.Required),
			validation.Field(&m.Password, validation.Required, validation.Length(8, MaxPasswordBytes)),
		)
	}, "invalid password reset payload")
}

func validate(fn func() error, message string) error {
	if err := goerrors.ValidateWithOzzo(fn, message); err != nil {
		return err.WithTextCode(TextCodeValidation)
	}
	return nil
}
