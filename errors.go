package identity

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeValidation       = "VALIDATION_ERROR"
	TextCodeUserExists       = "USER_EXISTS"
	TextCodeInvalidToken     = "INVALID_TOKEN"
	TextCodeTokenExpired     = "TOKEN_EXPIRED"
	TextCodeAuthentication   = "AUTHENTICATION_FAILED"
	TextCodeUserNotFound     = "USER_NOT_FOUND"
	TextCodeFederatedAccount = "FEDERATED_ACCOUNT"
)

// AuthenticationReason values are stored in the error metadata under "reason"
const (
	ReasonNotFound = "not_found"
	ReasonMismatch = "mismatch"
	ReasonProvider = "provider"
)

// ErrConflict is returned when a username or email is already taken
var ErrConflict = goerrors.New("a user with that e-mail or username already exists", goerrors.CategoryConflict).
	WithCode(goerrors.CodeConflict).
	WithTextCode(TextCodeUserExists)

// ErrInvalidToken covers bad signatures, malformed tokens and token records
// that are missing, used or superseded
var ErrInvalidToken = goerrors.New("invalid token", goerrors.CategoryAuth).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeInvalidToken)

// ErrExpiredToken is returned when the signature is valid but the window elapsed
var ErrExpiredToken = goerrors.New("token expired", goerrors.CategoryAuth).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeTokenExpired)

// ErrUserNotFound is returned when a referenced user does not exist
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode(TextCodeUserNotFound)

// ErrFederatedAccount is returned when a password operation targets an
// account that only signs in through an identity provider
var ErrFederatedAccount = goerrors.New("user has logged in with an identity provider", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeFederatedAccount)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeValidation)

// ErrPasswordTooLong is returned when a password exceeds MaxPasswordBytes
var ErrPasswordTooLong = goerrors.New("password must be at most 72 bytes", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeValidation)

// NewAuthenticationError builds an AuthenticationError for the given reason
func NewAuthenticationError(reason string, extra ...map[string]any) *goerrors.Error {
	message := "authentication error"
	switch reason {
	case ReasonNotFound:
		message = "authentication error: user not found"
	case ReasonMismatch:
		message = "authentication error: password does not match"
	case ReasonProvider:
		message = "authentication error: identity token rejected"
	}

	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(goerrors.CodeUnauthorized).
		WithTextCode(TextCodeAuthentication).
		WithMetadata(authMetadata(reason, extra...))
}

func authMetadata(reason string, extra ...map[string]any) map[string]any {
	metadata := map[string]any{}
	for _, m := range extra {
		for k, v := range m {
			metadata[k] = v
		}
	}
	metadata["reason"] = reason
	return metadata
}

func invalidToken(cause error, metadata map[string]any) *goerrors.Error {
	err := ErrInvalidToken.Clone()
	err.Source = cause
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

func expiredToken(metadata map[string]any) *goerrors.Error {
	err := ErrExpiredToken.Clone()
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

func userNotFound(metadata map[string]any) *goerrors.Error {
	err := ErrUserNotFound.Clone()
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

func conflict(metadata map[string]any) *goerrors.Error {
	err := ErrConflict.Clone()
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// IsValidation reports malformed input errors
func IsValidation(err error) bool {
	return hasTextCode(err, TextCodeValidation)
}

// IsConflict reports duplicate username or email errors
func IsConflict(err error) bool {
	return hasTextCode(err, TextCodeUserExists)
}

// IsInvalidToken reports token errors. Expired tokens are a kind of
// invalid token and also match.
func IsInvalidToken(err error) bool {
	return hasTextCode(err, TextCodeInvalidToken) || hasTextCode(err, TextCodeTokenExpired)
}

// IsExpiredToken reports tokens whose validity window elapsed
func IsExpiredToken(err error) bool {
	return hasTextCode(err, TextCodeTokenExpired)
}

// IsAuthentication reports failed credential checks
func IsAuthentication(err error) bool {
	return hasTextCode(err, TextCodeAuthentication)
}

// IsNotFound reports missing users
func IsNotFound(err error) bool {
	return hasTextCode(err, TextCodeUserNotFound)
}

// IsFederatedAccount reports password operations on provider-only accounts
func IsFederatedAccount(err error) bool {
	return hasTextCode(err, TextCodeFederatedAccount)
}

// AuthenticationReason returns the reason attached to an AuthenticationError
func AuthenticationReason(err error) string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.TextCode != TextCodeAuthentication {
		return ""
	}
	if reason, ok := richErr.Metadata["reason"].(string); ok {
		return reason
	}
	return ""
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}

// asRichError keeps typed errors intact and wraps anything else as internal
func asRichError(err error, message string) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, message)
}
