// Package identity is the identity core of an application: user accounts
// with local passwords or federated sign in, single use invitation tokens,
// and time limited password reset tokens.
//
// Tokens:
//   - TokenCodec signs HS256 claims carrying a purpose (session, invitation,
//     password_reset). A valid signature is necessary but not sufficient for
//     invitations and resets: the token must also match the live record.
//   - Issuing a new invitation for an email, or a new reset for a username,
//     supersedes the previous one through an atomic upsert.
//   - Redemption deletes the record with a conditional delete, so a token is
//     consumed at most once even under concurrent requests.
//
// Service:
//   - Service orchestrates Register, RegisterInvited, Authenticate,
//     AuthenticateFederated, ForgotPassword and ResetPassword over a
//     RepositoryManager. Delivery of tokens is delegated to a Notifier and
//     failures there are logged, never returned.
//
// Activity sinks:
//   - ActivitySink receives registration, login, invitation and password
//     reset events. Sinks run best-effort (errors are logged) so you can
//     forward to a database or queue without blocking authentication.
//
// Errors carry go-errors text codes; use IsConflict, IsInvalidToken,
// IsExpiredToken, IsAuthentication and friends to classify them.
package identity
