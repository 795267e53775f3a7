package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Kind classifies an access-control failure. Kinds are stable strings so
// clients can decide between re-authentication, a permissions error, or a bug
// without parsing messages.
type Kind string

const (
	KindUnauthenticated      Kind = "unauthenticated"
	KindForbidden            Kind = "forbidden"
	KindSecondFactorRequired Kind = "second_factor_required"
	KindSecondFactorInvalid  Kind = "second_factor_invalid"
	KindConfiguration        Kind = "configuration_error"
	KindInternal             Kind = "internal"
)

// Reason narrows KindUnauthenticated so clients can tell "prompt re-login"
// (expired) apart from "discard the token entirely" (invalid).
type Reason string

const (
	ReasonTokenMissing Reason = "token_missing"
	ReasonTokenInvalid Reason = "token_invalid"
	ReasonTokenExpired Reason = "token_expired"
	ReasonUserNotFound Reason = "user_not_found"
)

// AuthError is the failure currency of the access-control core. Every gate
// failure is terminal for the request; retries are a caller decision.
type AuthError struct {
	Kind    Kind
	Reason  Reason
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause.
func (e *AuthError) Unwrap() error { return e.Err }

// Unauthenticated builds an authentication failure with a stable reason.
func Unauthenticated(reason Reason, message string) *AuthError {
	return &AuthError{Kind: KindUnauthenticated, Reason: reason, Message: message}
}

// Forbidden builds an authorization failure for an authenticated identity.
func Forbidden(message string) *AuthError {
	return &AuthError{Kind: KindForbidden, Message: message}
}

// SecondFactorRequired signals an outstanding 2FA challenge.
func SecondFactorRequired(message string) *AuthError {
	return &AuthError{Kind: KindSecondFactorRequired, Message: message}
}

// SecondFactorInvalid signals a rejected 2FA code. The message must not leak
// whether the code was wrong, expired, or already consumed.
func SecondFactorInvalid() *AuthError {
	return &AuthError{Kind: KindSecondFactorInvalid, Message: "invalid code"}
}

// Configuration marks a server-side misconfiguration. Fails closed and must
// never be reported to the client as Forbidden.
func Configuration(message string) *AuthError {
	return &AuthError{Kind: KindConfiguration, Message: message}
}

// Internal wraps an unexpected failure (datastore down, signing error).
// Reporting these as unauthenticated would mislead a healthy client into
// re-authenticating, so they carry their own kind.
func Internal(message string, err error) *AuthError {
	return &AuthError{Kind: KindInternal, Message: message, Err: err}
}

// KindOf extracts the failure kind; unknown errors map to KindInternal.
func KindOf(err error) Kind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// ReasonOf extracts the narrowed reason, if any.
func ReasonOf(err error) Reason {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return ""
}
