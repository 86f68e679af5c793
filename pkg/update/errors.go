package update

import (
	"errors"
	"fmt"
)

// Kind classifies an update failure. The values match the codes reported by
// the native modules so they can be passed through unchanged.
type Kind string

const (
	// KindNetwork indicates the transport to the store failed.
	KindNetwork Kind = "NETWORK_ERROR"
	// KindAppNotFound indicates the store returned no record for the package.
	KindAppNotFound Kind = "APP_NOT_FOUND"
	// KindRateLimited indicates the store answered with HTTP 429.
	KindRateLimited Kind = "RATE_LIMITED"
	// KindNotFromStore indicates the app was not installed from the Play Store.
	KindNotFromStore Kind = "NOT_FROM_PLAY_STORE"
	// KindStoreUnavailable indicates no Play Store is present on the device.
	KindStoreUnavailable Kind = "PLAY_STORE_NOT_AVAILABLE"
	// KindCheckFailed wraps unexpected failures of a version check.
	KindCheckFailed Kind = "CHECK_FAILED"
	// KindUpdateFailed wraps failures of an update flow.
	KindUpdateFailed Kind = "UPDATE_FAILED"
	// KindUpdateCancelled indicates the user cancelled the update flow.
	KindUpdateCancelled Kind = "UPDATE_CANCELLED"
	// KindUpdateNotAvailable indicates a flow was started with nothing to install.
	KindUpdateNotAvailable Kind = "UPDATE_NOT_AVAILABLE"
	// KindInvalidIdentifier indicates the package identifier is empty or malformed.
	KindInvalidIdentifier Kind = "INVALID_BUNDLE_ID"
	// KindInvalidURL indicates the lookup URL could not be built.
	KindInvalidURL Kind = "INVALID_URL"
	// KindUnknown covers platform mismatches and everything else.
	KindUnknown Kind = "UNKNOWN"
)

// Error is the only error type returned to host applications.
type Error struct {
	Kind    Kind   `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
	Cause   error  `json:"-" yaml:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates an error of the given kind.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates an error with a formatted message.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps cause with a kind and message.
func WrapError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// AsError returns err as an *Error. Typed errors anywhere in the chain are
// returned as-is; anything else is wrapped with the fallback kind, keeping
// the original message and cause. A nil err yields nil.
func AsError(err error, fallback Kind) *Error {
	if err == nil {
		return nil
	}
	var ue *Error
	if errors.As(err, &ue) {
		return ue
	}
	return &Error{Kind: fallback, Message: err.Error(), Cause: err}
}

// KindOf returns the kind of err, or "" when err carries no *Error.
func KindOf(err error) Kind {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return ""
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
