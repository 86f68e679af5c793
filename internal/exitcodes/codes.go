package exitcodes

import (
	"errors"
	"fmt"
	"os"

	"github.com/parrotnavy/rn-native-updates/pkg/update"
)

// Exit codes of the native-updates CLI
const (
	// Success indicates successful command completion
	Success = 0

	// GeneralError indicates a general/unknown error
	GeneralError = 1

	// InvalidArgs indicates invalid command-line arguments, flags or
	// identifiers (e.g., empty bundle ID, malformed lookup URL)
	InvalidArgs = 2

	// PreconditionFailed indicates the store state does not allow the
	// operation (e.g., app not found, no update available, sideloaded app)
	PreconditionFailed = 3

	// NetworkError indicates network/connectivity failure
	// (e.g., lookup unreachable, rate limited, bridge disconnected)
	NetworkError = 4

	// UpdateNeeded is returned by need-update --strict when an update is available
	UpdateNeeded = 10

	// ValidationError indicates invalid configuration
	ValidationError = 6
)

// ExitWithError prints error message to stderr and exits with the given code
func ExitWithError(code int, msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(code)
}

// CodeForError returns the exit code for err. An explicit ErrorWithCode
// wins; otherwise the kind of an update error decides.
func CodeForError(err error) int {
	if err == nil {
		return Success
	}

	var ec *ErrorWithCode
	if errors.As(err, &ec) {
		return ec.Code
	}

	switch update.KindOf(err) {
	case update.KindNetwork, update.KindRateLimited:
		return NetworkError
	case update.KindAppNotFound, update.KindNotFromStore, update.KindStoreUnavailable, update.KindUpdateNotAvailable:
		return PreconditionFailed
	case update.KindInvalidIdentifier, update.KindInvalidURL:
		return InvalidArgs
	}
	return GeneralError
}
