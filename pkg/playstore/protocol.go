// Package playstore talks to the Play Core in-app update API. The device
// side exposes it as a JSON-RPC 2.0 bridge over a websocket; Simulator is
// an in-process stand-in used for development.
package playstore

import (
	"encoding/json"
	"strings"

	"github.com/parrotnavy/rn-native-updates/pkg/update"
)

const jsonrpcVersion = "2.0"

const (
	methodCheck       = "checkPlayStoreUpdate"
	methodStart       = "startUpdate"
	methodComplete    = "completeUpdate"
	methodSubscribe   = "subscribe"
	methodUnsubscribe = "unsubscribe"
)

// Install-state notification names pushed by the bridge.
const (
	EventProgress   = "onUpdateProgress"
	EventDownloaded = "onUpdateDownloaded"
	EventInstalled  = "onUpdateInstalled"
	EventFailed     = "onUpdateFailed"
)

type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type startParams struct {
	UpdateType update.UpdateType `json:"updateType"`
}

// EventFor returns the notification name used for an install status.
func EventFor(s update.InstallStatus) string {
	switch s {
	case update.InstallStatusDownloaded:
		return EventDownloaded
	case update.InstallStatusInstalled:
		return EventInstalled
	case update.InstallStatusFailed, update.InstallStatusCanceled:
		return EventFailed
	default:
		return EventProgress
	}
}

func isEvent(method string) bool {
	switch method {
	case EventProgress, EventDownloaded, EventInstalled, EventFailed:
		return true
	}
	return false
}

var knownKinds = map[update.Kind]bool{
	update.KindNetwork:            true,
	update.KindAppNotFound:        true,
	update.KindRateLimited:        true,
	update.KindNotFromStore:       true,
	update.KindStoreUnavailable:   true,
	update.KindCheckFailed:        true,
	update.KindUpdateFailed:       true,
	update.KindUpdateCancelled:    true,
	update.KindUpdateNotAvailable: true,
	update.KindInvalidIdentifier:  true,
	update.KindInvalidURL:         true,
	update.KindUnknown:            true,
}

// classify maps a bridge error to a typed error. Play Core reports a
// sideloaded install only through its message text.
func classify(e *rpcError) *update.Error {
	msg := e.Message
	if strings.Contains(msg, "API not available") || strings.Contains(msg, "not installed from Play Store") {
		return update.NewError(update.KindNotFromStore, msg)
	}
	if k := update.Kind(e.Code); knownKinds[k] {
		return update.NewError(k, msg)
	}
	if msg == "" {
		msg = e.Code
	}
	return update.NewError(update.KindUnknown, msg)
}

func toRPCError(err error) *rpcError {
	e := update.AsError(err, update.KindUnknown)
	return &rpcError{Code: string(e.Kind), Message: e.Message}
}
