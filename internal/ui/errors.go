package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/parrotnavy/rn-native-updates/pkg/update"
)

// ErrorMessage represents a structured, actionable error to present to users.
type ErrorMessage struct {
	Problem string   // one-line problem statement
	Code    string   // error kind, if known
	Causes  []string // possible causes
	Actions []string // actionable steps to resolve
}

// Format renders the error using the color theme. It does not include ANSI
// codes when colors are disabled (NO_COLOR or dumb terminal).
func (e ErrorMessage) Format(c *ColorConfig) string {
	var b strings.Builder
	b.WriteString(c.Error("✗ "))
	b.WriteString(c.Header("Error"))
	if e.Code != "" {
		b.WriteString(c.Description(" [" + e.Code + "]"))
	}
	b.WriteString("\n")
	if e.Problem != "" {
		fmt.Fprintf(&b, "  %s: %s\n", c.Label("Problem"), e.Problem)
	}
	if len(e.Causes) > 0 {
		fmt.Fprintf(&b, "  %s:\n", c.Label("Possible causes"))
		for _, it := range e.Causes {
			b.WriteString("   • " + it + "\n")
		}
	}
	if len(e.Actions) > 0 {
		fmt.Fprintf(&b, "  %s:\n", c.Label("Try"))
		for _, it := range e.Actions {
			b.WriteString("   → " + it + "\n")
		}
	}
	return b.String()
}

// PrintError writes the structured error to w.
func PrintError(w io.Writer, c *ColorConfig, e ErrorMessage) {
	fmt.Fprintln(w, e.Format(c))
}

// ErrorFor builds a user-facing message for err, with hints for the
// update error kinds.
func ErrorFor(err error) ErrorMessage {
	msg := ErrorMessage{Problem: err.Error()}
	kind := update.KindOf(err)
	msg.Code = string(kind)

	switch kind {
	case update.KindNetwork:
		msg.Causes = []string{"No network connection", "The lookup endpoint or device bridge is unreachable"}
		msg.Actions = []string{"Check connectivity and retry", "Verify --bridge or lookup-url in the config"}
	case update.KindRateLimited:
		msg.Causes = []string{"Too many App Store lookups in a short time"}
		msg.Actions = []string{"Wait a few minutes", "Avoid --force-refresh; cached results last one hour"}
	case update.KindAppNotFound:
		msg.Causes = []string{"Wrong bundle identifier", "App not published in the selected country"}
		msg.Actions = []string{"Check --package", "Try another --country"}
	case update.KindNotFromStore:
		msg.Causes = []string{"The app was sideloaded or installed from another store"}
		msg.Actions = []string{"Install the app from Google Play to use in-app updates"}
	case update.KindStoreUnavailable:
		msg.Causes = []string{"Google Play is missing on the device", "The device bridge is not running"}
		msg.Actions = []string{"Start the bridge or use --bridge sim"}
	case update.KindUpdateNotAvailable:
		msg.Causes = []string{"The installed build is already the latest"}
		msg.Actions = []string{"Run 'native-updates info' to see availability"}
	case update.KindInvalidIdentifier:
		msg.Actions = []string{"Pass the app's bundle identifier with --package"}
	case update.KindInvalidURL:
		msg.Actions = []string{"Check the lookup-url or bridge URL"}
	}
	return msg
}
