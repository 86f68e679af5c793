package hostinfo

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"

	"github.com/parrotnavy/rn-native-updates/pkg/update"
)

// Opener opens store URLs with the desktop's default handler.
type Opener struct {
	goos     string
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) error
}

// NewOpener returns an Opener for the running OS.
func NewOpener() *Opener {
	return &Opener{
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

var _ update.URLOpener = (*Opener)(nil)

func (o *Opener) command(target string) (string, []string) {
	switch o.goos {
	case "darwin":
		return "open", []string{target}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}
	default:
		return "xdg-open", []string{target}
	}
}

// CanOpen reports whether the URL is a web or store URL and a handler
// command is installed.
func (o *Opener) CanOpen(_ context.Context, raw string) (bool, error) {
	if !openable(raw) {
		return false, nil
	}
	name, _ := o.command(raw)
	if _, err := o.lookPath(name); err != nil {
		return false, nil
	}
	return true, nil
}

// Open launches the handler for the URL.
func (o *Opener) Open(ctx context.Context, raw string) error {
	if !openable(raw) {
		return update.Errorf(update.KindInvalidURL, "cannot open URL %q", raw)
	}
	name, args := o.command(raw)
	if err := o.run(ctx, name, args...); err != nil {
		return update.WrapError(update.KindUnknown, fmt.Sprintf("%s failed", name), err)
	}
	return nil
}

func openable(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "itms-apps", "market":
		return true
	}
	return false
}
