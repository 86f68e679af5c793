package update

import (
	"context"

	"github.com/parrotnavy/rn-native-updates/pkg/version"
)

// Engine decides whether the installed app needs an update.
type Engine struct {
	gw Gateway
}

// NewEngine creates an Engine over gw.
func NewEngine(gw Gateway) *Engine {
	return &Engine{gw: gw}
}

// NeedUpdate compares the local version with the store's. An explicit
// LatestVersion skips the version query, but the store URL is still
// resolved through the gateway. Gateway failures are returned as *Error
// and never retried.
func (e *Engine) NeedUpdate(ctx context.Context, opts NeedUpdateOptions) (*Decision, error) {
	current := opts.CurrentVersion
	if current == "" {
		current = e.gw.LocalVersion()
	}

	var latest, storeURL string
	if opts.LatestVersion != "" {
		latest = opts.LatestVersion
		u, err := e.gw.ResolveStoreURL(ctx, opts.Country)
		if err != nil {
			return nil, AsError(err, KindCheckFailed)
		}
		storeURL = u
	} else {
		info, err := e.gw.FetchLatest(ctx, opts.FetchOptions)
		if err != nil {
			return nil, AsError(err, KindCheckFailed)
		}
		latest = info.Version
		storeURL = info.StoreURL
	}

	return &Decision{
		IsNeeded:       version.IsNewer(current, latest, opts.Depth),
		CurrentVersion: current,
		LatestVersion:  latest,
		StoreURL:       storeURL,
	}, nil
}

// IsCompatible reports whether hostOS satisfies the store's minimum OS
// version. An empty minimum is always satisfied.
func IsCompatible(minOS, hostOS string) bool {
	if minOS == "" {
		return true
	}
	return version.Compare(hostOS, minOS, version.Unbounded) >= 0
}
