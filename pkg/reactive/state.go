// Package reactive holds the observable update state a UI renders and
// mediates the user's actions against a gateway.
package reactive

import (
	"github.com/rs/zerolog"

	"github.com/parrotnavy/rn-native-updates/pkg/update"
)

// State is one snapshot of the update state. The checking, downloading
// and ready-to-install flags are independent.
type State struct {
	IsChecking        bool          `json:"isChecking" yaml:"isChecking"`
	IsUpdateAvailable bool          `json:"isUpdateAvailable" yaml:"isUpdateAvailable"`
	CurrentVersion    string        `json:"currentVersion" yaml:"currentVersion"`
	LatestVersion     string        `json:"latestVersion,omitempty" yaml:"latestVersion,omitempty"`
	StoreURL          string        `json:"storeUrl,omitempty" yaml:"storeUrl,omitempty"`
	Error             *update.Error `json:"error,omitempty" yaml:"error,omitempty"`

	IsDownloading    bool                        `json:"isDownloading" yaml:"isDownloading"`
	DownloadProgress int                         `json:"downloadProgress" yaml:"downloadProgress"`
	IsReadyToInstall bool                        `json:"isReadyToInstall" yaml:"isReadyToInstall"`
	PlayStoreInfo    *update.PlayStoreUpdateInfo `json:"playStoreInfo,omitempty" yaml:"playStoreInfo,omitempty"`
}

// Options configures a Store.
type Options struct {
	// CheckOnMount runs one check when the store is mounted.
	CheckOnMount bool
	// Country overrides the identity's region for store lookups.
	Country string
	// OnError is called once for every failed action.
	OnError func(*update.Error)
	// ForceRefresh bypasses the lookup cache on checks. Nil means true.
	ForceRefresh *bool
	// Depth limits version comparison; 0 compares every segment.
	Depth int
	// CurrentVersion and LatestVersion override the values a check uses.
	CurrentVersion string
	LatestVersion  string
	// Logger defaults to a no-op logger.
	Logger *zerolog.Logger
}

func (o Options) forceRefresh() bool {
	return o.ForceRefresh == nil || *o.ForceRefresh
}
