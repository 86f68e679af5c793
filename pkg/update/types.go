package update

import (
	"context"
	"strconv"
	"time"
)

// Platform identifies which native update mechanism backs a gateway.
type Platform string

const (
	// PlatformIOS looks up the latest version on the App Store.
	PlatformIOS Platform = "ios"
	// PlatformAndroid drives the Play Core in-app update flow.
	PlatformAndroid Platform = "android"
)

// ParsePlatform validates a platform name.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformIOS, PlatformAndroid:
		return Platform(s), nil
	}
	return "", Errorf(KindUnknown, "platform %s is not supported", s)
}

// Availability mirrors the Play Core update availability codes.
type Availability int

const (
	AvailabilityUnknown      Availability = 0
	AvailabilityNotAvailable Availability = 1
	AvailabilityAvailable    Availability = 2
	// AvailabilityInProgress is a developer-triggered update already running.
	AvailabilityInProgress Availability = 3
)

func (a Availability) String() string {
	switch a {
	case AvailabilityNotAvailable:
		return "not-available"
	case AvailabilityAvailable:
		return "available"
	case AvailabilityInProgress:
		return "in-progress"
	default:
		return "unknown"
	}
}

// InstallStatus mirrors the Play Core install status codes.
type InstallStatus int

const (
	InstallStatusUnknown     InstallStatus = 0
	InstallStatusPending     InstallStatus = 1
	InstallStatusDownloading InstallStatus = 2
	InstallStatusDownloaded  InstallStatus = 3
	InstallStatusInstalling  InstallStatus = 4
	InstallStatusInstalled   InstallStatus = 5
	InstallStatusFailed      InstallStatus = 6
	InstallStatusCanceled    InstallStatus = 7
)

// Terminal reports whether no further transitions follow in the same flow.
func (s InstallStatus) Terminal() bool {
	return s == InstallStatusInstalled || s == InstallStatusFailed || s == InstallStatusCanceled
}

func (s InstallStatus) String() string {
	switch s {
	case InstallStatusPending:
		return "pending"
	case InstallStatusDownloading:
		return "downloading"
	case InstallStatusDownloaded:
		return "downloaded"
	case InstallStatusInstalling:
		return "installing"
	case InstallStatusInstalled:
		return "installed"
	case InstallStatusFailed:
		return "failed"
	case InstallStatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// UpdateType selects the Play Core flow.
type UpdateType int

const (
	// UpdateTypeFlexible downloads in the background while the app stays usable.
	UpdateTypeFlexible UpdateType = 0
	// UpdateTypeImmediate blocks the app with a full-screen flow.
	UpdateTypeImmediate UpdateType = 1
)

func (t UpdateType) String() string {
	if t == UpdateTypeImmediate {
		return "immediate"
	}
	return "flexible"
}

// AppStoreInfo is one App Store lookup result record.
type AppStoreInfo struct {
	Version                   string  `json:"version"`
	TrackID                   int64   `json:"trackId"`
	TrackViewURL              string  `json:"trackViewUrl"`
	CurrentVersionReleaseDate string  `json:"currentVersionReleaseDate"`
	ReleaseNotes              *string `json:"releaseNotes"`
	MinimumOSVersion          string  `json:"minimumOsVersion"`
}

// PlayStoreUpdateInfo is the availability record reported by Play Core.
type PlayStoreUpdateInfo struct {
	UpdateAvailability         Availability `json:"updateAvailability"`
	AvailableVersionCode       *int64       `json:"availableVersionCode"`
	IsFlexibleUpdateAllowed    bool         `json:"isFlexibleUpdateAllowed"`
	IsImmediateUpdateAllowed   bool         `json:"isImmediateUpdateAllowed"`
	ClientVersionStalenessDays *int         `json:"clientVersionStalenessDays"`
	UpdatePriority             int          `json:"updatePriority"`
	TotalBytesToDownload       int64        `json:"totalBytesToDownload"`
	PackageName                string       `json:"packageName"`
}

// Allows reports whether the given flow type may be started.
func (p *PlayStoreUpdateInfo) Allows(t UpdateType) bool {
	if t == UpdateTypeImmediate {
		return p.IsImmediateUpdateAllowed
	}
	return p.IsFlexibleUpdateAllowed
}

// InstallState is one snapshot of an in-app update flow.
type InstallState struct {
	Status               InstallStatus `json:"installStatus"`
	BytesDownloaded      int64         `json:"bytesDownloaded"`
	TotalBytesToDownload int64         `json:"totalBytesToDownload"`
	DownloadProgress     int           `json:"downloadProgress"`
}

// StoreUpdateInfo is the platform-neutral result of one store query. It is
// produced fresh for every query and never modified afterwards.
type StoreUpdateInfo struct {
	Platform     Platform
	Availability Availability
	// Version is the store version on iOS. On Android it is the available
	// version code, or the local build number when no update is available.
	Version  string
	StoreURL string

	AppStore  *AppStoreInfo
	PlayStore *PlayStoreUpdateInfo

	FetchedAt time.Time
}

// Decision is the normalized outcome of a version check.
type Decision struct {
	IsNeeded       bool   `json:"isNeeded" yaml:"is_needed"`
	CurrentVersion string `json:"currentVersion" yaml:"current_version"`
	LatestVersion  string `json:"latestVersion" yaml:"latest_version"`
	StoreURL       string `json:"storeUrl" yaml:"store_url"`
}

// FetchOptions tune a store query. Both fields only affect the App Store.
type FetchOptions struct {
	Country      string
	ForceRefresh bool
}

// NeedUpdateOptions configure a Decision.
type NeedUpdateOptions struct {
	FetchOptions
	// CurrentVersion overrides the locally installed version.
	CurrentVersion string
	// LatestVersion skips the version query; the store URL is still resolved.
	LatestVersion string
	// Depth limits how many segments are compared; 0 compares all.
	Depth int
}

// Identity describes the running application. Implementations read OS
// metadata and must be cheap and side-effect free.
type Identity interface {
	CurrentVersion() string
	BuildNumber() string
	PackageName() string
	Country() string
}

// StaticIdentity is an Identity with fixed values.
type StaticIdentity struct {
	Version string
	Build   string
	Package string
	Region  string
}

func (s StaticIdentity) CurrentVersion() string { return s.Version }
func (s StaticIdentity) BuildNumber() string    { return s.Build }
func (s StaticIdentity) PackageName() string    { return s.Package }
func (s StaticIdentity) Country() string        { return s.Region }

// BuildNumber parses an Identity's build identifier; non-numeric values are 0.
func BuildNumber(id Identity) int64 {
	n, err := strconv.ParseInt(leadingDigits(id.BuildNumber()), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}

// URLOpener hands a URL to the host's navigation capability.
type URLOpener interface {
	CanOpen(ctx context.Context, url string) (bool, error)
	Open(ctx context.Context, url string) error
}

// StoreLookup queries the App Store for a bundle.
type StoreLookup interface {
	Lookup(ctx context.Context, bundleID, country string, forceRefresh bool) (*AppStoreInfo, error)
}

// UpdateBackend is the Play Core capability set.
type UpdateBackend interface {
	QueryAvailability(ctx context.Context) (*PlayStoreUpdateInfo, error)
	StartFlow(ctx context.Context, t UpdateType) error
	CompleteFlow(ctx context.Context) error
	// Subscribe registers the single native install-state callback. The
	// returned cancel func must be safe to call from within the callback.
	Subscribe(fn func(InstallState)) (cancel func(), err error)
}
