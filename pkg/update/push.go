package update

import (
	"context"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const playStoreDetailsURL = "https://play.google.com/store/apps/details?id="

// PlayStoreURL returns the store page of an Android package.
func PlayStoreURL(packageName string) string {
	return playStoreDetailsURL + url.QueryEscape(packageName)
}

// PushGateway serves Play Core: availability is queried on demand and the
// install flow reports its progress through native notifications.
type PushGateway struct {
	backend UpdateBackend
	id      Identity
	log     zerolog.Logger
	now     func() time.Time
	hub     *listenerHub

	mu      sync.Mutex
	status  InstallStatus
	bytes   int64
	tracker Subscription
}

var _ FlowGateway = (*PushGateway)(nil)

// NewPushGateway creates the Android gateway.
func NewPushGateway(backend UpdateBackend, id Identity, opts ...GatewayOption) *PushGateway {
	cfg := newGatewayConfig(opts)
	g := &PushGateway{
		backend: backend,
		id:      id,
		log:     cfg.log.With().Str("component", "gateway").Str("platform", string(PlatformAndroid)).Logger(),
		now:     cfg.now,
	}
	g.hub = newListenerHub(g.subscribeNative, func(err error) {
		g.log.Warn().Err(err).Msg("install state subscription failed")
	})
	return g
}

func (g *PushGateway) Platform() Platform { return PlatformAndroid }

func (g *PushGateway) LocalVersion() string {
	return strconv.FormatInt(BuildNumber(g.id), 10)
}

// PlayStoreInfo returns the raw availability record.
func (g *PushGateway) PlayStoreInfo(ctx context.Context) (*PlayStoreUpdateInfo, error) {
	info, err := g.backend.QueryAvailability(ctx)
	if err != nil {
		return nil, AsError(err, KindCheckFailed)
	}
	return info, nil
}

func (g *PushGateway) FetchLatest(ctx context.Context, _ FetchOptions) (*StoreUpdateInfo, error) {
	info, err := g.PlayStoreInfo(ctx)
	if err != nil {
		return nil, err
	}

	latest := g.LocalVersion()
	if info.UpdateAvailability == AvailabilityAvailable && info.AvailableVersionCode != nil && *info.AvailableVersionCode != 0 {
		latest = strconv.FormatInt(*info.AvailableVersionCode, 10)
	}
	g.log.Debug().Stringer("availability", info.UpdateAvailability).Str("latest", latest).Msg("play store availability fetched")

	return &StoreUpdateInfo{
		Platform:     PlatformAndroid,
		Availability: info.UpdateAvailability,
		Version:      latest,
		StoreURL:     PlayStoreURL(g.id.PackageName()),
		PlayStore:    info,
		FetchedAt:    g.now(),
	}, nil
}

func (g *PushGateway) ResolveStoreURL(_ context.Context, _ string) (string, error) {
	return PlayStoreURL(g.id.PackageName()), nil
}

// BeginUpdateFlow starts an in-app update. Nothing is subscribed when no
// update is available.
func (g *PushGateway) BeginUpdateFlow(ctx context.Context, t UpdateType) error {
	info, err := g.backend.QueryAvailability(ctx)
	if err != nil {
		return AsError(err, KindCheckFailed)
	}
	if info.UpdateAvailability != AvailabilityAvailable {
		return NewError(KindUpdateNotAvailable, "no update is available")
	}

	g.mu.Lock()
	g.status = InstallStatusUnknown
	g.bytes = 0
	start := g.tracker == nil
	g.mu.Unlock()

	// The tracker keeps the native subscription open until the flow ends,
	// even if the host registers no listener of its own.
	if start {
		sub := g.hub.add(g.track)
		g.mu.Lock()
		g.tracker = sub
		g.mu.Unlock()
	}

	g.log.Info().Stringer("type", t).Msg("starting update flow")
	if err := g.backend.StartFlow(ctx, t); err != nil {
		g.releaseTracker()
		if KindOf(err) != "" {
			return AsError(err, KindUpdateFailed)
		}
		return WrapError(KindUpdateFailed, "failed to start update", err)
	}
	return nil
}

// CompleteUpdateFlow installs a downloaded flexible update. Before the
// download finished it does nothing and reports no error.
func (g *PushGateway) CompleteUpdateFlow(ctx context.Context) error {
	g.mu.Lock()
	status := g.status
	g.mu.Unlock()

	if status != InstallStatusDownloaded {
		g.log.Debug().Stringer("status", status).Msg("complete ignored before download finished")
		return nil
	}
	if err := g.backend.CompleteFlow(ctx); err != nil {
		return AsError(err, KindUpdateFailed)
	}
	return nil
}

// AddListener registers fn for install-state notifications.
func (g *PushGateway) AddListener(fn func(InstallState)) Subscription {
	return g.hub.add(fn)
}

// FlowStatus returns the last accepted install status of the current flow.
func (g *PushGateway) FlowStatus() InstallStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

func (g *PushGateway) subscribeNative(deliver func(InstallState)) (func(), error) {
	g.log.Debug().Msg("subscribing to native install state")
	cancel, err := g.backend.Subscribe(func(s InstallState) {
		if st, ok := g.accept(s); ok {
			deliver(st)
		}
	})
	if err != nil {
		return nil, err
	}
	return func() {
		g.log.Debug().Msg("unsubscribing from native install state")
		cancel()
	}, nil
}

// accept normalizes a native notification and decides whether it belongs
// to the current flow. Duplicate or late terminal states, and progress
// that moves backwards, are dropped.
func (g *PushGateway) accept(s InstallState) (InstallState, bool) {
	s = normalizeInstallState(s)

	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case g.status.Terminal():
		g.log.Debug().Stringer("status", s.Status).Stringer("terminal", g.status).Msg("dropping notification after terminal state")
		return s, false
	case s.Status == InstallStatusDownloading && g.status == InstallStatusDownloaded:
		return s, false
	case s.Status == InstallStatusDownloading && s.BytesDownloaded < g.bytes:
		return s, false
	}

	g.status = s.Status
	if s.BytesDownloaded > g.bytes {
		g.bytes = s.BytesDownloaded
	}
	return s, true
}

func (g *PushGateway) track(s InstallState) {
	if s.Status.Terminal() {
		g.releaseTracker()
	}
}

func (g *PushGateway) releaseTracker() {
	g.mu.Lock()
	sub := g.tracker
	g.tracker = nil
	g.mu.Unlock()
	if sub != nil {
		sub.Remove()
	}
}

func normalizeInstallState(s InstallState) InstallState {
	if s.BytesDownloaded < 0 {
		s.BytesDownloaded = 0
	}
	if s.TotalBytesToDownload < 0 {
		s.TotalBytesToDownload = 0
	}
	if s.DownloadProgress == 0 && s.TotalBytesToDownload > 0 {
		s.DownloadProgress = int(s.BytesDownloaded * 100 / s.TotalBytesToDownload)
	}
	if s.Status == InstallStatusDownloaded {
		s.DownloadProgress = 100
	}
	if s.DownloadProgress < 0 {
		s.DownloadProgress = 0
	}
	if s.DownloadProgress > 100 {
		s.DownloadProgress = 100
	}
	return s
}
