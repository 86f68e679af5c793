package update

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// PullGateway serves the App Store: every query is a single lookup.
type PullGateway struct {
	lookup StoreLookup
	id     Identity
	log    zerolog.Logger
	now    func() time.Time
}

var _ Gateway = (*PullGateway)(nil)

// NewPullGateway creates the iOS gateway.
func NewPullGateway(lookup StoreLookup, id Identity, opts ...GatewayOption) *PullGateway {
	cfg := newGatewayConfig(opts)
	return &PullGateway{
		lookup: lookup,
		id:     id,
		log:    cfg.log.With().Str("component", "gateway").Str("platform", string(PlatformIOS)).Logger(),
		now:    cfg.now,
	}
}

func (g *PullGateway) Platform() Platform { return PlatformIOS }

func (g *PullGateway) LocalVersion() string { return g.id.CurrentVersion() }

// AppStoreInfo returns the raw lookup record.
func (g *PullGateway) AppStoreInfo(ctx context.Context, opts FetchOptions) (*AppStoreInfo, error) {
	info, err := g.lookup.Lookup(ctx, g.id.PackageName(), g.country(opts.Country), opts.ForceRefresh)
	if err != nil {
		return nil, AsError(err, KindCheckFailed)
	}
	return info, nil
}

func (g *PullGateway) FetchLatest(ctx context.Context, opts FetchOptions) (*StoreUpdateInfo, error) {
	info, err := g.AppStoreInfo(ctx, opts)
	if err != nil {
		return nil, err
	}
	g.log.Debug().Str("version", info.Version).Int64("track_id", info.TrackID).Msg("app store version fetched")
	return &StoreUpdateInfo{
		Platform:     PlatformIOS,
		Availability: AvailabilityUnknown,
		Version:      info.Version,
		StoreURL:     info.TrackViewURL,
		AppStore:     info,
		FetchedAt:    g.now(),
	}, nil
}

// ResolveStoreURL looks the app up (cache allowed) and returns its store page.
func (g *PullGateway) ResolveStoreURL(ctx context.Context, country string) (string, error) {
	info, err := g.lookup.Lookup(ctx, g.id.PackageName(), g.country(country), false)
	if err != nil {
		if KindOf(err) != "" {
			return "", AsError(err, KindUnknown)
		}
		return "", WrapError(KindUnknown, "failed to get store URL", err)
	}
	return info.TrackViewURL, nil
}

func (g *PullGateway) country(c string) string {
	if c != "" {
		return c
	}
	return g.id.Country()
}
