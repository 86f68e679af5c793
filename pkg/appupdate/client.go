// Package appupdate is the host-facing API. A Client is bound to one
// platform when it is built; every call goes through that platform's
// gateway without re-checking the platform at call time.
package appupdate

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/parrotnavy/rn-native-updates/pkg/reactive"
	"github.com/parrotnavy/rn-native-updates/pkg/update"
)

// Client exposes the imperative update API.
type Client struct {
	id     update.Identity
	gw     update.Gateway
	pull   *update.PullGateway
	push   *update.PushGateway
	engine *update.Engine
	opener update.URLOpener
	log    zerolog.Logger
}

// Option configures a Client.
type Option func(*options)

type options struct {
	log zerolog.Logger
	now func() time.Time
}

// WithLogger sets the logger shared by the client and its gateway.
func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.log = l } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

func buildOptions(opts []Option) options {
	o := options{log: zerolog.Nop(), now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// NewIOS creates a client for the App Store.
func NewIOS(lookup update.StoreLookup, id update.Identity, opener update.URLOpener, opts ...Option) *Client {
	o := buildOptions(opts)
	gw := update.NewPullGateway(lookup, id, update.WithLogger(o.log), update.WithClock(o.now))
	return &Client{id: id, gw: gw, pull: gw, engine: update.NewEngine(gw), opener: opener, log: o.log}
}

// NewAndroid creates a client for Play Core.
func NewAndroid(backend update.UpdateBackend, id update.Identity, opener update.URLOpener, opts ...Option) *Client {
	o := buildOptions(opts)
	gw := update.NewPushGateway(backend, id, update.WithLogger(o.log), update.WithClock(o.now))
	return &Client{id: id, gw: gw, push: gw, engine: update.NewEngine(gw), opener: opener, log: o.log}
}

// Gateway returns the platform gateway.
func (c *Client) Gateway() update.Gateway { return c.gw }

func (c *Client) Platform() update.Platform { return c.gw.Platform() }

func (c *Client) PackageName() string { return c.id.PackageName() }

func (c *Client) CurrentVersion() string { return c.id.CurrentVersion() }

// BuildNumber returns the numeric build identifier, or 0.
func (c *Client) BuildNumber() int64 { return update.BuildNumber(c.id) }

func (c *Client) Country() string { return c.id.Country() }

// LatestVersion returns the store version on iOS and the available
// version code (or the local build) on Android.
func (c *Client) LatestVersion(ctx context.Context, opts update.FetchOptions) (string, error) {
	info, err := c.gw.FetchLatest(ctx, opts)
	if err != nil {
		return "", update.AsError(err, update.KindUnknown)
	}
	return info.Version, nil
}

// StoreURL returns the app's store page.
func (c *Client) StoreURL(ctx context.Context, country string) (string, error) {
	u, err := c.gw.ResolveStoreURL(ctx, country)
	if err != nil {
		return "", update.AsError(err, update.KindUnknown)
	}
	return u, nil
}

// NeedUpdate decides whether an update is needed.
func (c *Client) NeedUpdate(ctx context.Context, opts update.NeedUpdateOptions) (*update.Decision, error) {
	return c.engine.NeedUpdate(ctx, opts)
}

// OpenStore opens the store page with the client's URL opener.
func (c *Client) OpenStore(ctx context.Context, country string) error {
	u, err := c.StoreURL(ctx, country)
	if err != nil {
		return err
	}
	if c.opener == nil {
		return update.NewError(update.KindUnknown, "no URL opener configured")
	}
	ok, err := c.opener.CanOpen(ctx, u)
	if err != nil {
		return update.AsError(err, update.KindUnknown)
	}
	if !ok {
		return update.NewError(update.KindUnknown, "cannot open store URL: "+u)
	}
	c.log.Debug().Str("url", u).Msg("opening store")
	if err := c.opener.Open(ctx, u); err != nil {
		return update.AsError(err, update.KindUnknown)
	}
	return nil
}

// AppStoreInfo returns the App Store record. iOS only.
func (c *Client) AppStoreInfo(ctx context.Context, opts update.FetchOptions) (*update.AppStoreInfo, error) {
	if c.pull == nil {
		return nil, wrongPlatform("AppStoreInfo", update.PlatformIOS)
	}
	return c.pull.AppStoreInfo(ctx, opts)
}

// CheckPlayStoreUpdate returns Play Core's availability record. Android only.
func (c *Client) CheckPlayStoreUpdate(ctx context.Context) (*update.PlayStoreUpdateInfo, error) {
	if c.push == nil {
		return nil, wrongPlatform("CheckPlayStoreUpdate", update.PlatformAndroid)
	}
	return c.push.PlayStoreInfo(ctx)
}

// StartInAppUpdate begins an in-app update flow. Android only.
func (c *Client) StartInAppUpdate(ctx context.Context, t update.UpdateType) error {
	if c.push == nil {
		return wrongPlatform("StartInAppUpdate", update.PlatformAndroid)
	}
	return c.push.BeginUpdateFlow(ctx, t)
}

// CompleteInAppUpdate installs a downloaded flexible update. Android only.
func (c *Client) CompleteInAppUpdate(ctx context.Context) error {
	if c.push == nil {
		return wrongPlatform("CompleteInAppUpdate", update.PlatformAndroid)
	}
	return c.push.CompleteUpdateFlow(ctx)
}

// AddUpdateListener registers fn for install-state notifications. On iOS
// the returned subscription is inert.
func (c *Client) AddUpdateListener(fn func(update.InstallState)) update.Subscription {
	if c.push == nil {
		return update.NoopSubscription()
	}
	return c.push.AddListener(fn)
}

// NewStore creates a reactive store over the client's gateway. The
// client's logger is used unless opts carries one.
func (c *Client) NewStore(opts reactive.Options) *reactive.Store {
	if opts.Logger == nil {
		l := c.log
		opts.Logger = &l
	}
	return reactive.New(c.gw, c.opener, opts)
}

func wrongPlatform(op string, want update.Platform) *update.Error {
	return update.Errorf(update.KindUnknown, "%s is only available on %s", op, want)
}
