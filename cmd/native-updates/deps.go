package main

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog"

	"github.com/parrotnavy/rn-native-updates/internal/config"
	"github.com/parrotnavy/rn-native-updates/internal/hostinfo"
	"github.com/parrotnavy/rn-native-updates/internal/logging"
	ui "github.com/parrotnavy/rn-native-updates/internal/ui"
	"github.com/parrotnavy/rn-native-updates/pkg/appstore"
	"github.com/parrotnavy/rn-native-updates/pkg/appupdate"
	"github.com/parrotnavy/rn-native-updates/pkg/playstore"
	"github.com/parrotnavy/rn-native-updates/pkg/update"
)

// Deps holds all injectable dependencies for command handlers.
type Deps struct {
	Cfg     config.Config
	Client  *appupdate.Client
	Printer ui.Printer
	Log     zerolog.Logger
	Output  io.Writer
	// HostOS reports the version of the OS the CLI runs on.
	HostOS func(ctx context.Context) (string, error)
	// Clipboard copies text for store-url --copy.
	Clipboard func(string) error

	closers []func() error
}

// Close releases the backend and persists the lookup cache.
func (d *Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Deps) fetchOptions() update.FetchOptions {
	return update.FetchOptions{Country: d.Cfg.Country, ForceRefresh: d.Cfg.ForceRefresh}
}

func detectHostOS(ctx context.Context) (string, error) {
	h, err := hostinfo.Detect(ctx)
	if err != nil {
		return "", err
	}
	return h.OSVersion(), nil
}

// newDeps creates production dependencies from the current flags and config.
func newDeps(ctx context.Context) (*Deps, error) {
	cfg, err := loadCfg()
	if err != nil {
		return nil, err
	}
	log := newLogger(cfg)

	d := &Deps{
		Cfg:       cfg,
		Printer:   ui.NewPrinterFromGlobal(cfg.Output),
		Log:       log,
		Output:    os.Stdout,
		HostOS:    detectHostOS,
		Clipboard: clipboard.WriteAll,
	}

	id := hostinfo.Identity(cfg)
	opener := hostinfo.NewOpener()
	opts := []appupdate.Option{appupdate.WithLogger(log)}

	switch cfg.PlatformValue() {
	case update.PlatformAndroid:
		backend, closeFn, err := openBackend(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, closeFn)
		d.Client = appupdate.NewAndroid(backend, id, opener, opts...)
	default:
		lookup, saveFn := openLookup(cfg, log)
		d.closers = append(d.closers, saveFn)
		d.Client = appupdate.NewIOS(lookup, id, opener, opts...)
	}
	return d, nil
}

// openLookup builds the App Store client. The cache is restored from and
// saved to cfg.CacheDir so lookups are shared between invocations.
func openLookup(cfg config.Config, log zerolog.Logger) (*appstore.Client, func() error) {
	clog := logging.Component(log, "cache")
	cache := appstore.NewCache(cfg.CacheTTL, time.Now)

	if cfg.CacheDir != "" {
		entries, err := appstore.LoadCache(cfg.CacheDir)
		switch {
		case err == nil:
			cache.Restore(entries)
			clog.Debug().Int("entries", cache.Len()).Str("path", appstore.GetCachePath(cfg.CacheDir)).Msg("restored lookup cache")
		case !errors.Is(err, fs.ErrNotExist):
			clog.Warn().Err(err).Msg("ignoring unreadable lookup cache")
		}
	}

	client := appstore.New(
		appstore.WithBaseURL(cfg.LookupURL),
		appstore.WithCache(cache),
		appstore.WithLogger(log),
	)

	save := func() error {
		if cfg.CacheDir == "" || cache.Len() == 0 {
			return nil
		}
		if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
			clog.Debug().Err(err).Msg("cannot create cache dir")
			return nil
		}
		if err := appstore.SaveCache(cfg.CacheDir, cache.Entries()); err != nil {
			clog.Debug().Err(err).Msg("cannot save lookup cache")
		}
		return nil
	}
	return client, save
}

// openBackend connects to the device bridge, or starts the in-process
// simulator when the bridge is "sim".
func openBackend(ctx context.Context, cfg config.Config, log zerolog.Logger) (update.UpdateBackend, func() error, error) {
	if cfg.BridgeURL == config.BridgeSimulator || cfg.BridgeURL == "" {
		sim := newSimulator(cfg, log)
		return sim, func() error { sim.Close(); return nil }, nil
	}

	client, err := playstore.Dial(ctx, cfg.BridgeURL, playstore.WithBridgeLogger(log))
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}

func newSimulator(cfg config.Config, log zerolog.Logger) *playstore.Simulator {
	return playstore.NewSimulator(simulatorConfig(cfg), log)
}

// simulatorConfig offers the build after the configured one.
func simulatorConfig(cfg config.Config) playstore.SimulatorConfig {
	build := update.BuildNumber(update.StaticIdentity{Build: cfg.BuildNumber})
	simCfg := playstore.DefaultSimulatorConfig(build + 1)
	simCfg.Info.PackageName = cfg.PackageName
	return simCfg
}
