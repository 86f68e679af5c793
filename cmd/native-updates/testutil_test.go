package main

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/parrotnavy/rn-native-updates/internal/config"
	ui "github.com/parrotnavy/rn-native-updates/internal/ui"
	"github.com/parrotnavy/rn-native-updates/pkg/appupdate"
	"github.com/parrotnavy/rn-native-updates/pkg/playstore"
	"github.com/parrotnavy/rn-native-updates/pkg/update"
)

// errMock is a generic error for test assertions.
var errMock = errors.New("mock error")

// mockLookup implements update.StoreLookup for testing.
type mockLookup struct {
	mu    sync.Mutex
	info  *update.AppStoreInfo
	err   error
	calls int
	force []bool
}

func (m *mockLookup) Lookup(_ context.Context, bundleID, country string, force bool) (*update.AppStoreInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.force = append(m.force, force)
	if m.err != nil {
		return nil, m.err
	}
	cp := *m.info
	return &cp, nil
}

// mockOpener implements update.URLOpener for testing.
type mockOpener struct {
	canOpen bool
	opened  []string
	openErr error
}

func (m *mockOpener) CanOpen(context.Context, string) (bool, error) { return m.canOpen, nil }

func (m *mockOpener) Open(_ context.Context, u string) error {
	if m.openErr != nil {
		return m.openErr
	}
	m.opened = append(m.opened, u)
	return nil
}

func sampleAppStoreInfo() *update.AppStoreInfo {
	notes := "## What's new\n\n- Faster sync\n- Bug fixes"
	return &update.AppStoreInfo{
		Version:                   "2.1.0",
		TrackID:                   1234567890,
		TrackViewURL:              "https://apps.apple.com/us/app/example/id1234567890",
		CurrentVersionReleaseDate: "2024-03-01T10:00:00Z",
		ReleaseNotes:              &notes,
		MinimumOSVersion:          "15.0",
	}
}

func testConfig(platform update.Platform) config.Config {
	cfg := config.Defaults()
	cfg.Platform = string(platform)
	cfg.PackageName = "com.example.app"
	cfg.CurrentVersion = "2.0.0"
	cfg.BuildNumber = "10"
	cfg.CacheDir = ""
	return cfg
}

// testPrinter returns a color-free printer writing to a buffer.
func testPrinter(format string) (ui.Printer, *bytes.Buffer) {
	var buf bytes.Buffer
	p := ui.NewPrinter(format).WithWriter(&buf)
	p.Colors.Enabled = false
	p.Colors.EmojiEnabled = false
	return p, &buf
}

// newIOSDeps builds Deps over a mock App Store lookup.
func newIOSDeps(t *testing.T, format string, lookup *mockLookup, opener *mockOpener) (*Deps, *bytes.Buffer) {
	t.Helper()
	cfg := testConfig(update.PlatformIOS)
	cfg.Output = format
	p, buf := testPrinter(format)
	id := update.StaticIdentity{Version: cfg.CurrentVersion, Build: cfg.BuildNumber, Package: cfg.PackageName, Region: cfg.Country}
	return &Deps{
		Cfg:       cfg,
		Client:    appupdate.NewIOS(lookup, id, opener),
		Printer:   p,
		Log:       zerolog.Nop(),
		Output:    buf,
		HostOS:    func(context.Context) (string, error) { return "17.2", nil },
		Clipboard: func(string) error { return nil },
	}, buf
}

// newAndroidDeps builds Deps over a fast simulator.
func newAndroidDeps(t *testing.T, format string, simCfg playstore.SimulatorConfig) (*Deps, *bytes.Buffer) {
	t.Helper()
	cfg := testConfig(update.PlatformAndroid)
	cfg.Output = format
	p, buf := testPrinter(format)
	sim := playstore.NewSimulator(simCfg, zerolog.Nop())
	t.Cleanup(sim.Close)
	id := update.StaticIdentity{Version: cfg.CurrentVersion, Build: cfg.BuildNumber, Package: cfg.PackageName, Region: cfg.Country}
	return &Deps{
		Cfg:     cfg,
		Client:  appupdate.NewAndroid(sim, id, &mockOpener{canOpen: true}),
		Printer: p,
		Log:     zerolog.Nop(),
		Output:  buf,
	}, buf
}

func fastSimConfig() playstore.SimulatorConfig {
	cfg := playstore.DefaultSimulatorConfig(11)
	cfg.Info.PackageName = "com.example.app"
	cfg.TotalBytes = 400
	cfg.Info.TotalBytesToDownload = 400
	cfg.Chunks = 4
	cfg.Interval = 0
	return cfg
}
