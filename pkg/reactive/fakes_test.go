package reactive

import (
	"context"
	"sync"

	"github.com/parrotnavy/rn-native-updates/pkg/update"
)

// fakeLookup answers App Store lookups through fn, numbering each call.
type fakeLookup struct {
	mu    sync.Mutex
	calls []bool
	fn    func(call int) (*update.AppStoreInfo, error)
}

func (f *fakeLookup) Lookup(_ context.Context, _, _ string, force bool) (*update.AppStoreInfo, error) {
	f.mu.Lock()
	f.calls = append(f.calls, force)
	n := len(f.calls)
	f.mu.Unlock()
	return f.fn(n)
}

func staticLookup(v string) *fakeLookup {
	return &fakeLookup{fn: func(int) (*update.AppStoreInfo, error) {
		return &update.AppStoreInfo{Version: v, TrackViewURL: "https://apps.apple.com/app/id1"}, nil
	}}
}

type fakeBackend struct {
	mu          sync.Mutex
	info        update.PlayStoreUpdateInfo
	queryErr    error
	startErr    error
	completeErr error

	subscribes int
	cancels    int
	completes  int
	fn         func(update.InstallState)
}

func (b *fakeBackend) QueryAvailability(context.Context) (*update.PlayStoreUpdateInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.queryErr != nil {
		return nil, b.queryErr
	}
	info := b.info
	return &info, nil
}

func (b *fakeBackend) StartFlow(context.Context, update.UpdateType) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.startErr
}

func (b *fakeBackend) CompleteFlow(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.completes++
	return b.completeErr
}

func (b *fakeBackend) Subscribe(fn func(update.InstallState)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribes++
	b.fn = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.cancels++
		b.fn = nil
	}, nil
}

func (b *fakeBackend) emit(s update.InstallState) {
	b.mu.Lock()
	fn := b.fn
	b.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (b *fakeBackend) counts() (subscribes, cancels int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribes, b.cancels
}

func availableBackend(code int64) *fakeBackend {
	return &fakeBackend{info: update.PlayStoreUpdateInfo{
		UpdateAvailability:      update.AvailabilityAvailable,
		AvailableVersionCode:    &code,
		IsFlexibleUpdateAllowed: true,
	}}
}

type fakeOpener struct {
	mu      sync.Mutex
	canOpen bool
	openErr error
	opened  []string
}

func (o *fakeOpener) CanOpen(context.Context, string) (bool, error) {
	return o.canOpen, nil
}

func (o *fakeOpener) Open(_ context.Context, url string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, url)
	return o.openErr
}

// errorRecorder counts OnError invocations.
type errorRecorder struct {
	mu   sync.Mutex
	errs []*update.Error
}

func (r *errorRecorder) record(e *update.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, e)
}

func (r *errorRecorder) all() []*update.Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*update.Error(nil), r.errs...)
}

var (
	iosIdentity     = update.StaticIdentity{Version: "1.0.0", Build: "7", Package: "com.example.app", Region: "US"}
	androidIdentity = update.StaticIdentity{Version: "1.0.0", Build: "10", Package: "com.example.app", Region: "US"}
)
