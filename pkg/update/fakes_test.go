package update

import (
	"context"
	"sync"
)

type fakeLookup struct {
	mu    sync.Mutex
	info  *AppStoreInfo
	err   error
	calls []lookupCall
}

type lookupCall struct {
	bundleID, country string
	force             bool
}

func (f *fakeLookup) Lookup(_ context.Context, bundleID, country string, force bool) (*AppStoreInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, lookupCall{bundleID, country, force})
	if f.err != nil {
		return nil, f.err
	}
	info := *f.info
	return &info, nil
}

type fakeBackend struct {
	mu          sync.Mutex
	info        *PlayStoreUpdateInfo
	queryErr    error
	startErr    error
	completeErr error

	subscribes int
	cancels    int
	starts     []UpdateType
	completes  int
	fn         func(InstallState)
	onStart    func()
}

func (b *fakeBackend) QueryAvailability(context.Context) (*PlayStoreUpdateInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.queryErr != nil {
		return nil, b.queryErr
	}
	info := *b.info
	return &info, nil
}

func (b *fakeBackend) StartFlow(_ context.Context, t UpdateType) error {
	b.mu.Lock()
	b.starts = append(b.starts, t)
	err, hook := b.startErr, b.onStart
	b.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (b *fakeBackend) CompleteFlow(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.completes++
	return b.completeErr
}

func (b *fakeBackend) Subscribe(fn func(InstallState)) (func(), error) {
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

func (b *fakeBackend) emit(s InstallState) {
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

func availableInfo(code int64) *PlayStoreUpdateInfo {
	return &PlayStoreUpdateInfo{
		UpdateAvailability:      AvailabilityAvailable,
		AvailableVersionCode:    &code,
		IsFlexibleUpdateAllowed: true,
		PackageName:             "com.example.app",
	}
}

var testIdentity = StaticIdentity{Version: "1.0.0", Build: "10", Package: "com.example.app", Region: "US"}
