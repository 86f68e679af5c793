package reactive

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parrotnavy/rn-native-updates/pkg/update"
)

func TestCheckUpdatePull(t *testing.T) {
	lookup := staticLookup("2.0.0")
	s := New(update.NewPullGateway(lookup, iosIdentity), nil, Options{})

	s.CheckUpdate(context.Background())

	st := s.Snapshot()
	assert.False(t, st.IsChecking)
	assert.True(t, st.IsUpdateAvailable)
	assert.Equal(t, "1.0.0", st.CurrentVersion)
	assert.Equal(t, "2.0.0", st.LatestVersion)
	assert.Equal(t, "https://apps.apple.com/app/id1", st.StoreURL)
	assert.Nil(t, st.Error)
	assert.Nil(t, st.PlayStoreInfo)
	assert.Equal(t, []bool{true}, lookup.calls, "checks bypass the cache by default")
}

func TestCheckUpdatePullHonorsOptions(t *testing.T) {
	lookup := staticLookup("1.2.9")
	force := false
	s := New(update.NewPullGateway(lookup, iosIdentity), nil, Options{
		ForceRefresh:   &force,
		CurrentVersion: "1.2.0",
		Depth:          2,
	})

	s.CheckUpdate(context.Background())

	st := s.Snapshot()
	assert.False(t, st.IsUpdateAvailable)
	assert.Equal(t, "1.2.0", st.CurrentVersion)
	assert.Equal(t, []bool{false}, lookup.calls)
}

func TestCheckUpdatePushAvailable(t *testing.T) {
	s := New(update.NewPushGateway(availableBackend(100), androidIdentity), nil, Options{})

	s.CheckUpdate(context.Background())

	st := s.Snapshot()
	assert.True(t, st.IsUpdateAvailable)
	assert.Equal(t, "100", st.LatestVersion)
	assert.Equal(t, "10", st.CurrentVersion)
	assert.Equal(t, "https://play.google.com/store/apps/details?id=com.example.app", st.StoreURL)
	require.NotNil(t, st.PlayStoreInfo)
	assert.Equal(t, update.AvailabilityAvailable, st.PlayStoreInfo.UpdateAvailability)
}

func TestCheckUpdatePushNotAvailable(t *testing.T) {
	backend := &fakeBackend{info: update.PlayStoreUpdateInfo{UpdateAvailability: update.AvailabilityNotAvailable}}
	s := New(update.NewPushGateway(backend, androidIdentity), nil, Options{})

	s.CheckUpdate(context.Background())

	st := s.Snapshot()
	assert.False(t, st.IsUpdateAvailable)
	assert.Equal(t, "10", st.LatestVersion)
	assert.Equal(t, "10", st.CurrentVersion)
}

func TestCheckUpdateFailure(t *testing.T) {
	lookup := &fakeLookup{fn: func(int) (*update.AppStoreInfo, error) {
		return nil, errors.New("socket hang up")
	}}
	rec := &errorRecorder{}
	s := New(update.NewPullGateway(lookup, iosIdentity), nil, Options{OnError: rec.record})

	s.CheckUpdate(context.Background())

	st := s.Snapshot()
	assert.False(t, st.IsChecking)
	require.NotNil(t, st.Error)
	assert.Equal(t, update.KindCheckFailed, st.Error.Kind)
	assert.Contains(t, st.Error.Error(), "socket hang up")

	errs := rec.all()
	require.Len(t, errs, 1)
	assert.Same(t, st.Error, errs[0])
}

func TestCheckUpdateKeepsTypedErrors(t *testing.T) {
	lookup := &fakeLookup{fn: func(int) (*update.AppStoreInfo, error) {
		return nil, update.NewError(update.KindRateLimited, "slow down")
	}}
	s := New(update.NewPullGateway(lookup, iosIdentity), nil, Options{})

	s.CheckUpdate(context.Background())

	require.NotNil(t, s.Snapshot().Error)
	assert.Equal(t, update.KindRateLimited, s.Snapshot().Error.Kind)
}

func TestCheckUpdateClearsPreviousError(t *testing.T) {
	var fail bool
	lookup := &fakeLookup{fn: func(int) (*update.AppStoreInfo, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return &update.AppStoreInfo{Version: "1.0.0"}, nil
	}}
	s := New(update.NewPullGateway(lookup, iosIdentity), nil, Options{})

	fail = true
	s.CheckUpdate(context.Background())
	require.NotNil(t, s.Snapshot().Error)

	fail = false
	s.CheckUpdate(context.Background())
	assert.Nil(t, s.Snapshot().Error)
}

func TestUnmountDiscardsInFlightCheck(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	lookup := &fakeLookup{fn: func(int) (*update.AppStoreInfo, error) {
		close(entered)
		<-release
		return &update.AppStoreInfo{Version: "9.0.0", TrackViewURL: "u"}, nil
	}}
	rec := &errorRecorder{}
	s := New(update.NewPullGateway(lookup, iosIdentity), nil, Options{CheckOnMount: true, OnError: rec.record})

	done := s.Mount(context.Background())
	<-entered

	before := s.Snapshot()
	assert.True(t, before.IsChecking)

	s.Unmount()
	close(release)
	<-done

	assert.Equal(t, before, s.Snapshot())
	assert.Empty(t, rec.all())

	// Actions after unmount are ignored as well.
	s.CheckUpdate(context.Background())
	s.OpenStore(context.Background())
	assert.Equal(t, before, s.Snapshot())
	assert.Len(t, lookup.calls, 1)
}

func TestUnmountDiscardsInFlightFailure(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	lookup := &fakeLookup{fn: func(int) (*update.AppStoreInfo, error) {
		close(entered)
		<-release
		return nil, errors.New("late failure")
	}}
	rec := &errorRecorder{}
	s := New(update.NewPullGateway(lookup, iosIdentity), nil, Options{CheckOnMount: true, OnError: rec.record})

	done := s.Mount(context.Background())
	<-entered
	before := s.Snapshot()
	s.Unmount()
	close(release)
	<-done

	assert.Equal(t, before, s.Snapshot())
	assert.Empty(t, rec.all())
}

func TestMountChecksOnce(t *testing.T) {
	lookup := staticLookup("2.0.0")
	s := New(update.NewPullGateway(lookup, iosIdentity), nil, Options{CheckOnMount: true})

	<-s.Mount(context.Background())
	<-s.Mount(context.Background())

	assert.Len(t, lookup.calls, 1)
	assert.True(t, s.Snapshot().IsUpdateAvailable)
}

func TestMountWithoutCheck(t *testing.T) {
	lookup := staticLookup("2.0.0")
	s := New(update.NewPullGateway(lookup, iosIdentity), nil, Options{})

	<-s.Mount(context.Background())

	assert.Empty(t, lookup.calls)
	assert.Equal(t, State{CurrentVersion: "1.0.0"}, s.Snapshot())
}

func TestOverlappingChecksLatestWins(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	lookup := &fakeLookup{fn: func(call int) (*update.AppStoreInfo, error) {
		if call == 1 {
			close(entered)
			<-release
			return &update.AppStoreInfo{Version: "2.0.0", TrackViewURL: "old"}, nil
		}
		return &update.AppStoreInfo{Version: "3.0.0", TrackViewURL: "new"}, nil
	}}
	s := New(update.NewPullGateway(lookup, iosIdentity), nil, Options{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.CheckUpdate(context.Background())
	}()
	<-entered

	s.CheckUpdate(context.Background())
	assert.Equal(t, "3.0.0", s.Snapshot().LatestVersion)

	close(release)
	wg.Wait()

	st := s.Snapshot()
	assert.Equal(t, "3.0.0", st.LatestVersion)
	assert.Equal(t, "new", st.StoreURL)
	assert.False(t, st.IsChecking)
}

func TestStartUpdateFlow(t *testing.T) {
	backend := availableBackend(100)
	s := New(update.NewPushGateway(backend, androidIdentity), nil, Options{})
	ctx := context.Background()

	s.StartUpdate(ctx, update.UpdateTypeFlexible)
	require.Nil(t, s.Snapshot().Error)

	backend.emit(update.InstallState{Status: update.InstallStatusPending})
	assert.False(t, s.Snapshot().IsDownloading)

	backend.emit(update.InstallState{Status: update.InstallStatusDownloading, BytesDownloaded: 50, TotalBytesToDownload: 100})
	st := s.Snapshot()
	assert.True(t, st.IsDownloading)
	assert.False(t, st.IsReadyToInstall)
	assert.Equal(t, 50, st.DownloadProgress)

	backend.emit(update.InstallState{Status: update.InstallStatusDownloaded, BytesDownloaded: 100, TotalBytesToDownload: 100})
	st = s.Snapshot()
	assert.False(t, st.IsDownloading)
	assert.True(t, st.IsReadyToInstall)
	assert.Equal(t, 100, st.DownloadProgress)

	s.CompleteUpdate(ctx)
	backend.mu.Lock()
	assert.Equal(t, 1, backend.completes)
	backend.mu.Unlock()

	backend.emit(update.InstallState{Status: update.InstallStatusInstalling, BytesDownloaded: 100, TotalBytesToDownload: 100})
	backend.emit(update.InstallState{Status: update.InstallStatusInstalled, BytesDownloaded: 100, TotalBytesToDownload: 100})
	st = s.Snapshot()
	assert.False(t, st.IsDownloading)
	assert.True(t, st.IsReadyToInstall, "installed leaves ready-to-install untouched")
	assert.Nil(t, st.Error)
}

func TestStartUpdateFailedFlowResetsFlags(t *testing.T) {
	for _, status := range []update.InstallStatus{update.InstallStatusFailed, update.InstallStatusCanceled} {
		t.Run(status.String(), func(t *testing.T) {
			backend := availableBackend(100)
			s := New(update.NewPushGateway(backend, androidIdentity), nil, Options{})

			s.StartUpdate(context.Background(), update.UpdateTypeFlexible)
			backend.emit(update.InstallState{Status: update.InstallStatusDownloading, BytesDownloaded: 10, TotalBytesToDownload: 100})
			backend.emit(update.InstallState{Status: status})

			st := s.Snapshot()
			assert.False(t, st.IsDownloading)
			assert.False(t, st.IsReadyToInstall)
		})
	}
}

func TestStartUpdateReplacesListener(t *testing.T) {
	backend := availableBackend(100)
	s := New(update.NewPushGateway(backend, androidIdentity), nil, Options{})
	ctx := context.Background()

	var publishes int
	var mu sync.Mutex
	s.OnChange(func(State) {
		mu.Lock()
		publishes++
		mu.Unlock()
	})

	s.StartUpdate(ctx, update.UpdateTypeFlexible)
	s.StartUpdate(ctx, update.UpdateTypeFlexible)

	mu.Lock()
	publishes = 0
	mu.Unlock()

	backend.emit(update.InstallState{Status: update.InstallStatusDownloading, BytesDownloaded: 1, TotalBytesToDownload: 4})
	mu.Lock()
	assert.Equal(t, 1, publishes, "one listener per store")
	mu.Unlock()

	backend.emit(update.InstallState{Status: update.InstallStatusCanceled})
	s.Unmount()

	subs, cancels := backend.counts()
	assert.Equal(t, 1, subs)
	assert.Equal(t, subs, cancels, "no listener outlives the store")
}

func TestStartUpdateNotAvailable(t *testing.T) {
	backend := &fakeBackend{info: update.PlayStoreUpdateInfo{UpdateAvailability: update.AvailabilityNotAvailable}}
	rec := &errorRecorder{}
	s := New(update.NewPushGateway(backend, androidIdentity), nil, Options{OnError: rec.record})

	s.StartUpdate(context.Background(), update.UpdateTypeImmediate)

	st := s.Snapshot()
	require.NotNil(t, st.Error)
	assert.Equal(t, update.KindUpdateNotAvailable, st.Error.Kind)
	assert.Len(t, rec.all(), 1)

	subs, cancels := backend.counts()
	assert.Equal(t, subs, cancels, "failed start leaves no listener")
}

func TestStartUpdateWrapsUntypedFailure(t *testing.T) {
	backend := availableBackend(100)
	backend.startErr = errors.New("activity gone")
	rec := &errorRecorder{}
	s := New(update.NewPushGateway(backend, androidIdentity), nil, Options{OnError: rec.record})

	s.StartUpdate(context.Background(), update.UpdateTypeFlexible)

	st := s.Snapshot()
	require.NotNil(t, st.Error)
	assert.Equal(t, update.KindUpdateFailed, st.Error.Kind)
	assert.Contains(t, st.Error.Error(), "activity gone")
	assert.Len(t, rec.all(), 1)
}

func TestCompleteUpdateBeforeDownloadIsNoop(t *testing.T) {
	backend := availableBackend(100)
	rec := &errorRecorder{}
	s := New(update.NewPushGateway(backend, androidIdentity), nil, Options{OnError: rec.record})
	s.StartUpdate(context.Background(), update.UpdateTypeFlexible)
	backend.emit(update.InstallState{Status: update.InstallStatusDownloading, BytesDownloaded: 1, TotalBytesToDownload: 2})

	before := s.Snapshot()
	s.CompleteUpdate(context.Background())

	assert.Equal(t, before, s.Snapshot())
	assert.Empty(t, rec.all())
	backend.mu.Lock()
	assert.Zero(t, backend.completes)
	backend.mu.Unlock()
}

func TestCompleteUpdateFailureKeepsReadyFlag(t *testing.T) {
	backend := availableBackend(100)
	backend.completeErr = errors.New("install blocked")
	rec := &errorRecorder{}
	s := New(update.NewPushGateway(backend, androidIdentity), nil, Options{OnError: rec.record})

	s.StartUpdate(context.Background(), update.UpdateTypeFlexible)
	backend.emit(update.InstallState{Status: update.InstallStatusDownloaded, BytesDownloaded: 2, TotalBytesToDownload: 2})
	s.CompleteUpdate(context.Background())

	st := s.Snapshot()
	require.NotNil(t, st.Error)
	assert.Equal(t, update.KindUpdateFailed, st.Error.Kind)
	assert.True(t, st.IsReadyToInstall)
	assert.Len(t, rec.all(), 1)
}

func TestFlowActionsAreNoopsOnPull(t *testing.T) {
	s := New(update.NewPullGateway(staticLookup("2.0.0"), iosIdentity), nil, Options{})
	before := s.Snapshot()

	s.StartUpdate(context.Background(), update.UpdateTypeImmediate)
	s.CompleteUpdate(context.Background())

	assert.Equal(t, before, s.Snapshot())
}

func TestUnmountStopsInstallUpdates(t *testing.T) {
	backend := availableBackend(100)
	s := New(update.NewPushGateway(backend, androidIdentity), nil, Options{})
	s.StartUpdate(context.Background(), update.UpdateTypeFlexible)
	backend.emit(update.InstallState{Status: update.InstallStatusDownloading, BytesDownloaded: 1, TotalBytesToDownload: 4})

	s.Unmount()
	before := s.Snapshot()
	backend.emit(update.InstallState{Status: update.InstallStatusDownloaded, BytesDownloaded: 4, TotalBytesToDownload: 4})

	assert.Equal(t, before, s.Snapshot())
}

func TestOpenStore(t *testing.T) {
	opener := &fakeOpener{canOpen: true}
	s := New(update.NewPushGateway(availableBackend(1), androidIdentity), opener, Options{})

	s.OpenStore(context.Background())

	assert.Nil(t, s.Snapshot().Error)
	assert.Equal(t, []string{"https://play.google.com/store/apps/details?id=com.example.app"}, opener.opened)
}

func TestOpenStoreErrors(t *testing.T) {
	tests := []struct {
		name     string
		lookup   *fakeLookup
		opener   update.URLOpener
		wantKind update.Kind
		wantMsg  string
	}{
		{
			name:     "cannot open",
			lookup:   staticLookup("1.0.0"),
			opener:   &fakeOpener{canOpen: false},
			wantKind: update.KindUnknown,
			wantMsg:  "cannot open store URL",
		},
		{
			name:     "no opener",
			lookup:   staticLookup("1.0.0"),
			wantKind: update.KindUnknown,
			wantMsg:  "no URL opener",
		},
		{
			name: "lookup fails",
			lookup: &fakeLookup{fn: func(int) (*update.AppStoreInfo, error) {
				return nil, update.NewError(update.KindAppNotFound, "gone")
			}},
			opener:   &fakeOpener{canOpen: true},
			wantKind: update.KindAppNotFound,
		},
		{
			name:     "open fails",
			lookup:   staticLookup("1.0.0"),
			opener:   &fakeOpener{canOpen: true, openErr: errors.New("no browser")},
			wantKind: update.KindUnknown,
			wantMsg:  "no browser",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &errorRecorder{}
			s := New(update.NewPullGateway(tt.lookup, iosIdentity), tt.opener, Options{OnError: rec.record})

			s.OpenStore(context.Background())

			st := s.Snapshot()
			require.NotNil(t, st.Error)
			assert.Equal(t, tt.wantKind, st.Error.Kind)
			assert.Contains(t, st.Error.Error(), tt.wantMsg)
			assert.Len(t, rec.all(), 1)
		})
	}
}

func TestOnChangeReceivesCommittedStates(t *testing.T) {
	s := New(update.NewPullGateway(staticLookup("2.0.0"), iosIdentity), nil, Options{})

	states := make(chan State, 8)
	remove := s.OnChange(func(st State) { states <- st })

	s.CheckUpdate(context.Background())

	first := <-states
	assert.True(t, first.IsChecking)
	second := <-states
	assert.False(t, second.IsChecking)
	assert.True(t, second.IsUpdateAvailable)

	remove()
	s.CheckUpdate(context.Background())
	select {
	case st := <-states:
		t.Fatalf("unexpected state after remove: %+v", st)
	case <-time.After(20 * time.Millisecond):
	}
}
