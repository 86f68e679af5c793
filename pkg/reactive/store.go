package reactive

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/parrotnavy/rn-native-updates/pkg/update"
)

// Store owns a State. All mutation goes through its actions, which never
// return errors: failures are recorded in State.Error and passed to
// Options.OnError.
//
// After Unmount the state is frozen. Work still in flight completes, but
// its results are discarded.
type Store struct {
	gw     update.Gateway
	flow   update.FlowGateway
	engine *update.Engine
	opener update.URLOpener
	opts   Options
	log    zerolog.Logger

	mu       sync.Mutex
	state    State
	checkGen uint64
	flowGen  uint64
	sub      update.Subscription
	mounted  bool
	torn     bool
	watchers map[uint64]func(State)
	nextW    uint64

	// publishMu keeps watcher notifications in commit order.
	publishMu sync.Mutex
}

// New creates a Store over gw. A gateway that implements
// update.FlowGateway is checked through its native availability flags and
// supports the install flow; any other gateway is checked by comparing
// versions.
func New(gw update.Gateway, opener update.URLOpener, opts Options) *Store {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	s := &Store{
		gw:       gw,
		opener:   opener,
		opts:     opts,
		log:      log.With().Str("component", "reactive").Logger(),
		watchers: make(map[uint64]func(State)),
	}
	if fg, ok := gw.(update.FlowGateway); ok {
		s.flow = fg
	} else {
		s.engine = update.NewEngine(gw)
	}

	s.state.CurrentVersion = opts.CurrentVersion
	if s.state.CurrentVersion == "" {
		s.state.CurrentVersion = gw.LocalVersion()
	}
	return s
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnChange registers fn to receive every committed state. fn must not call
// back into the Store synchronously.
func (s *Store) OnChange(fn func(State)) (remove func()) {
	s.mu.Lock()
	s.nextW++
	id := s.nextW
	s.watchers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

// Mount activates the store. With CheckOnMount set it starts one check in
// the background; the returned channel closes when that check is done.
func (s *Store) Mount(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	s.mu.Lock()
	start := !s.mounted && !s.torn && s.opts.CheckOnMount
	s.mounted = true
	s.mu.Unlock()

	if !start {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		s.CheckUpdate(ctx)
	}()
	return done
}

// Unmount releases the progress listener and freezes the state.
func (s *Store) Unmount() {
	s.mu.Lock()
	if s.torn {
		s.mu.Unlock()
		return
	}
	s.torn = true
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Remove()
	}
	s.log.Debug().Msg("store unmounted")
}

// CheckUpdate refreshes availability. When checks overlap, only the most
// recently started one commits its result.
func (s *Store) CheckUpdate(ctx context.Context) {
	s.mu.Lock()
	if s.torn {
		s.mu.Unlock()
		return
	}
	s.checkGen++
	gen := s.checkGen
	s.state.IsChecking = true
	s.state.Error = nil
	s.mu.Unlock()
	s.publish()

	var (
		apply func(*State)
		err   error
	)
	if s.flow != nil {
		apply, err = s.checkFlow(ctx)
	} else {
		apply, err = s.checkVersion(ctx)
	}

	var uerr *update.Error
	if err != nil {
		uerr = update.AsError(err, update.KindCheckFailed)
	}

	s.mu.Lock()
	switch {
	case s.torn:
		s.mu.Unlock()
		s.log.Debug().Msg("discarding check result after unmount")
		return
	case gen != s.checkGen:
		s.mu.Unlock()
		s.log.Debug().Uint64("generation", gen).Msg("discarding superseded check result")
		return
	}
	if uerr != nil {
		s.state.Error = uerr
	} else {
		apply(&s.state)
	}
	s.state.IsChecking = false
	s.mu.Unlock()
	s.publish()

	if uerr != nil {
		s.report(uerr)
	}
}

func (s *Store) checkFlow(ctx context.Context) (func(*State), error) {
	info, err := s.flow.FetchLatest(ctx, update.FetchOptions{Country: s.opts.Country})
	if err != nil {
		return nil, err
	}
	return func(st *State) {
		st.PlayStoreInfo = info.PlayStore
		st.IsUpdateAvailable = info.Availability == update.AvailabilityAvailable
		st.LatestVersion = info.Version
		st.StoreURL = info.StoreURL
	}, nil
}

func (s *Store) checkVersion(ctx context.Context) (func(*State), error) {
	d, err := s.engine.NeedUpdate(ctx, update.NeedUpdateOptions{
		FetchOptions: update.FetchOptions{
			Country:      s.opts.Country,
			ForceRefresh: s.opts.forceRefresh(),
		},
		CurrentVersion: s.opts.CurrentVersion,
		LatestVersion:  s.opts.LatestVersion,
		Depth:          s.opts.Depth,
	})
	if err != nil {
		return nil, err
	}
	return func(st *State) {
		st.IsUpdateAvailable = d.IsNeeded
		st.LatestVersion = d.LatestVersion
		st.StoreURL = d.StoreURL
	}, nil
}

// StartUpdate begins an in-app update flow. It does nothing on gateways
// without one. The progress listener is registered before the flow starts
// and replaces the listener of any earlier call.
func (s *Store) StartUpdate(ctx context.Context, t update.UpdateType) {
	if s.flow == nil {
		return
	}

	s.mu.Lock()
	if s.torn {
		s.mu.Unlock()
		return
	}
	s.state.Error = nil
	prev := s.sub
	s.sub = nil
	s.flowGen++
	gen := s.flowGen
	s.mu.Unlock()
	s.publish()

	if prev != nil {
		prev.Remove()
	}

	sub := s.flow.AddListener(func(st update.InstallState) { s.applyInstallState(gen, st) })
	s.mu.Lock()
	if s.torn || gen != s.flowGen {
		s.mu.Unlock()
		sub.Remove()
		return
	}
	s.sub = sub
	s.mu.Unlock()

	if err := s.flow.BeginUpdateFlow(ctx, t); err != nil {
		s.dropListener(gen)
		s.fail(update.AsError(err, update.KindUpdateFailed))
	}
}

func (s *Store) dropListener(gen uint64) {
	s.mu.Lock()
	var sub update.Subscription
	if gen == s.flowGen {
		sub = s.sub
		s.sub = nil
	}
	s.mu.Unlock()
	if sub != nil {
		sub.Remove()
	}
}

func (s *Store) applyInstallState(gen uint64, st update.InstallState) {
	s.mu.Lock()
	if s.torn || gen != s.flowGen {
		s.mu.Unlock()
		return
	}

	s.state.DownloadProgress = st.DownloadProgress
	switch st.Status {
	case update.InstallStatusDownloading:
		s.state.IsDownloading = true
		s.state.IsReadyToInstall = false
	case update.InstallStatusDownloaded:
		s.state.IsDownloading = false
		s.state.IsReadyToInstall = true
	case update.InstallStatusInstalled:
		s.state.IsDownloading = false
	case update.InstallStatusFailed, update.InstallStatusCanceled:
		s.state.IsDownloading = false
		s.state.IsReadyToInstall = false
	}
	s.mu.Unlock()

	s.log.Debug().Stringer("status", st.Status).Int("progress", st.DownloadProgress).Msg("install state")
	s.publish()
}

// CompleteUpdate installs a downloaded update. Before the download
// finished it has no effect.
func (s *Store) CompleteUpdate(ctx context.Context) {
	if s.flow == nil || s.unmounted() {
		return
	}
	if err := s.flow.CompleteUpdateFlow(ctx); err != nil {
		s.fail(update.AsError(err, update.KindUpdateFailed))
	}
}

// OpenStore opens the app's store page through the URL opener.
func (s *Store) OpenStore(ctx context.Context) {
	if s.unmounted() {
		return
	}
	if err := s.openStore(ctx); err != nil {
		s.fail(update.AsError(err, update.KindUnknown))
	}
}

func (s *Store) openStore(ctx context.Context) error {
	url, err := s.gw.ResolveStoreURL(ctx, s.opts.Country)
	if err != nil {
		return err
	}
	if s.opener == nil {
		return update.NewError(update.KindUnknown, "no URL opener configured")
	}
	ok, err := s.opener.CanOpen(ctx, url)
	if err != nil {
		return err
	}
	if !ok {
		return update.NewError(update.KindUnknown, "cannot open store URL: "+url)
	}
	return s.opener.Open(ctx, url)
}

func (s *Store) unmounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.torn
}

func (s *Store) fail(e *update.Error) {
	s.mu.Lock()
	if s.torn {
		s.mu.Unlock()
		return
	}
	s.state.Error = e
	s.mu.Unlock()
	s.publish()
	s.report(e)
}

func (s *Store) report(e *update.Error) {
	s.log.Debug().Str("kind", string(e.Kind)).Msg(e.Message)
	if s.opts.OnError != nil {
		s.opts.OnError(e)
	}
}

func (s *Store) publish() {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	snap := s.state
	fns := make([]func(State), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
