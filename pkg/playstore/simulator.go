package playstore

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/parrotnavy/rn-native-updates/pkg/update"
)

// SimulatorConfig scripts a Simulator.
type SimulatorConfig struct {
	// Info is what QueryAvailability returns until an update is installed.
	Info update.PlayStoreUpdateInfo
	// TotalBytes is the simulated download size.
	TotalBytes int64
	// Chunks is the number of progress notifications during download.
	Chunks int
	// Interval is the delay between notifications.
	Interval time.Duration
	// FailAfter fails the download after that many chunks when > 0.
	FailAfter int
}

// DefaultSimulatorConfig returns a flexible update of 20 MB in ten steps.
func DefaultSimulatorConfig(versionCode int64) SimulatorConfig {
	staleness := 3
	return SimulatorConfig{
		Info: update.PlayStoreUpdateInfo{
			UpdateAvailability:         update.AvailabilityAvailable,
			AvailableVersionCode:       &versionCode,
			IsFlexibleUpdateAllowed:    true,
			IsImmediateUpdateAllowed:   true,
			ClientVersionStalenessDays: &staleness,
			UpdatePriority:             2,
			TotalBytesToDownload:       20 << 20,
		},
		TotalBytes: 20 << 20,
		Chunks:     10,
		Interval:   300 * time.Millisecond,
	}
}

// Simulator is an in-process update.UpdateBackend that plays back a
// scripted install flow.
type Simulator struct {
	cfg SimulatorConfig
	log zerolog.Logger

	mu         sync.Mutex
	info       update.PlayStoreUpdateInfo
	handler    func(update.InstallState)
	handlerGen uint64
	running    bool
	downloaded bool
	stop       chan struct{}
	wg         sync.WaitGroup
}

var _ update.UpdateBackend = (*Simulator)(nil)

// NewSimulator creates a Simulator.
func NewSimulator(cfg SimulatorConfig, log zerolog.Logger) *Simulator {
	if cfg.Chunks <= 0 {
		cfg.Chunks = 1
	}
	if cfg.TotalBytes <= 0 {
		cfg.TotalBytes = cfg.Info.TotalBytesToDownload
	}
	return &Simulator{
		cfg:  cfg,
		log:  log.With().Str("component", "simulator").Logger(),
		info: cfg.Info,
		stop: make(chan struct{}),
	}
}

func (s *Simulator) QueryAvailability(context.Context) (*update.PlayStoreUpdateInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := s.info
	if s.running {
		info.UpdateAvailability = update.AvailabilityInProgress
	}
	return &info, nil
}

func (s *Simulator) StartFlow(_ context.Context, t update.UpdateType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.info.UpdateAvailability != update.AvailabilityAvailable {
		return update.NewError(update.KindUpdateNotAvailable, "no update available")
	}
	if !s.info.Allows(t) {
		return update.Errorf(update.KindUpdateFailed, "%s update not allowed", t)
	}
	if s.running {
		return update.NewError(update.KindUpdateFailed, "update already in progress")
	}
	s.running = true
	s.downloaded = false

	s.log.Debug().Stringer("type", t).Msg("simulated flow started")
	s.wg.Add(1)
	go s.download(t)
	return nil
}

// CompleteFlow installs a downloaded flexible update. It is a no-op
// before the download finished.
func (s *Simulator) CompleteFlow(context.Context) error {
	s.mu.Lock()
	ready := s.downloaded
	s.downloaded = false
	if ready {
		s.wg.Add(1)
	}
	s.mu.Unlock()

	if ready {
		go func() {
			defer s.wg.Done()
			s.install()
		}()
	}
	return nil
}

func (s *Simulator) Subscribe(fn func(update.InstallState)) (func(), error) {
	s.mu.Lock()
	s.handlerGen++
	gen := s.handlerGen
	s.handler = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.handlerGen == gen {
			s.handler = nil
		}
	}, nil
}

// Close stops any running flow and waits for it.
func (s *Simulator) Close() {
	s.mu.Lock()
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Simulator) download(t update.UpdateType) {
	defer s.wg.Done()

	total := s.cfg.TotalBytes
	s.emit(update.InstallState{Status: update.InstallStatusPending, TotalBytesToDownload: total})

	for i := 1; i <= s.cfg.Chunks; i++ {
		if !s.sleep() {
			return
		}
		if s.cfg.FailAfter > 0 && i > s.cfg.FailAfter {
			s.finish(update.InstallState{Status: update.InstallStatusFailed, TotalBytesToDownload: total})
			return
		}
		done := total * int64(i) / int64(s.cfg.Chunks)
		progress := 0
		if total > 0 {
			progress = int(done * 100 / total)
		}
		s.emit(update.InstallState{
			Status:               update.InstallStatusDownloading,
			BytesDownloaded:      done,
			TotalBytesToDownload: total,
			DownloadProgress:     progress,
		})
	}

	// Completion is accepted as soon as the host can observe the download.
	if t == update.UpdateTypeFlexible {
		s.mu.Lock()
		s.downloaded = true
		s.mu.Unlock()
	}
	s.emit(update.InstallState{
		Status:               update.InstallStatusDownloaded,
		BytesDownloaded:      total,
		TotalBytesToDownload: total,
		DownloadProgress:     100,
	})

	if t == update.UpdateTypeImmediate {
		s.install()
	}
}

func (s *Simulator) install() {
	total := s.cfg.TotalBytes
	s.emit(update.InstallState{Status: update.InstallStatusInstalling, BytesDownloaded: total, TotalBytesToDownload: total, DownloadProgress: 100})
	if !s.sleep() {
		return
	}

	s.mu.Lock()
	s.info.UpdateAvailability = update.AvailabilityNotAvailable
	s.mu.Unlock()
	s.finish(update.InstallState{Status: update.InstallStatusInstalled, BytesDownloaded: total, TotalBytesToDownload: total, DownloadProgress: 100})
}

func (s *Simulator) finish(st update.InstallState) {
	s.mu.Lock()
	s.running = false
	s.downloaded = false
	s.mu.Unlock()
	s.emit(st)
}

func (s *Simulator) sleep() bool {
	if s.cfg.Interval <= 0 {
		select {
		case <-s.stop:
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(s.cfg.Interval)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.stop:
		return false
	}
}

func (s *Simulator) emit(st update.InstallState) {
	s.mu.Lock()
	fn := s.handler
	s.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}
