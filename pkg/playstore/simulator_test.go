package playstore

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parrotnavy/rn-native-updates/pkg/update"
)

func testSimConfig() SimulatorConfig {
	cfg := DefaultSimulatorConfig(42)
	cfg.TotalBytes = 400
	cfg.Chunks = 4
	cfg.Interval = 0
	return cfg
}

// collect subscribes to b and returns a channel of delivered states.
func collect(t *testing.T, b update.UpdateBackend) <-chan update.InstallState {
	t.Helper()
	ch := make(chan update.InstallState, 32)
	cancel, err := b.Subscribe(func(s update.InstallState) { ch <- s })
	require.NoError(t, err)
	t.Cleanup(cancel)
	return ch
}

func next(t *testing.T, ch <-chan update.InstallState) update.InstallState {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for install state")
		return update.InstallState{}
	}
}

func TestSimulatorFlexibleFlow(t *testing.T) {
	sim := NewSimulator(testSimConfig(), zerolog.Nop())
	defer sim.Close()
	ch := collect(t, sim)
	ctx := context.Background()

	require.NoError(t, sim.StartFlow(ctx, update.UpdateTypeFlexible))

	assert.Equal(t, update.InstallStatusPending, next(t, ch).Status)
	for _, want := range []int{25, 50, 75, 100} {
		s := next(t, ch)
		assert.Equal(t, update.InstallStatusDownloading, s.Status)
		assert.Equal(t, want, s.DownloadProgress)
	}
	s := next(t, ch)
	assert.Equal(t, update.InstallStatusDownloaded, s.Status)
	assert.Equal(t, 100, s.DownloadProgress)

	info, err := sim.QueryAvailability(ctx)
	require.NoError(t, err)
	assert.Equal(t, update.AvailabilityInProgress, info.UpdateAvailability)

	require.NoError(t, sim.CompleteFlow(ctx))
	assert.Equal(t, update.InstallStatusInstalling, next(t, ch).Status)
	assert.Equal(t, update.InstallStatusInstalled, next(t, ch).Status)

	sim.Close()
	info, err = sim.QueryAvailability(ctx)
	require.NoError(t, err)
	assert.Equal(t, update.AvailabilityNotAvailable, info.UpdateAvailability)

	err = sim.StartFlow(ctx, update.UpdateTypeFlexible)
	assert.True(t, update.IsKind(err, update.KindUpdateNotAvailable))
}

func TestSimulatorImmediateFlowInstallsWithoutComplete(t *testing.T) {
	sim := NewSimulator(testSimConfig(), zerolog.Nop())
	defer sim.Close()
	ch := collect(t, sim)

	require.NoError(t, sim.StartFlow(context.Background(), update.UpdateTypeImmediate))

	var last update.InstallState
	for last.Status != update.InstallStatusInstalled {
		last = next(t, ch)
	}
}

func TestSimulatorFailure(t *testing.T) {
	cfg := testSimConfig()
	cfg.FailAfter = 2
	sim := NewSimulator(cfg, zerolog.Nop())
	defer sim.Close()
	ch := collect(t, sim)

	require.NoError(t, sim.StartFlow(context.Background(), update.UpdateTypeFlexible))

	var last update.InstallState
	for !last.Status.Terminal() {
		last = next(t, ch)
	}
	assert.Equal(t, update.InstallStatusFailed, last.Status)

	// A failed flow can be retried.
	require.NoError(t, sim.StartFlow(context.Background(), update.UpdateTypeFlexible))
}

func TestSimulatorRejects(t *testing.T) {
	cfg := testSimConfig()
	cfg.Info.IsImmediateUpdateAllowed = false
	cfg.Interval = time.Hour
	sim := NewSimulator(cfg, zerolog.Nop())
	defer sim.Close()
	ctx := context.Background()

	err := sim.StartFlow(ctx, update.UpdateTypeImmediate)
	assert.True(t, update.IsKind(err, update.KindUpdateFailed))

	require.NoError(t, sim.StartFlow(ctx, update.UpdateTypeFlexible))
	err = sim.StartFlow(ctx, update.UpdateTypeFlexible)
	assert.True(t, update.IsKind(err, update.KindUpdateFailed), "second start while running")
}

func TestSimulatorCompleteBeforeDownloadIsNoop(t *testing.T) {
	sim := NewSimulator(testSimConfig(), zerolog.Nop())
	defer sim.Close()
	ch := collect(t, sim)

	require.NoError(t, sim.CompleteFlow(context.Background()))
	select {
	case s := <-ch:
		t.Fatalf("unexpected state %v", s.Status)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSimulatorSubscribeReplacesHandler(t *testing.T) {
	sim := NewSimulator(testSimConfig(), zerolog.Nop())
	defer sim.Close()

	first := make(chan update.InstallState, 32)
	cancelFirst, err := sim.Subscribe(func(s update.InstallState) { first <- s })
	require.NoError(t, err)
	second := collect(t, sim)

	// Cancelling the stale subscription must not detach the current one.
	cancelFirst()

	require.NoError(t, sim.StartFlow(context.Background(), update.UpdateTypeFlexible))
	assert.Equal(t, update.InstallStatusPending, next(t, second).Status)
	assert.Empty(t, first)
}
