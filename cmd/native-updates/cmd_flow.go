package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/parrotnavy/rn-native-updates/internal/exitcodes"
	ui "github.com/parrotnavy/rn-native-updates/internal/ui"
	"github.com/parrotnavy/rn-native-updates/pkg/appupdate"
	"github.com/parrotnavy/rn-native-updates/pkg/update"
)

type flowResult struct {
	Type     string `json:"type" yaml:"type"`
	Status   string `json:"status" yaml:"status"`
	Progress int    `json:"progress" yaml:"progress"`
}

func createFlowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Drive a Play in-app update (Android)",
	}

	var (
		immediate bool
		complete  bool
		timeout   time.Duration
	)
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start an in-app update and follow its progress",
		Long: `Start a flexible (default) or immediate in-app update and show download
progress until the update is downloaded or installed.

A flexible update stops at "downloaded" unless --complete is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, func(ctx context.Context, d *Deps) error {
				t := update.UpdateTypeFlexible
				if immediate {
					t = update.UpdateTypeImmediate
				}
				ctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()
				return handleFlowStart(ctx, d, t, complete)
			})
		},
	}
	startCmd.Flags().BoolVar(&immediate, "immediate", false, "Run an immediate (blocking) update")
	startCmd.Flags().BoolVar(&complete, "complete", false, "Install a flexible update as soon as it is downloaded")
	startCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Give up after this long")

	var completeTimeout time.Duration
	completeCmd := &cobra.Command{
		Use:   "complete",
		Short: "Install a flexible update once its download finishes",
		Long: `Wait for a flexible download that is already running on the device bridge,
then install it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, func(ctx context.Context, d *Deps) error {
				ctx, cancel := context.WithTimeout(ctx, completeTimeout)
				defer cancel()
				return handleFlowComplete(ctx, d)
			})
		},
	}
	completeCmd.Flags().DurationVar(&completeTimeout, "timeout", 10*time.Minute, "Give up after this long")

	cmd.AddCommand(startCmd, completeCmd)
	return cmd
}

// flowWatcher forwards install states from a listener to a channel.
type flowWatcher struct {
	states chan update.InstallState
	done   chan struct{}
	once   sync.Once
	sub    update.Subscription
}

func watchFlow(c *appupdate.Client) *flowWatcher {
	w := &flowWatcher{
		states: make(chan update.InstallState, 16),
		done:   make(chan struct{}),
	}
	w.sub = c.AddUpdateListener(func(s update.InstallState) {
		select {
		case w.states <- s:
		case <-w.done:
		}
	})
	return w
}

func (w *flowWatcher) Close() {
	w.once.Do(func() {
		close(w.done)
		w.sub.Remove()
	})
}

// wait renders states until one satisfies until. Failed and canceled
// flows end the wait with an error.
func (w *flowWatcher) wait(ctx context.Context, prog *ui.InstallProgress, until func(update.InstallStatus) bool) (update.InstallState, error) {
	var last update.InstallState
	for {
		select {
		case <-ctx.Done():
			return last, update.WrapError(update.KindUpdateFailed, "gave up waiting for the update flow", ctx.Err())
		case s := <-w.states:
			last = s
			if prog != nil {
				prog.Update(s)
			}
			switch {
			case s.Status == update.InstallStatusFailed:
				return s, update.NewError(update.KindUpdateFailed, "update failed")
			case s.Status == update.InstallStatusCanceled:
				return s, update.NewError(update.KindUpdateCancelled, "update cancelled by user")
			case until(s.Status):
				return s, nil
			}
		}
	}
}

func (d *Deps) requireAndroid(op string) error {
	if d.Client.Platform() != update.PlatformAndroid {
		return exitcodes.InvalidArgsErrorf("%s requires --platform android", op)
	}
	return nil
}

func (d *Deps) progress() *ui.InstallProgress {
	if d.Printer.Structured() {
		return nil
	}
	return ui.NewInstallProgress(d.Output, d.Printer.Colors)
}

func isInstalled(s update.InstallStatus) bool { return s == update.InstallStatusInstalled }

func isDownloaded(s update.InstallStatus) bool {
	return s == update.InstallStatusDownloaded || s == update.InstallStatusInstalled
}

func handleFlowStart(ctx context.Context, d *Deps, t update.UpdateType, complete bool) error {
	if err := d.requireAndroid("flow start"); err != nil {
		return err
	}
	w := watchFlow(d.Client)
	defer w.Close()
	prog := d.progress()

	if prog != nil {
		d.Printer.Info(fmt.Sprintf("Starting %s update", t))
	}
	if err := d.Client.StartInAppUpdate(ctx, t); err != nil {
		return err
	}

	until := isDownloaded
	if t == update.UpdateTypeImmediate {
		until = isInstalled
	}
	last, err := w.wait(ctx, prog, until)
	if err == nil && complete && last.Status == update.InstallStatusDownloaded {
		if err = d.Client.CompleteInAppUpdate(ctx); err == nil {
			last, err = w.wait(ctx, prog, isInstalled)
		}
	}
	return finishFlow(d, prog, t, last, err)
}

func handleFlowComplete(ctx context.Context, d *Deps) error {
	if err := d.requireAndroid("flow complete"); err != nil {
		return err
	}
	w := watchFlow(d.Client)
	defer w.Close()
	prog := d.progress()

	if prog != nil {
		d.Printer.Info("Waiting for the download to finish")
	}
	last, err := w.wait(ctx, prog, isDownloaded)
	if err == nil && last.Status == update.InstallStatusDownloaded {
		if err = d.Client.CompleteInAppUpdate(ctx); err == nil {
			last, err = w.wait(ctx, prog, isInstalled)
		}
	}
	return finishFlow(d, prog, update.UpdateTypeFlexible, last, err)
}

func finishFlow(d *Deps, prog *ui.InstallProgress, t update.UpdateType, last update.InstallState, err error) error {
	if prog != nil {
		prog.Finish()
	}
	if err != nil {
		return err
	}
	if d.Printer.Structured() {
		return d.Printer.Value(flowResult{Type: t.String(), Status: last.Status.String(), Progress: last.DownloadProgress})
	}
	switch last.Status {
	case update.InstallStatusInstalled:
		d.Printer.Success("Update installed")
	case update.InstallStatusDownloaded:
		d.Printer.Success("Update downloaded")
		d.Printer.Info("Install it with --complete, or with 'flow complete' while the bridge session is open")
	}
	return nil
}
