package main

import (
	"context"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/parrotnavy/rn-native-updates/internal/dashboard"
	"github.com/parrotnavy/rn-native-updates/pkg/reactive"
	"github.com/parrotnavy/rn-native-updates/pkg/update"
)

// watchCoreDeps holds injectable dependencies for runWatchCore.
type watchCoreDeps struct {
	isTTY          func() bool
	runStatic      func(ctx context.Context, d *Deps, store *reactive.Store, opts dashboard.Options) error
	runInteractive func(ctx context.Context, store *reactive.Store, opts dashboard.Options) error
}

// runWatchCore contains the testable logic for the watch RunE handler.
func runWatchCore(ctx context.Context, d *Deps, immediate bool, deps watchCoreDeps) error {
	force := d.Cfg.ForceRefresh
	opts := dashboard.Options{
		Platform:    d.Client.Platform(),
		PackageName: d.Client.PackageName(),
		NoEmoji:     flagNoEmoji,
	}
	if immediate {
		opts.UpdateType = update.UpdateTypeImmediate
	}

	storeOpts := reactive.Options{
		CheckOnMount: d.Cfg.CheckOnMount,
		Country:      d.Cfg.Country,
		Depth:        d.Cfg.Depth,
		OnError: func(e *update.Error) {
			d.Log.Debug().Str("kind", string(e.Kind)).Msg(e.Message)
		},
	}
	// Without --force-refresh the persisted lookup cache is honored.
	storeOpts.ForceRefresh = &force

	if !deps.isTTY() || d.Printer.Structured() {
		storeOpts.CheckOnMount = true
		return deps.runStatic(ctx, d, d.Client.NewStore(storeOpts), opts)
	}
	return deps.runInteractive(ctx, d.Client.NewStore(storeOpts), opts)
}

func createWatchCmd() *cobra.Command {
	var immediate bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live view of the update state",
		Long: `Show the update state and react to keys:

  r  check again        o  open the store page
  s  start the update   c  complete a downloaded update
  h  help               q  quit

s and c are only available on Android. For non-interactive output (pipes,
--output json|yaml) one check is made and its result printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, func(ctx context.Context, d *Deps) error {
				return runWatchCore(ctx, d, immediate, watchCoreDeps{
					isTTY:          func() bool { return term.IsTerminal(int(os.Stdout.Fd())) },
					runStatic:      runWatchStatic,
					runInteractive: runWatchInteractive,
				})
			})
		},
	}
	cmd.Flags().BoolVar(&immediate, "immediate", false, "Start immediate instead of flexible updates")
	return cmd
}

// runWatchStatic performs a single check and prints its result.
func runWatchStatic(ctx context.Context, d *Deps, store *reactive.Store, opts dashboard.Options) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	<-store.Mount(ctx)
	state := store.Snapshot()
	store.Unmount()

	if d.Printer.Structured() {
		return d.Printer.Value(state)
	}
	d.Printer.Textf("%s", dashboard.New(ctx, store, opts).RenderStatic(state))
	if state.Error != nil {
		return state.Error
	}
	return nil
}

// runWatchInteractive launches the Bubble Tea program.
func runWatchInteractive(ctx context.Context, store *reactive.Store, opts dashboard.Options) error {
	return dashboard.Run(ctx, store, opts,
		tea.WithAltScreen(),
		tea.WithInput(os.Stdin),
		tea.WithOutput(os.Stdout),
	)
}
