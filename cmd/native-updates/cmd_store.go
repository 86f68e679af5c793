package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/parrotnavy/rn-native-updates/internal/exitcodes"
	"github.com/parrotnavy/rn-native-updates/pkg/update"
)

// withDeps builds Deps for cmd, runs fn and releases them.
func withDeps(cmd *cobra.Command, fn func(ctx context.Context, d *Deps) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	d, err := newDeps(ctx)
	if err != nil {
		return err
	}
	defer d.Close()
	return fn(ctx, d)
}

func createLatestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Show the latest version in the store",
		Long: `Print the latest store version.

On iOS this is the App Store version string. On Android it is the available
version code, or the installed build number when no update is available.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, handleLatest)
		},
	}
}

func handleLatest(ctx context.Context, d *Deps) error {
	v, err := d.Client.LatestVersion(ctx, d.fetchOptions())
	if err != nil {
		return err
	}
	if d.Printer.Structured() {
		return d.Printer.Value(map[string]string{
			"platform":      string(d.Client.Platform()),
			"latestVersion": v,
		})
	}
	d.Printer.Textf("%s\n", v)
	return nil
}

func createStoreURLCmd() *cobra.Command {
	var copyURL bool
	cmd := &cobra.Command{
		Use:   "store-url",
		Short: "Print the app's store page URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, func(ctx context.Context, d *Deps) error {
				return handleStoreURL(ctx, d, copyURL)
			})
		},
	}
	cmd.Flags().BoolVar(&copyURL, "copy", false, "Copy the URL to the clipboard")
	return cmd
}

func handleStoreURL(ctx context.Context, d *Deps, copyURL bool) error {
	u, err := d.Client.StoreURL(ctx, d.Cfg.Country)
	if err != nil {
		return err
	}
	copied := false
	if copyURL {
		if err := d.Clipboard(u); err != nil {
			d.Log.Warn().Err(err).Msg("clipboard unavailable")
		} else {
			copied = true
		}
	}

	if d.Printer.Structured() {
		return d.Printer.Value(map[string]any{"storeUrl": u, "copied": copied})
	}
	d.Printer.Textf("%s\n", u)
	if copyURL {
		if copied {
			d.Printer.Success("Copied to clipboard")
		} else {
			d.Printer.Warn("Could not copy to clipboard")
		}
	}
	return nil
}

type needUpdateFlags struct {
	current string
	latest  string
	depth   int
	strict  bool
}

func createNeedUpdateCmd() *cobra.Command {
	var f needUpdateFlags
	cmd := &cobra.Command{
		Use:   "need-update",
		Short: "Decide whether the installed version is outdated",
		Long: `Compare the installed version with the store and report whether an update
is needed, along with the store URL.

--current and --latest override either side of the comparison; with --latest
no version query is made. --depth 1 only reports major updates.
With --strict the command exits with code 10 when an update is needed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, func(ctx context.Context, d *Deps) error {
				if !cmd.Flags().Changed("depth") {
					f.depth = d.Cfg.Depth
				}
				return handleNeedUpdate(ctx, d, f)
			})
		},
	}
	cmd.Flags().StringVar(&f.current, "current", "", "Override the installed version")
	cmd.Flags().StringVar(&f.latest, "latest", "", "Override the store version")
	cmd.Flags().IntVar(&f.depth, "depth", 0, "Compare only the first N segments (0 = all)")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "Exit with code 10 if an update is needed")
	return cmd
}

func handleNeedUpdate(ctx context.Context, d *Deps, f needUpdateFlags) error {
	if f.depth < 0 {
		return exitcodes.InvalidArgsErrorf("--depth must be >= 0, got %d", f.depth)
	}
	dec, err := d.Client.NeedUpdate(ctx, update.NeedUpdateOptions{
		FetchOptions:   d.fetchOptions(),
		CurrentVersion: f.current,
		LatestVersion:  f.latest,
		Depth:          f.depth,
	})
	if err != nil {
		return err
	}

	if d.Printer.Structured() {
		if err := d.Printer.Value(dec); err != nil {
			return err
		}
	} else {
		if dec.IsNeeded {
			d.Printer.Warn("Update available")
		} else {
			d.Printer.Success("Up to date")
		}
		d.Printer.KeyValueLine("Current", dec.CurrentVersion, "")
		d.Printer.KeyValueLine("Latest", dec.LatestVersion, "blue")
		d.Printer.KeyValueLine("Store", dec.StoreURL, "dim")
	}

	if f.strict && dec.IsNeeded {
		return exitcodes.Silent(exitcodes.UpdateNeeded)
	}
	return nil
}

func createOpenStoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open-store",
		Short: "Open the app's store page in the browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, handleOpenStore)
		},
	}
}

func handleOpenStore(ctx context.Context, d *Deps) error {
	if err := d.Client.OpenStore(ctx, d.Cfg.Country); err != nil {
		return err
	}
	if !d.Printer.Structured() {
		d.Printer.Success("Opened store page")
	}
	return nil
}
