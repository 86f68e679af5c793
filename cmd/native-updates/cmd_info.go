package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	ui "github.com/parrotnavy/rn-native-updates/internal/ui"
	"github.com/parrotnavy/rn-native-updates/pkg/update"
)

type infoResult struct {
	Platform       update.Platform             `json:"platform" yaml:"platform"`
	PackageName    string                      `json:"packageName" yaml:"packageName"`
	CurrentVersion string                      `json:"currentVersion" yaml:"currentVersion"`
	BuildNumber    int64                       `json:"buildNumber" yaml:"buildNumber"`
	AppStore       *update.AppStoreInfo        `json:"appStore,omitempty" yaml:"appStore,omitempty"`
	PlayStore      *update.PlayStoreUpdateInfo `json:"playStore,omitempty" yaml:"playStore,omitempty"`
	OSVersion      string                      `json:"osVersion,omitempty" yaml:"osVersion,omitempty"`
	Compatible     *bool                       `json:"compatible,omitempty" yaml:"compatible,omitempty"`
}

func createInfoCmd() *cobra.Command {
	var osVersion string
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the store record for the app",
		Long: `Show the App Store record (iOS) or the Play availability record (Android).

On iOS the release notes are rendered and the minimum OS version is checked
against --os-version, or the version of the host OS when not given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, func(ctx context.Context, d *Deps) error {
				return handleInfo(ctx, d, osVersion)
			})
		},
	}
	cmd.Flags().StringVar(&osVersion, "os-version", "", "OS version to check the minimum OS version against")
	return cmd
}

func handleInfo(ctx context.Context, d *Deps, osVersion string) error {
	res := infoResult{
		Platform:       d.Client.Platform(),
		PackageName:    d.Client.PackageName(),
		CurrentVersion: d.Client.CurrentVersion(),
		BuildNumber:    d.Client.BuildNumber(),
	}

	switch res.Platform {
	case update.PlatformIOS:
		info, err := d.Client.AppStoreInfo(ctx, d.fetchOptions())
		if err != nil {
			return err
		}
		res.AppStore = info
		if osVersion == "" && d.HostOS != nil {
			v, err := d.HostOS(ctx)
			if err != nil {
				d.Log.Debug().Err(err).Msg("host OS version unavailable")
			}
			osVersion = v
		}
		if osVersion != "" {
			ok := update.IsCompatible(info.MinimumOSVersion, osVersion)
			res.OSVersion = osVersion
			res.Compatible = &ok
		}
	default:
		info, err := d.Client.CheckPlayStoreUpdate(ctx)
		if err != nil {
			return err
		}
		res.PlayStore = info
	}

	if d.Printer.Structured() {
		return d.Printer.Value(res)
	}
	printInfoText(d.Printer, res)
	return nil
}

func printInfoText(p ui.Printer, res infoResult) {
	p.Section(fmt.Sprintf("%s · %s", res.PackageName, res.Platform))
	p.KeyValueLine("Installed", res.CurrentVersion, "")
	if res.BuildNumber > 0 {
		p.KeyValueLine("Build", strconv.FormatInt(res.BuildNumber, 10), "dim")
	}

	if a := res.AppStore; a != nil {
		p.KeyValueLine("Store version", a.Version, "blue")
		p.KeyValueLine("Track ID", strconv.FormatInt(a.TrackID, 10), "dim")
		p.KeyValueLine("Released", a.CurrentVersionReleaseDate, "")
		p.KeyValueLine("Store URL", a.TrackViewURL, "dim")
		if a.MinimumOSVersion != "" {
			p.KeyValueLine("Minimum OS", a.MinimumOSVersion, "")
		}
		if res.Compatible != nil {
			if *res.Compatible {
				p.KeyValueLine("Compatible", "yes (OS "+res.OSVersion+")", "green")
			} else {
				p.KeyValueLine("Compatible", "no (OS "+res.OSVersion+")", "red")
			}
		}
		if a.ReleaseNotes != nil && *a.ReleaseNotes != "" {
			p.Section("Release notes")
			p.Textf("%s\n", ui.RenderMarkdown(*a.ReleaseNotes, terminalWidth(p), p.Colors.Enabled))
		}
	}

	if s := res.PlayStore; s != nil {
		color := "dim"
		if s.UpdateAvailability == update.AvailabilityAvailable {
			color = "yellow"
		}
		p.KeyValueLine("Availability", s.UpdateAvailability.String(), color)
		if s.AvailableVersionCode != nil {
			p.KeyValueLine("Version code", strconv.FormatInt(*s.AvailableVersionCode, 10), "blue")
		}
		p.KeyValueLine("Flexible", strconv.FormatBool(s.IsFlexibleUpdateAllowed), "")
		p.KeyValueLine("Immediate", strconv.FormatBool(s.IsImmediateUpdateAllowed), "")
		p.KeyValueLine("Priority", strconv.Itoa(s.UpdatePriority), "")
		if s.ClientVersionStalenessDays != nil {
			p.KeyValueLine("Stale for", humanize.Comma(int64(*s.ClientVersionStalenessDays))+" days", "")
		}
		if s.TotalBytesToDownload > 0 {
			p.KeyValueLine("Download", ui.FormatBytes(s.TotalBytesToDownload), "")
		}
	}
}

func terminalWidth(p ui.Printer) int {
	if f, ok := p.Writer().(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 20 {
			if w > 100 {
				return 100
			}
			return w
		}
	}
	return 80
}
