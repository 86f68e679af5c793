package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/parrotnavy/rn-native-updates/internal/config"
	"github.com/parrotnavy/rn-native-updates/internal/exitcodes"
	"github.com/parrotnavy/rn-native-updates/internal/logging"
	ui "github.com/parrotnavy/rn-native-updates/internal/ui"
)

// Version information - set via -ldflags during build
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// rootCmd wires the CLI surface using Cobra. Persistent flags are
// applied to a loaded config in loadCfg(). Subcommands call into
// pkg/appupdate through the Deps built by newDeps().
var rootCmd = &cobra.Command{
	Use:           "native-updates",
	Short:         "Check and install app store updates",
	Long:          "Query the App Store or drive Play in-app updates for a mobile app, the way a host application would.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.InitGlobal(ui.Config{
			NoColor: flagNoColor,
			NoEmoji: flagNoEmoji,
		})
		// Set NO_COLOR env so lipgloss and glamour respect the flag
		if flagNoColor {
			os.Setenv("NO_COLOR", "1")
		}
	},
}

var (
	flagConfig         string
	flagPlatform       string
	flagPackage        string
	flagCurrentVersion string
	flagBuild          string
	flagCountry        string
	flagBridge         string
	flagOutput         string
	flagLogLevel       string
	flagForceRefresh   bool
	flagNoColor        bool
	flagNoEmoji        bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Config file (default: user config dir/native-updates/config.yaml)")
	pf.StringVar(&flagPlatform, "platform", "", "Target platform: ios|android")
	pf.StringVar(&flagPackage, "package", "", "Bundle identifier or application id")
	pf.StringVar(&flagCurrentVersion, "current-version", "", "Installed version string")
	pf.StringVar(&flagBuild, "build", "", "Installed build number (Android version code)")
	pf.StringVar(&flagCountry, "country", "", "Two-letter App Store region")
	pf.StringVar(&flagBridge, "bridge", "", "In-app update bridge: ws://host:port or \"sim\"")
	pf.StringVarP(&flagOutput, "output", "o", "", "Output format: json|yaml|text")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug|info|warn|error")
	pf.BoolVar(&flagForceRefresh, "force-refresh", false, "Bypass the App Store lookup cache")
	pf.BoolVar(&flagNoColor, "no-color", false, "Disable ANSI colors")
	pf.BoolVar(&flagNoEmoji, "no-emoji", false, "Disable emoji output")

	rootCmd.AddCommand(
		createCompareCmd(),
		createLatestCmd(),
		createStoreURLCmd(),
		createNeedUpdateCmd(),
		createOpenStoreCmd(),
		createInfoCmd(),
		createFlowCmd(),
		createWatchCmd(),
		createBridgeCmd(),
	)
}

// Execute runs the root command and exits with the code derived from the
// returned error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		reportError(err)
		os.Exit(exitcodes.CodeForError(err))
	}
}

func reportError(err error) {
	var ec *exitcodes.ErrorWithCode
	if errors.As(err, &ec) && ec.Message == "" && ec.Cause == nil {
		return
	}
	ui.PrintError(os.Stderr, ui.NewColorConfigFromGlobal(), ui.ErrorFor(err))
}

// loadCfg reads defaults, the config file and env via config.Load and then
// applies overrides from persistent flags.
func loadCfg() (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, exitcodes.ValidationErr(err)
	}
	if flagPlatform != "" {
		cfg.Platform = strings.ToLower(flagPlatform)
	}
	if flagPackage != "" {
		cfg.PackageName = flagPackage
	}
	if flagCurrentVersion != "" {
		cfg.CurrentVersion = flagCurrentVersion
	}
	if flagBuild != "" {
		cfg.BuildNumber = flagBuild
	}
	if flagCountry != "" {
		cfg.Country = flagCountry
	}
	if flagBridge != "" {
		cfg.BridgeURL = flagBridge
	}
	if flagOutput != "" {
		cfg.Output = strings.ToLower(flagOutput)
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagForceRefresh {
		cfg.ForceRefresh = true
	}
	if err := cfg.Validate(); err != nil {
		return cfg, exitcodes.ValidationErr(err)
	}
	return cfg, nil
}

func newLogger(cfg config.Config) zerolog.Logger {
	return logging.New(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
}

// getPrinter returns a Printer for commands that run without a config;
// it honors --output only.
func getPrinter() (ui.Printer, error) {
	switch flagOutput {
	case "":
		return ui.NewPrinterFromGlobal("text"), nil
	case "text", "json", "yaml":
		return ui.NewPrinterFromGlobal(flagOutput), nil
	}
	return ui.Printer{}, exitcodes.InvalidArgsErrorf("invalid --output: %s (use json|yaml|text)", flagOutput)
}
