package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/parrotnavy/rn-native-updates/internal/exitcodes"
	ui "github.com/parrotnavy/rn-native-updates/internal/ui"
	"github.com/parrotnavy/rn-native-updates/pkg/playstore"
)

func createBridgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "In-app update bridge tools",
	}

	var (
		listen   string
		failAt   int
		interval time.Duration
	)
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the update simulator over the bridge protocol",
		Long: `Expose a simulated Play in-app update backend over WebSocket JSON-RPC, so
other invocations can connect with --platform android --bridge ws://ADDR.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCfg()
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			simCfg := simulatorConfig(cfg)
			simCfg.FailAfter = failAt
			simCfg.Interval = interval
			sim := playstore.NewSimulator(simCfg, log)
			defer sim.Close()

			ln, err := net.Listen("tcp", listen)
			if err != nil {
				return exitcodes.WrapError(exitcodes.PreconditionFailed, "cannot listen on "+listen, err)
			}
			p := ui.NewPrinterFromGlobal(cfg.Output)
			if !p.Structured() {
				p.Info("Bridge listening on ws://" + ln.Addr().String())
			}
			return serveBridge(cmd.Context(), ln, playstore.NewBridgeHandler(sim, log))
		},
	}
	serveCmd.Flags().StringVar(&listen, "listen", "127.0.0.1:8765", "Address to listen on")
	serveCmd.Flags().IntVar(&failAt, "fail-after", 0, "Fail downloads after N progress steps")
	serveCmd.Flags().DurationVar(&interval, "interval", 300*time.Millisecond, "Delay between progress notifications")

	cmd.AddCommand(serveCmd)
	return cmd
}

// serveBridge serves h on ln until ctx is done.
func serveBridge(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
