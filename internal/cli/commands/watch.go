package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/neuron/internal/cli/ui"
	"github.com/conduit-lang/neuron/internal/metrics"
	"github.com/conduit-lang/neuron/internal/watch"
)

// shutdownTimeout bounds how long in-flight requests get on Ctrl+C
const shutdownTimeout = 5 * time.Second

// NewWatchCommand creates the watch command
func NewWatchCommand() *cobra.Command {
	var (
		port      int
		host      string
		profiling bool
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Start the dev server with live reload",
		Long: `Start the development server with automatic file watching and live reload.

The watch command monitors the project for changes and automatically:
  • Rebuilds the bundle when a file in the dependency graph changes
  • Keeps serving the last good bundle while a build is broken
  • Tells connected browsers to reload, or shows the build errors

Routes:
  /bundle.js          latest good bundle
  /neuron/client.js   live-reload client script
  /neuron/reload      live-reload websocket
  /status             build state as JSON
  /metrics            Prometheus metrics

Examples:
  # Start on the port from neuron.yml (default 3000)
  neuron watch

  # Use a custom port and expose pprof
  neuron watch --port 8080 --profiling

  # Enable debug logging
  neuron watch --verbose
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

			cfg, err := loadConfig()
			if err != nil {
				fmt.Fprint(errOut, ui.ConfigError(err.Error(), nil, colorsOff()))
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}

			logger, err := newLogger(cfg, verbose, errOut)
			if err != nil {
				return err
			}
			defer logger.Sync()

			collector := metrics.New()
			sys, closeStore, err := openSystem(ctx, cfg, logger, collector, errOut)
			if err != nil {
				fmt.Fprint(errOut, ui.BuildError(err.Error(), nil, colorsOff()))
				return err
			}
			defer closeStore()

			serverCfg := watch.DefaultDevServerConfig()
			serverCfg.Host = cfg.Server.Host
			serverCfg.Port = cfg.Server.Port
			serverCfg.Profiling = profiling

			devServer, err := watch.NewDevServer(sys, serverCfg, collector, logger)
			if err != nil {
				return fmt.Errorf("failed to create dev server: %w", err)
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = ui.WithSpinner(errOut, "Initial build", colorsOff(), func() error {
				return devServer.Start(ctx)
			})
			if err != nil {
				devServer.Stop(context.Background())
				return fmt.Errorf("failed to start dev server: %w", err)
			}

			// Display banner
			banner := color.New(color.FgCyan, color.Bold)
			info := color.New(color.FgWhite)

			fmt.Fprintln(out)
			banner.Fprintln(out, "📦 Neuron Development Server")
			info.Fprintf(out, "   Bundle: http://%s%s\n", devServer.Addr(), watch.BundlePath)
			info.Fprintf(out, "   Reload: <script src=\"http://%s%s\"></script>\n", devServer.Addr(), watch.ClientPath)
			if profiling {
				info.Fprintf(out, "   Pprof:  http://%s%s/\n", devServer.Addr(), watch.ProfilingPath)
			}
			fmt.Fprintln(out)
			color.New(color.FgYellow).Fprintln(out, "⌨️  Press Ctrl+C to stop")
			fmt.Fprintln(out)

			// Block until signal or cancellation
			<-ctx.Done()

			fmt.Fprintln(out, "\nShutting down...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := devServer.Stop(shutdownCtx); err != nil {
				return fmt.Errorf("error stopping dev server: %w", err)
			}

			color.New(color.FgGreen).Fprintln(out, "Goodbye!")
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 3000, "Dev server port (default: server.port from neuron.yml)")
	cmd.Flags().StringVar(&host, "host", "localhost", "Dev server host (default: server.host from neuron.yml)")
	cmd.Flags().BoolVar(&profiling, "profiling", false, "Mount pprof under "+watch.ProfilingPath)
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logs")

	return cmd
}
