package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/patternbench/patternbench/internal/config"
	"github.com/patternbench/patternbench/internal/events"
	"github.com/patternbench/patternbench/internal/health"
	"github.com/patternbench/patternbench/internal/logging"
	"github.com/patternbench/patternbench/internal/monitor"
	"github.com/patternbench/patternbench/internal/patterns"
	"github.com/patternbench/patternbench/internal/runner"
	"github.com/patternbench/patternbench/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web control panel",
	Long: `Start the patternbench server: REST API, SSE event stream, and the
execution engine behind them.

Examples:
  # Start with defaults (localhost:8080)
  patternbench serve

  # Start on custom host and port
  patternbench serve --host 0.0.0.0 --port 3000

  # Disable CORS (for production behind a reverse proxy)
  patternbench serve --no-cors`,
	RunE: runServe,
}

var (
	serveHost   string
	servePort   int
	serveNoCORS bool
)

// eventBusBuffer is the per-subscriber channel depth for SSE fanout.
const eventBusBuffer = 100

// healthProbeInterval keeps the CPU delta warm so the first dashboard
// request sees real numbers instead of a zero sample.
const healthProbeInterval = 30 * time.Second

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1",
		"Host address to bind to")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080,
		"Port to listen on")
	serveCmd.Flags().BoolVar(&serveNoCORS, "no-cors", false,
		"Disable CORS headers")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})

	// Event bus feeds the SSE stream; everything downstream publishes into it.
	bus := events.New(eventBusBuffer)
	defer bus.Close()

	mon := monitor.New(monitor.Options{
		MaxHistory: cfg.Monitor.MaxHistory,
		Bus:        bus,
		Logger:     logger,
	})

	janitor := monitor.NewJanitor(mon, cfg.Monitor.CleanupIntervalOrDefault(), logger)
	if err := janitor.Start(); err != nil {
		return fmt.Errorf("starting janitor: %w", err)
	}
	defer janitor.Stop()

	engine := runner.New(runner.Config{
		ExecutablePath: cfg.Runner.Executable,
		DefaultTimeout: cfg.Runner.TimeoutOrDefault(),
		MaxInputChars:  cfg.Runner.MaxInputChars,
		MaxOutputBytes: cfg.Runner.MaxOutputBytes,
	}, mon, logger)

	library := patterns.New(patterns.Options{
		Root:     cfg.Patterns.Dir,
		CacheTTL: cfg.Patterns.CacheTTLOrDefault(),
		Bus:      bus,
		Logger:   logger,
	})
	defer library.Close()
	if cfg.Patterns.Watch {
		if err := library.Watch(); err != nil {
			logger.Warn("pattern watch unavailable", slog.String("error", err.Error()))
		}
	}

	catalog := newProviderService(cfg, logger)

	store, err := newOutputStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("opening output store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Warn("closing output store", slog.String("error", closeErr.Error()))
		}
	}()

	checker := health.NewChecker(cfg.Runner.Executable, logger)

	api := web.NewAPIHandler(web.APIOptions{
		Runner:        engine,
		Monitor:       mon,
		Patterns:      library,
		Providers:     catalog,
		Outputs:       store,
		Health:        checker,
		DefaultVendor: cfg.Defaults.Vendor,
		DefaultModel:  cfg.Defaults.Model,
		Logger:        logger,
	})

	webCfg := buildWebConfig(cfg, serveNoCORS)
	server := web.New(webCfg, logger, web.WithEventBus(bus), web.WithAPI(api))

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("executable", cfg.Runner.Executable),
		slog.String("patterns", cfg.Patterns.Dir),
		slog.Bool("cors", webCfg.EnableCORS),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		checker.Check(gctx)
		ticker := time.NewTicker(healthProbeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				checker.Check(gctx)
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		return server.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// buildWebConfig derives the server configuration from the application
// config and the --no-cors flag.
func buildWebConfig(cfg *config.Config, noCORS bool) web.Config {
	webCfg := web.DefaultConfig()
	webCfg.Host = cfg.Server.Host
	webCfg.Port = cfg.Server.Port
	webCfg.CORSOrigins = cfg.Server.AllowedOrigins
	webCfg.EnableCORS = !noCORS
	return webCfg
}
