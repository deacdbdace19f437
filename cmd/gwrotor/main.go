// Package main is the entry point for the gwrotor CLI.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/egresslab/gwrotor/internal/admin"
	"github.com/egresslab/gwrotor/internal/cloud"
	"github.com/egresslab/gwrotor/internal/config"
	"github.com/egresslab/gwrotor/internal/manager"
	"github.com/egresslab/gwrotor/internal/observability"
	"github.com/egresslab/gwrotor/internal/rotor"
	"github.com/egresslab/gwrotor/internal/secrets"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

const usage = `Usage: gwrotor [flags] <command> [args]

Commands:
  build            provision gateway endpoints in every configured region
  teardown         delete tracked gateway endpoints (-force overrides reuse)
  status           discover and print the current fleet state
  get <url>        fetch a URL through a randomly selected endpoint
  serve            run the admin server and keep the fleet alive

Flags:
`

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
	args        []string
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	if len(flags.args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(flags, cfg)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting gwrotor",
		observability.String("version", version),
		observability.String("config", flags.configPath),
		observability.String("command", flags.args[0]),
	)

	app := initApplication(cfg, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown tracer", observability.Error(err))
		}
	}()

	if err := runCommand(app, flags, cfg, logger); err != nil {
		logger.Error("command failed", observability.Error(err))
		os.Exit(1)
	}
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("GWROTOR_CONFIG_PATH", "configs/gwrotor.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", os.Getenv("GWROTOR_LOG_LEVEL"),
		"Log level (debug, info, warn, error); overrides the config file")
	logFormat := flag.String("log-format", os.Getenv("GWROTOR_LOG_FORMAT"),
		"Log format (json, console); overrides the config file")
	showVersion := flag.Bool("version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
		args:        flag.Args(),
	}
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("gwrotor version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger, with CLI flags taking precedence
// over the config file.
func initLogger(flags cliFlags, cfg *config.Config) observability.Logger {
	level := flags.logLevel
	if level == "" {
		level = cfg.GetLogLevel()
	}
	format := flags.logFormat
	if format == "" {
		format = cfg.GetLogFormat()
	}

	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  level,
		Format: format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// application holds all application components.
type application struct {
	manager *manager.Manager
	metrics *observability.Metrics
	tracer  *observability.Tracer
	config  *config.Config
}

// initApplication wires credentials, driver, and manager.
func initApplication(cfg *config.Config, logger observability.Logger) *application {
	metrics := observability.NewMetrics("gwrotor")
	tracer := initTracer(cfg, logger)

	source, err := secrets.NewSource(cfg.Secrets)
	if err != nil {
		logger.Fatal("failed to create credential source", observability.Error(err))
	}

	creds, err := source.Credentials(context.Background())
	if err != nil {
		logger.Fatal("failed to load credentials",
			observability.String("source", source.Name()),
			observability.Error(err),
		)
	}

	driver := cloud.NewAWSDriver(&cloud.AWSDriverConfig{
		Credentials:     creds,
		PaginationLimit: cfg.PaginationLimit,
	},
		cloud.WithDriverLogger(logger),
		cloud.WithDriverMetrics(metrics),
	)

	var exec manager.Executor
	if workers := cfg.GetWorkers(); workers < 0 {
		exec = manager.NewPerTask()
	} else {
		exec = manager.NewWorkerPool(workers)
	}

	mgr, err := manager.New(cfg.ManagerConfig(), driver,
		manager.WithLogger(logger),
		manager.WithMetrics(metrics),
		manager.WithExecutor(exec),
		manager.WithTracer(tracer),
	)
	if err != nil {
		logger.Fatal("failed to create proxy manager", observability.Error(err))
	}

	return &application{
		manager: mgr,
		metrics: metrics,
		tracer:  tracer,
		config:  cfg,
	}
}

// initTracer initializes the tracer.
func initTracer(cfg *config.Config, logger observability.Logger) *observability.Tracer {
	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:    "gwrotor",
		ServiceVersion: version,
		Enabled:        cfg.Tracing.Enabled,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
		Insecure:       cfg.Tracing.Insecure,
	})
	if err != nil {
		logger.Fatal("failed to initialize tracer", observability.Error(err))
	}
	return tracer
}

// runCommand dispatches the subcommand.
func runCommand(app *application, flags cliFlags, cfg *config.Config, logger observability.Logger) error {
	ctx := context.Background()

	switch cmd := flags.args[0]; cmd {
	case "build":
		return runBuild(ctx, app, logger)
	case "teardown":
		return runTeardown(ctx, app, flags.args[1:], logger)
	case "status":
		return runStatus(ctx, app)
	case "get":
		return runGet(ctx, app, flags.args[1:], cfg, logger)
	case "serve":
		return runServe(ctx, app, flags, cfg, logger)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// runBuild provisions the fleet and prints the resulting state.
func runBuild(ctx context.Context, app *application, logger observability.Logger) error {
	if err := app.manager.Build(ctx); err != nil {
		return err
	}
	logBuildResult(app, logger)
	return nil
}

func logBuildResult(app *application, logger observability.Logger) {
	_, regions := app.manager.Status()
	total := 0
	for _, r := range regions {
		total += r.Tracked
		logger.Info("region ready",
			observability.String("region", r.Region),
			observability.Int("tracked", r.Tracked),
			observability.Int("desired", r.Desired),
		)
	}
	logger.Info("build complete",
		observability.Int("endpoints", total),
		observability.Int("regions", len(regions)),
	)
}

// runTeardown discovers existing gateways first so a fresh process can
// delete what an earlier one left behind.
func runTeardown(ctx context.Context, app *application, args []string, logger observability.Logger) error {
	fs := flag.NewFlagSet("teardown", flag.ExitOnError)
	force := fs.Bool("force", false, "Delete gateways even when reuse is configured")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := app.manager.Discover(ctx); err != nil {
		return err
	}
	return app.manager.Teardown(ctx, *force)
}

// runStatus discovers the fleet and prints it as JSON.
func runStatus(ctx context.Context, app *application) error {
	if err := app.manager.Discover(ctx); err != nil {
		return err
	}

	state, regions := app.manager.Status()
	out := struct {
		State   string                 `json:"state"`
		Target  string                 `json:"target"`
		Regions []manager.RegionStatus `json:"regions"`
	}{
		State:   state.String(),
		Target:  app.manager.TargetBaseURL(),
		Regions: regions,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// runGet fetches one URL through the fleet and writes the body to
// stdout. Pools are built lazily by the routing client.
func runGet(ctx context.Context, app *application, args []string, cfg *config.Config, logger observability.Logger) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: gwrotor get <url>")
	}

	client, err := rotor.New(app.manager,
		rotor.WithLogger(logger),
		rotor.WithDebug(cfg.Debug),
		rotor.WithHostHeader(cfg.HostHeader),
	)
	if err != nil {
		return err
	}

	resp, err := client.Get(ctx, args[0])
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	logger.Info("request routed",
		observability.String("url", args[0]),
		observability.Int("status", resp.StatusCode),
	)

	_, err = io.Copy(os.Stdout, resp.Body)
	return err
}

// runServe builds the fleet, serves the admin endpoints, and tears
// down on shutdown (respecting reuse).
func runServe(ctx context.Context, app *application, flags cliFlags, cfg *config.Config, logger observability.Logger) error {
	if err := app.manager.Build(ctx); err != nil {
		return err
	}
	logBuildResult(app, logger)

	srv, err := admin.New(cfg.GetAdminListen(), app.manager,
		admin.WithLogger(logger),
		admin.WithMetrics(app.metrics),
	)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}

	watcher := startConfigWatcher(flags.configPath, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", observability.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if watcher != nil {
		_ = watcher.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to stop admin server gracefully", observability.Error(err))
	}

	return app.manager.Teardown(shutdownCtx, false)
}

// startConfigWatcher watches the config file. Fleet shape changes need
// a restart; the watcher surfaces edits so operators notice stale
// processes.
func startConfigWatcher(configPath string, logger observability.Logger) *config.Watcher {
	watcher, err := config.NewWatcher(configPath, func(newCfg *config.Config) {
		logger.Warn("configuration changed on disk; restart to apply fleet changes",
			observability.String("target", newCfg.TargetBaseURL),
		)
	}, config.WithWatcherLogger(logger))
	if err != nil {
		logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(context.Background()); err != nil {
		logger.Warn("failed to start config watcher", observability.Error(err))
	}

	return watcher
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
