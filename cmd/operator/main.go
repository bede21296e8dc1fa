// Package main provides the browser operator server: a long-running process
// that exposes browser automation tools over JSON-RPC on stdin/stdout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/entrhq/operator/pkg/config"
	"github.com/entrhq/operator/pkg/jobs"
	"github.com/entrhq/operator/pkg/logging"
	"github.com/entrhq/operator/pkg/server"
	"github.com/entrhq/operator/pkg/tools/browser"
)

var version = "0.1.0"

const idleCheckInterval = time.Minute

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigFile  string
	APIKey      string
	BaseURL     string
	Model       string
	Headless    bool
	MetricsAddr string
	ShowVersion bool

	headlessSet bool
}

func main() {
	cli := parseFlags()

	if cli.ShowVersion {
		fmt.Printf("browser-operator v%s\n", version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cli); err != nil {
		fmt.Fprintf(os.Stderr, "operator: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() *CLIConfig {
	cli := &CLIConfig{}

	flag.StringVar(&cli.ConfigFile, "config", "", "Path to configuration file (default ~/.operator/config.json)")
	flag.StringVar(&cli.APIKey, "api-key", "", "Decision service API key (overrides OPENAI_API_KEY)")
	flag.StringVar(&cli.BaseURL, "base-url", "", "Decision service base URL (overrides OPENAI_BASE_URL)")
	flag.StringVar(&cli.Model, "model", "", "Decision model (overrides OPERATOR_MODEL)")
	flag.BoolVar(&cli.Headless, "headless", true, "Launch browsers without a window")
	flag.StringVar(&cli.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	flag.BoolVar(&cli.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Browser Operator - browser automation over stdio JSON-RPC\n\n")
		fmt.Fprintf(os.Stderr, "Usage: operator [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "headless" {
			cli.headlessSet = true
		}
	})
	return cli
}

//nolint:gocyclo
func run(ctx context.Context, cli *CLIConfig) error {
	logger, err := logging.NewLogger("operator")
	if err != nil {
		// degraded to stderr, keep serving
		logger.Warnf("file logging unavailable: %v", err)
	}
	defer logger.Close()

	cfg, err := config.Load(cli.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	decider, err := config.BuildDecider(cfg, config.LLMFlags{
		Model:   cli.Model,
		BaseURL: cli.BaseURL,
		APIKey:  cli.APIKey,
	}, logger.With("llm"))
	if err != nil {
		return err
	}
	info := decider.ModelInfo()
	logger.Infof("decision service %s at %s", info.Name, info.BaseURL)

	filter, err := cfg.Domains().Filter()
	if err != nil {
		return fmt.Errorf("invalid domain configuration: %w", err)
	}

	sessionOpts := cfg.Browser().SessionOptions()
	if cli.headlessSet {
		sessionOpts.Headless = cli.Headless
	}

	pw := browser.NewPlaywrightRuntime(true, logger.With("playwright"))
	defer func() {
		if err := pw.Stop(); err != nil {
			logger.Errorf("%v", err)
		}
	}()

	sessions := browser.NewSessionManager(pw.Launch, append(
		cfg.Browser().ManagerOptions(),
		browser.WithManagerLogger(logger.With("sessions")),
	)...)

	jobOpts := append(cfg.Jobs().ManagerOptions(),
		jobs.WithMetrics(jobs.NewMetrics("operator", prometheus.DefaultRegisterer)),
		jobs.WithLogger(logger.With("jobs")),
	)
	jobManager := jobs.NewManager(jobOpts...)
	jobManager.StartSweeper(ctx)
	go closeIdleSessions(ctx, sessions, idleCheckInterval, logger)

	if cli.MetricsAddr != "" {
		go serveMetrics(ctx, cli.MetricsAddr, logger)
	}

	srv := server.New(jobManager, sessions, decider,
		server.WithFilter(filter),
		server.WithSessionOptions(sessionOpts),
		server.WithJobTimeout(cfg.Jobs().Timeout()),
		server.WithOperateMaxSteps(cfg.Jobs().MaxSteps()),
		server.WithVersion(version),
		server.WithLogger(logger.With("server")),
	)

	logger.Infof("serving on stdio (headless=%t)", sessionOpts.Headless)
	serveErr := srv.Serve(ctx, os.Stdin, os.Stdout)

	logger.Infof("shutting down")
	jobManager.Shutdown()
	if err := sessions.CloseAll(); err != nil {
		logger.Errorf("%v", err)
	}

	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return serveErr
	}
	return nil
}

// closeIdleSessions reaps browsers nobody has used for the idle timeout.
func closeIdleSessions(ctx context.Context, sessions *browser.SessionManager, every time.Duration, logger *logging.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			closed, err := sessions.CloseIdle()
			if err != nil {
				logger.Warnf("closing idle browsers: %v", err)
			}
			if len(closed) > 0 {
				logger.Infof("closed idle browsers: %v", closed)
			}
		}
	}
}

func serveMetrics(ctx context.Context, addr string, logger *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	hs := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	}()

	logger.Infof("metrics on %s/metrics", addr)
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("metrics server: %v", err)
	}
}
