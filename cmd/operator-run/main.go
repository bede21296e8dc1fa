// Package main provides the one-shot browser operator for CI use. It runs a
// single task to completion, writes run artifacts and exits non-zero unless
// the task passed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrhq/operator/pkg/agent"
	"github.com/entrhq/operator/pkg/artifact"
	"github.com/entrhq/operator/pkg/config"
	"github.com/entrhq/operator/pkg/logging"
	"github.com/entrhq/operator/pkg/tools/browser"
	"github.com/entrhq/operator/pkg/types"
)

const version = "0.1.0"

// CLIConfig holds command-line configuration
type CLIConfig struct {
	Task        string
	RunFile     string
	OutputDir   string
	MaxSteps    int
	Headless    bool
	Timeout     time.Duration
	ConfigFile  string
	APIKey      string
	BaseURL     string
	Model       string
	ShowVersion bool

	set map[string]bool
}

func main() {
	cli := parseFlags()

	if cli.ShowVersion {
		fmt.Printf("operator-run v%s\n", version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	passed, err := run(ctx, cli)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "operator-run: %v\n", err)
		os.Exit(1)
	}
	if !passed {
		os.Exit(1)
	}
}

func parseFlags() *CLIConfig {
	cli := &CLIConfig{set: make(map[string]bool)}

	flag.StringVar(&cli.Task, "task", "", "Task description (required if no run file)")
	flag.StringVar(&cli.RunFile, "file", "", "Path to run file (YAML)")
	flag.StringVar(&cli.OutputDir, "output", defaultOutputDir, "Directory for run artifacts")
	flag.IntVar(&cli.MaxSteps, "max-steps", agent.DefaultMaxSteps, "Maximum decision steps")
	flag.BoolVar(&cli.Headless, "headless", true, "Run the browser without a window")
	flag.DurationVar(&cli.Timeout, "timeout", defaultTimeout, "Overall run timeout")
	flag.StringVar(&cli.ConfigFile, "config", "", "Path to configuration file (default ~/.operator/config.json)")
	flag.StringVar(&cli.APIKey, "api-key", "", "Decision service API key (overrides OPENAI_API_KEY)")
	flag.StringVar(&cli.BaseURL, "base-url", "", "Decision service base URL (overrides OPENAI_BASE_URL)")
	flag.StringVar(&cli.Model, "model", "", "Decision model (overrides OPERATOR_MODEL)")
	flag.BoolVar(&cli.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Operator Run - one-shot browser task for CI\n\n")
		fmt.Fprintf(os.Stderr, "Usage: operator-run [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  operator-run -task \"Open https://example.com and check the heading says Example Domain\"\n")
		fmt.Fprintf(os.Stderr, "  operator-run -file checkout.yaml -headless=false\n\n")
	}

	flag.Parse()
	flag.Visit(func(f *flag.Flag) { cli.set[f.Name] = true })
	return cli
}

// resolveRunFile loads the run file, or builds one from flags, and applies
// explicitly set flags on top.
func resolveRunFile(cli *CLIConfig) (*RunFile, error) {
	rf := DefaultRunFile()
	if cli.RunFile != "" {
		loaded, err := LoadRunFile(cli.RunFile)
		if err != nil {
			return nil, err
		}
		rf = loaded
	}

	if cli.Task != "" {
		rf.Task = cli.Task
	}
	if cli.set["output"] || rf.OutputDir == "" {
		rf.OutputDir = cli.OutputDir
	}
	if cli.set["max-steps"] {
		rf.MaxSteps = cli.MaxSteps
	}
	if cli.set["timeout"] {
		rf.Timeout = cli.Timeout
	}
	if cli.set["headless"] {
		rf.Headless = &cli.Headless
	}

	if err := rf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run configuration: %w", err)
	}
	return rf, nil
}

//nolint:gocyclo
func run(ctx context.Context, cli *CLIConfig) (bool, error) {
	rf, err := resolveRunFile(cli)
	if err != nil {
		return false, err
	}

	logger := logging.NewWriterLogger("operator-run", os.Stderr)

	cfg, err := config.Load(cli.ConfigFile)
	if err != nil {
		return false, fmt.Errorf("failed to load configuration: %w", err)
	}
	decider, err := config.BuildDecider(cfg, config.LLMFlags{
		Model:   cli.Model,
		BaseURL: cli.BaseURL,
		APIKey:  cli.APIKey,
	}, logger.With("llm"))
	if err != nil {
		return false, err
	}

	filter, err := rf.Filter()
	if err != nil {
		return false, err
	}

	sessionOpts := cfg.Browser().SessionOptions()
	sessionOpts.Filter = filter
	if rf.Headless != nil {
		sessionOpts.Headless = *rf.Headless
	}

	if rf.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rf.Timeout)
		defer cancel()
	}

	pw := browser.NewPlaywrightRuntime(true, logger.With("playwright"))
	defer func() {
		if err := pw.Stop(); err != nil {
			logger.Warnf("%v", err)
		}
	}()

	report := &artifact.Report{
		Task:      rf.Task,
		Model:     decider.ModelInfo().Name,
		StartTime: time.Now(),
	}

	driver, err := pw.Launch(ctx, sessionOpts)
	if err != nil {
		report.Error = err.Error()
		return false, finish(report, rf.OutputDir, err)
	}
	defer driver.Close()

	ag := agent.New(decider, driver,
		agent.WithFilter(filter),
		agent.WithMaxSteps(rf.MaxSteps),
		agent.WithStartFromTask(rf.StartFromTask),
		agent.WithLogger(logger.With("agent")),
		agent.WithObserver(func(e types.Event) {
			logger.Infof("step %d %s: %s", e.Step, e.Type, e.Message)
		}),
	)

	logger.Infof("task: %s", rf.Task)
	logger.Infof("model: %s, max steps: %d, headless: %t", report.Model, rf.MaxSteps, sessionOpts.Headless)

	result, runErr := ag.Run(ctx, rf.Task)
	report.Result = result
	if runErr != nil {
		report.Error = runErr.Error()
		if errors.Is(runErr, context.DeadlineExceeded) {
			report.Error = fmt.Sprintf("run timed out after %s", rf.Timeout)
		}
	}

	if err := finish(report, rf.OutputDir, nil); err != nil {
		return false, err
	}
	return result != nil && result.Success && runErr == nil, nil
}

// finish stamps the report, writes artifacts and prints the summary. cause
// is returned when nothing else failed.
func finish(report *artifact.Report, outputDir string, cause error) error {
	report.EndTime = time.Now()
	report.Duration = report.EndTime.Sub(report.StartTime)

	writer := artifact.NewWriter(outputDir)
	if err := writer.WriteAll(report); err != nil {
		return fmt.Errorf("failed to write artifacts: %w", err)
	}

	fmt.Println(renderSummary(report, writer.Dir()))
	return cause
}
