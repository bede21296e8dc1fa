package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/operator/pkg/agent"
	"github.com/entrhq/operator/pkg/security/domain"
)

const (
	defaultOutputDir = ".operator/runs"
	defaultTimeout   = 10 * time.Minute
)

// RunFile describes one headless run.
type RunFile struct {
	// Task is the natural language instruction
	Task string `yaml:"task"`

	// Navigation confinement. An empty allow-list leaves navigation open;
	// a nil block-list means the built-in defaults.
	AllowedDomains []string `yaml:"allowed_domains"`
	BlockedDomains []string `yaml:"blocked_domains"`

	MaxSteps      int           `yaml:"max_steps"`
	StartFromTask bool          `yaml:"start_from_task"`
	Headless      *bool         `yaml:"headless"`
	Timeout       time.Duration `yaml:"timeout"`
	OutputDir     string        `yaml:"output_dir"`
}

// DefaultRunFile returns the settings used when no file is given.
func DefaultRunFile() *RunFile {
	return &RunFile{
		MaxSteps:      agent.DefaultMaxSteps,
		StartFromTask: true,
		Timeout:       defaultTimeout,
		OutputDir:     defaultOutputDir,
	}
}

// LoadRunFile reads a YAML run file over the defaults.
func LoadRunFile(path string) (*RunFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}

	rf := DefaultRunFile()
	if err := yaml.Unmarshal(data, rf); err != nil {
		return nil, fmt.Errorf("failed to parse run file: %w", err)
	}
	return rf, nil
}

// Validate checks the run file.
func (r *RunFile) Validate() error {
	if r.Task == "" {
		return fmt.Errorf("task description is required")
	}
	if r.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be positive")
	}
	if r.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if r.OutputDir == "" {
		return fmt.Errorf("output_dir is required")
	}
	if _, err := r.Filter(); err != nil {
		return err
	}
	return nil
}

// Filter builds the safety filter for the run.
func (r *RunFile) Filter() (*domain.Filter, error) {
	blocked := r.BlockedDomains
	if blocked == nil {
		blocked = domain.DefaultBlocked
	}
	return domain.NewFilter(r.AllowedDomains, blocked)
}
