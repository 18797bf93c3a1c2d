// SPDX-License-Identifier: MIT

// Package config provides configuration parsing and validation for clf-agent.
package config

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/kolapsis/clf-agent/agent/sink"
)

// Error policies.
const (
	// OnErrorAbort stops processing at the first unparsable line.
	OnErrorAbort = "abort"
	// OnErrorSkip logs unparsable lines and keeps going.
	OnErrorSkip = "skip"
)

// Config represents the main agent configuration.
type Config struct {
	Output  string   `yaml:"output"`   // "text", "json" or "yaml"
	OnError string   `yaml:"on_error"` // "abort" or "skip"
	Sources []Source `yaml:"sources"`
}

// Source represents a log file to read.
type Source struct {
	Path      string `yaml:"path"`
	FromStart bool   `yaml:"from_start"` // follow mode: read existing content first
}

// Default returns a configuration with defaults set and no sources.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse parses configuration from YAML data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration fields.
func (c *Config) setDefaults() {
	if c.Output == "" {
		c.Output = sink.FormatText
	}

	if c.OnError == "" {
		c.OnError = OnErrorAbort
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !slices.Contains(sink.Formats, c.Output) {
		return fmt.Errorf("output must be one of: text, json, yaml; got '%s'", c.Output)
	}

	if c.OnError != OnErrorAbort && c.OnError != OnErrorSkip {
		return fmt.Errorf("on_error must be 'abort' or 'skip', got '%s'", c.OnError)
	}

	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}

	for i, src := range c.Sources {
		if err := src.Validate(); err != nil {
			return fmt.Errorf("source[%d]: %w", i, err)
		}
	}

	return nil
}

// Validate validates a source configuration.
func (s *Source) Validate() error {
	if s.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// SkipErrors reports whether unparsable lines should be skipped.
func (c *Config) SkipErrors() bool {
	return c.OnError == OnErrorSkip
}
