// SPDX-License-Identifier: MIT

// clf-agent parses Common Log Format access logs into structured records.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/kolapsis/clf-agent/agent"
	"github.com/kolapsis/clf-agent/agent/config"
	"github.com/kolapsis/clf-agent/agent/sink"
)

// CLI represents the command-line interface.
type CLI struct {
	Config  string `short:"c" name:"config" help:"Path to configuration file" type:"existingfile"`
	Output  string `short:"o" name:"output" help:"Output format: text, json or yaml"`
	OnError string `name:"on-error" help:"What to do with unparsable lines: abort or skip"`
	Verbose int    `short:"v" name:"verbose" type:"counter" help:"Increase verbosity (-v, -vv, -vvv)"`

	Parse ParseCmd `cmd:"" default:"withargs" help:"Parse log files once (default command)"`
	Tail  TailCmd  `cmd:"" help:"Follow log files and parse new lines"`
}

// ParseCmd parses files once.
type ParseCmd struct {
	Files []string `arg:"" optional:"" help:"Log files to parse (replace configured sources)" type:"existingfile"`
	Lines int      `short:"n" name:"lines" help:"Limit number of lines to process per file" default:"0"`
}

// TailCmd follows files.
type TailCmd struct {
	Files     []string `arg:"" optional:"" help:"Log files to follow (replace configured sources)" type:"existingfile"`
	FromStart bool     `name:"from-start" help:"Read existing content before following"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("clf-agent"),
		kong.Description("Common Log Format parser"),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}

// Run executes the parse command.
func (p *ParseCmd) Run(cli *CLI) error {
	cfg, err := cli.buildConfig(p.Files, false)
	if err != nil {
		return err
	}

	ag, err := cli.newAgent(cfg, os.Stdout)
	if err != nil {
		return err
	}

	return ag.ProcessAll(context.Background(), p.Lines)
}

// Run executes the tail command.
func (t *TailCmd) Run(cli *CLI) error {
	cfg, err := cli.buildConfig(t.Files, t.FromStart)
	if err != nil {
		return err
	}

	ag, err := cli.newAgent(cfg, os.Stdout)
	if err != nil {
		return err
	}

	return ag.Run(context.Background())
}

// buildConfig loads the configuration file, if any, and applies flags and
// positional files on top of it.
func (cli *CLI) buildConfig(files []string, fromStart bool) (*config.Config, error) {
	cfg := config.Default()
	if cli.Config != "" {
		loaded, err := config.Load(cli.Config)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	if cli.Output != "" {
		cfg.Output = cli.Output
	}
	if cli.OnError != "" {
		cfg.OnError = cli.OnError
	}

	if len(files) > 0 {
		cfg.Sources = cfg.Sources[:0]
		for _, f := range files {
			cfg.Sources = append(cfg.Sources, config.Source{Path: f, FromStart: fromStart})
		}
	} else if fromStart {
		for i := range cfg.Sources {
			cfg.Sources[i].FromStart = true
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (cli *CLI) newAgent(cfg *config.Config, w io.Writer) (*agent.Agent, error) {
	out, err := sink.New(cfg.Output, w)
	if err != nil {
		return nil, err
	}

	ag, err := agent.New(agent.Options{
		Config:    cfg,
		Sink:      out,
		Logger:    createLogger(cli.Verbose),
		Verbosity: cli.Verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("creating agent: %w", err)
	}
	return ag, nil
}

// createLogger creates a logger based on verbosity level.
func createLogger(verbosity int) *slog.Logger {
	var level slog.Level
	switch verbosity {
	case 0:
		level = slog.LevelWarn
	case 1:
		level = slog.LevelInfo
	case 2:
		level = slog.LevelDebug
	default:
		level = slog.LevelDebug - 4 // Even more verbose
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// Use text handler for CLI
	handler := slog.NewTextHandler(os.Stderr, opts)
	return slog.New(handler)
}
