// SPDX-License-Identifier: MIT

// Package agent wires log sources, the Common Log Format parser and an output
// sink together.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/kolapsis/clf-agent/agent/config"
	"github.com/kolapsis/clf-agent/agent/parser"
	"github.com/kolapsis/clf-agent/agent/sink"
	"github.com/kolapsis/clf-agent/agent/tailer"
)

// Agent reads log lines from its sources, parses them and writes entries to a sink.
type Agent struct {
	cfg        *config.Config
	logger     *slog.Logger
	statsOut   io.Writer
	processors []*sourceProcessor

	mu        sync.Mutex
	running   bool
	startTime time.Time
	tailers   []*tailer.Tailer
}

// sourceProcessor processes lines from a single source.
type sourceProcessor struct {
	source    *config.Source
	sink      sink.Sink
	logger    *slog.Logger
	skip      bool
	verbosity int

	linesRead atomic.Int64
	parsed    atomic.Int64
	failures  [len(parser.Kinds) + 1]atomic.Int64 // indexed by parser.ParseError
}

// Options configures the agent.
type Options struct {
	Config    *config.Config
	Sink      sink.Sink
	Logger    *slog.Logger
	StatsOut  io.Writer // destination of DumpStats; defaults to os.Stderr
	Verbosity int       // 2 or more logs every line
}

// LineError reports an unparsable line. It unwraps to the parser.ParseError.
type LineError struct {
	Path string
	Line int64
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

// Unwrap returns the underlying parse error.
func (e *LineError) Unwrap() error {
	return e.Err
}

// SourceStats holds the processing counters of one source.
type SourceStats struct {
	Path      string
	LinesRead int64
	Parsed    int64
	Errors    map[parser.ParseError]int64
}

// Failed returns the total number of unparsable lines.
func (s SourceStats) Failed() int64 {
	var n int64
	for _, v := range s.Errors {
		n += v
	}
	return n
}

// New creates a new Agent.
func New(opts Options) (*Agent, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	out := opts.Sink
	if out == nil {
		out = sink.Discard
	}

	statsOut := opts.StatsOut
	if statsOut == nil {
		statsOut = os.Stderr
	}

	var processors []*sourceProcessor
	for i := range opts.Config.Sources {
		processors = append(processors, &sourceProcessor{
			source:    &opts.Config.Sources[i],
			sink:      out,
			logger:    logger,
			skip:      opts.Config.SkipErrors(),
			verbosity: opts.Verbosity,
		})
	}

	return &Agent{
		cfg:        opts.Config,
		logger:     logger,
		statsOut:   statsOut,
		processors: processors,
	}, nil
}

// processLine parses a single log line and writes the entry to the sink.
func (p *sourceProcessor) processLine(line string) error {
	n := p.linesRead.Add(1)

	if p.verbosity >= 2 {
		p.logger.Debug("processing line", "path", p.source.Path, "line", n, "text", line)
	}

	entry, err := parser.Parse(line)
	if err != nil {
		var kind parser.ParseError
		if errors.As(err, &kind) && int(kind) < len(p.failures) {
			p.failures[kind].Add(1)
		}

		if p.skip {
			p.logger.Warn("skipping unparsable line", "path", p.source.Path, "line", n, "error", err)
			return nil
		}
		return &LineError{Path: p.source.Path, Line: n, Err: err}
	}

	p.parsed.Add(1)

	if err := p.sink.Write(entry); err != nil {
		return fmt.Errorf("writing entry: %w", err)
	}
	return nil
}

func (p *sourceProcessor) stats() SourceStats {
	s := SourceStats{
		Path:      p.source.Path,
		LinesRead: p.linesRead.Load(),
		Parsed:    p.parsed.Load(),
		Errors:    make(map[parser.ParseError]int64, len(parser.Kinds)),
	}
	for _, kind := range parser.Kinds {
		s.Errors[kind] = p.failures[kind].Load()
	}
	return s
}

// ProcessLine processes a line for a specific source.
func (a *Agent) ProcessLine(sourceIndex int, line string) error {
	if sourceIndex < 0 || sourceIndex >= len(a.processors) {
		return fmt.Errorf("source index %d out of range", sourceIndex)
	}
	return a.processors[sourceIndex].processLine(line)
}

// ProcessFile reads a source file once, from the beginning, processing at
// most limit lines (0 means all). It returns the number of lines read.
func (a *Agent) ProcessFile(sourceIndex int, limit int) (int, error) {
	if sourceIndex < 0 || sourceIndex >= len(a.processors) {
		return 0, fmt.Errorf("source index %d out of range", sourceIndex)
	}

	proc := a.processors[sourceIndex]
	return tailer.ProcessFile(proc.source.Path, proc.processLine, limit)
}

// ProcessAll reads every source once, in order.
// Under the abort policy the first unparsable line stops processing and its
// *LineError is returned.
func (a *Agent) ProcessAll(ctx context.Context, limit int) error {
	for i, proc := range a.processors {
		if err := ctx.Err(); err != nil {
			return err
		}

		a.logger.Info("processing file", "path", proc.source.Path)

		count, err := a.ProcessFile(i, limit)
		if err != nil {
			var lineErr *LineError
			if errors.As(err, &lineErr) {
				return err
			}
			return fmt.Errorf("source %s: %w", proc.source.Path, err)
		}

		st := proc.stats()
		a.logger.Info("processed file",
			"path", proc.source.Path,
			"lines", count,
			"parsed", st.Parsed,
			"failed", st.Failed(),
		)
	}
	return nil
}

// Run follows every source and blocks until ctx is cancelled, a shutdown
// signal arrives, or a source fails.
func (a *Agent) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("agent already running")
	}
	a.running = true
	a.startTime = time.Now()
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(a.processors))

	for _, proc := range a.processors {
		t := tailer.New(proc.source.Path, proc.processLine, a.logger)

		start := t.Start
		if proc.source.FromStart {
			start = t.StartFromBeginning
		}
		if err := start(ctx); err != nil {
			a.stopTailers()
			return fmt.Errorf("starting tailer for %s: %w", proc.source.Path, err)
		}

		a.mu.Lock()
		a.tailers = append(a.tailers, t)
		a.mu.Unlock()

		go func() {
			select {
			case err := <-t.Err():
				errCh <- err
			case <-ctx.Done():
			}
		}()
	}
	defer a.stopTailers()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR1)
	defer signal.Stop(sigChan)

	a.logger.Info("agent started",
		"sources", len(a.processors),
		"output", a.cfg.Output,
		"on_error", a.cfg.OnError,
	)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("shutting down...")
			return nil

		case err := <-errCh:
			a.logger.Error("source failed", "error", err)
			return err

		case sig := <-sigChan:
			switch sig {
			case syscall.SIGUSR1:
				a.logger.Info("received SIGUSR1, dumping stats")
				a.DumpStats()
			case syscall.SIGTERM, syscall.SIGINT:
				a.logger.Info("received shutdown signal")
				return nil
			}
		}
	}
}

// stopTailers stops all tailers.
func (a *Agent) stopTailers() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, t := range a.tailers {
		if err := t.Stop(); err != nil {
			a.logger.Error("error stopping tailer", "path", t.Path(), "error", err)
		}
	}
	a.tailers = nil
}

// Stats returns a snapshot of the counters of every source.
func (a *Agent) Stats() []SourceStats {
	stats := make([]SourceStats, 0, len(a.processors))
	for _, proc := range a.processors {
		stats = append(stats, proc.stats())
	}
	return stats
}

// DumpStats writes the counters of every source as a table.
func (a *Agent) DumpStats() {
	w := a.statsOut

	a.mu.Lock()
	var elapsed time.Duration
	if !a.startTime.IsZero() {
		elapsed = time.Since(a.startTime).Round(time.Second)
	}
	a.mu.Unlock()

	fmt.Fprintln(w, "───────────────────────────────────────────────────────────")
	fmt.Fprintf(w, " STATS @ %s (%s elapsed)\n", time.Now().UTC().Format(time.RFC3339), elapsed)
	fmt.Fprintln(w, "───────────────────────────────────────────────────────────")

	for _, st := range a.Stats() {
		fmt.Fprintf(w, " Source: %s\n", st.Path)
		fmt.Fprintf(w, "   Lines read:     %d\n", st.LinesRead)
		fmt.Fprintf(w, "   Parsed:         %d\n", st.Parsed)
		fmt.Fprintf(w, "   Failed:         %d\n", st.Failed())
		for _, kind := range parser.Kinds {
			fmt.Fprintf(w, "   %-16s%d\n", "Bad "+kind.Name()+":", st.Errors[kind])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "───────────────────────────────────────────────────────────")
}
