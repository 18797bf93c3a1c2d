// SPDX-License-Identifier: MIT

// Package tailer supplies log lines, either by reading a whole file once or by
// following a file as it grows.
package tailer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/nxadm/tail"
)

// MaxLineSize is the longest line ProcessReader accepts.
const MaxLineSize = 1024 * 1024

// LineHandler is called for each line read from the file.
// Returning an error stops reading.
type LineHandler func(line string) error

// Tailer follows a file and hands each new line to its handler.
type Tailer struct {
	path    string
	handler LineHandler
	logger  *slog.Logger
	errs    chan error

	mu     sync.Mutex
	tail   *tail.Tail
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a new Tailer for the given file path.
func New(path string, handler LineHandler, logger *slog.Logger) *Tailer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Tailer{
		path:    path,
		handler: handler,
		logger:  logger,
		errs:    make(chan error, 1),
	}
}

// Start begins tailing the file.
// It starts from the end of the file and follows new lines.
func (t *Tailer) Start(ctx context.Context) error {
	if err := t.start(ctx, io.SeekEnd); err != nil {
		return err
	}
	t.logger.Info("started tailing file", "path", t.path)
	return nil
}

// StartFromBeginning begins tailing from the beginning of the file.
func (t *Tailer) StartFromBeginning(ctx context.Context) error {
	if err := t.start(ctx, io.SeekStart); err != nil {
		return err
	}
	t.logger.Info("started tailing file from beginning", "path", t.path)
	return nil
}

func (t *Tailer) start(ctx context.Context, whence int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tail != nil {
		return fmt.Errorf("tailer already running")
	}

	if _, err := os.Stat(t.path); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("file does not exist: %s", t.path)
	}

	cfg := tail.Config{
		Follow:    true,
		ReOpen:    true, // survive log rotation
		MustExist: true,
		Location:  &tail.SeekInfo{Offset: 0, Whence: whence},
		Logger:    tail.DiscardingLogger,
	}

	tailFile, err := tail.TailFile(t.path, cfg)
	if err != nil {
		return fmt.Errorf("tailing file: %w", err)
	}

	t.tail = tailFile
	t.done = make(chan struct{})

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	go t.run(ctx, tailFile, t.done)
	return nil
}

// run hands lines from the tail to the handler. It keeps draining Lines until
// the tail closes it, so a stopped or failed handler never blocks the tail.
func (t *Tailer) run(ctx context.Context, tf *tail.Tail, done chan struct{}) {
	defer close(done)

	stop := context.AfterFunc(ctx, func() { tf.Kill(nil) })
	defer stop()

	failed := false
	for line := range tf.Lines {
		if failed || ctx.Err() != nil || t.handler == nil {
			continue
		}
		if line.Err != nil {
			t.logger.Error("error reading line", "path", t.path, "error", line.Err)
			continue
		}
		if err := t.handler(strings.TrimRight(line.Text, "\r")); err != nil {
			t.logger.Debug("handler stopped tailer", "path", t.path, "error", err)
			select {
			case t.errs <- err:
			default:
			}
			failed = true
		}
	}
	t.logger.Debug("tail channel closed", "path", t.path)
}

// Err returns a channel that receives the handler error that stopped the
// tailer, if any.
func (t *Tailer) Err() <-chan error {
	return t.errs
}

// Stop stops tailing the file and waits for the handler goroutine to exit.
func (t *Tailer) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}

	if t.tail != nil {
		err := t.tail.Stop()
		t.tail.Cleanup()
		t.tail = nil
		<-t.done
		t.logger.Info("stopped tailing file", "path", t.path)
		return err
	}

	return nil
}

// Path returns the file path being tailed.
func (t *Tailer) Path() string {
	return t.path
}

// ProcessFile reads an entire file and processes each line.
// This is a one-shot operation, not continuous tailing.
func ProcessFile(path string, handler LineHandler, limit int) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	return ProcessReader(file, handler, limit)
}

// ProcessReader reads from a reader and processes each line.
// It returns the number of lines handed to handler. A handler error stops
// reading and is returned unwrapped; the failing line is included in the count.
// A limit of 0 means no limit.
func ProcessReader(r io.Reader, handler LineHandler, limit int) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	count := 0

	for scanner.Scan() {
		if limit > 0 && count >= limit {
			break
		}
		count++
		if err := handler(strings.TrimRight(scanner.Text(), "\r")); err != nil {
			return count, err
		}
	}

	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("reading: %w", err)
	}

	return count, nil
}
