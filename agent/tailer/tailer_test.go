// SPDX-License-Identifier: MIT

package tailer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

var accessLines = []string{
	`127.0.0.1 - - [01/Jan/2024:12:00:00 +0000] "GET /api HTTP/1.1" 200 1234`,
	`10.0.0.5 - - [15/Jan/2024:10:24:12 +0000] "POST /api/login HTTP/1.1" 201 567`,
	`203.0.113.42 - - [15/Jan/2024:10:27:15 +0000] "PUT /api/products HTTP/1.1" 500 2048`,
	`8.8.8.8 - - [15/Jan/2024:10:29:47 +0000] "DELETE /users HTTP/1.1" 403 89`,
	`172.16.0.10 - - [15/Jan/2024:10:25:33 +0000] "GET /static/image.png HTTP/1.1" 304 0`,
}

func TestProcessFile(t *testing.T) {
	// Create temp file
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	content := strings.Join(accessLines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var lines []string
	handler := func(line string) error {
		lines = append(lines, line)
		return nil
	}

	count, err := ProcessFile(path, handler, 0)
	if err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	if count != 5 {
		t.Errorf("ProcessFile() count = %d, want 5", count)
	}

	if len(lines) != 5 {
		t.Errorf("len(lines) = %d, want 5", len(lines))
	}

	for i, exp := range accessLines {
		if lines[i] != exp {
			t.Errorf("lines[%d] = %q, want %q", i, lines[i], exp)
		}
	}
}

func TestProcessFile_WithLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	content := strings.Join(accessLines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var lines []string
	handler := func(line string) error {
		lines = append(lines, line)
		return nil
	}

	count, err := ProcessFile(path, handler, 3)
	if err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	if count != 3 {
		t.Errorf("ProcessFile() count = %d, want 3", count)
	}

	if len(lines) != 3 {
		t.Errorf("len(lines) = %d, want 3", len(lines))
	}
}

func TestProcessFile_NonExistent(t *testing.T) {
	_, err := ProcessFile("/nonexistent/file.log", func(string) error { return nil }, 0)
	if err == nil {
		t.Error("ProcessFile() should return error for non-existent file")
	}
}

func TestProcessReader(t *testing.T) {
	content := "alpha\nbeta\ngamma\n"
	reader := strings.NewReader(content)

	var lines []string
	handler := func(line string) error {
		lines = append(lines, line)
		return nil
	}

	count, err := ProcessReader(reader, handler, 0)
	if err != nil {
		t.Fatalf("ProcessReader() error = %v", err)
	}

	if count != 3 {
		t.Errorf("ProcessReader() count = %d, want 3", count)
	}

	expected := []string{"alpha", "beta", "gamma"}
	for i, exp := range expected {
		if lines[i] != exp {
			t.Errorf("lines[%d] = %q, want %q", i, lines[i], exp)
		}
	}
}

func TestProcessReader_NoTrailingNewline(t *testing.T) {
	content := "line1\nline2\nline3" // No trailing newline
	reader := strings.NewReader(content)

	var lines []string
	handler := func(line string) error {
		lines = append(lines, line)
		return nil
	}

	count, err := ProcessReader(reader, handler, 0)
	if err != nil {
		t.Fatalf("ProcessReader() error = %v", err)
	}

	if count != 3 {
		t.Errorf("ProcessReader() count = %d, want 3", count)
	}

	if lines[2] != "line3" {
		t.Errorf("lines[2] = %q, want %q", lines[2], "line3")
	}
}

func TestTailer_StartFromBeginning(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	content := "line1\nline2\nline3\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var mu sync.Mutex
	var lines []string
	handler := func(line string) error {
		mu.Lock()
		lines = append(lines, line)
		mu.Unlock()
		return nil
	}

	tailer := New(path, handler, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := tailer.StartFromBeginning(ctx); err != nil {
		t.Fatalf("StartFromBeginning() error = %v", err)
	}

	// Wait for lines to be processed
	time.Sleep(100 * time.Millisecond)

	if err := tailer.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()

	if len(lines) != 3 {
		t.Errorf("len(lines) = %d, want 3", len(lines))
	}
}

func TestTailer_FollowNewLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	// Create empty file
	if err := os.WriteFile(path, []byte{}, 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var mu sync.Mutex
	var lines []string
	handler := func(line string) error {
		mu.Lock()
		lines = append(lines, line)
		mu.Unlock()
		return nil
	}

	tailer := New(path, handler, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := tailer.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Give the tailer time to start watching
	time.Sleep(100 * time.Millisecond)

	// Append lines
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}

	if _, err := f.WriteString("new line 1\n"); err != nil {
		t.Fatalf("WriteString() error = %v", err)
	}
	if _, err := f.WriteString("new line 2\n"); err != nil {
		t.Fatalf("WriteString() error = %v", err)
	}
	f.Sync() // Ensure writes are flushed
	f.Close()

	// Wait for lines to be processed
	time.Sleep(500 * time.Millisecond)

	if err := tailer.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()

	if len(lines) != 2 {
		t.Errorf("len(lines) = %d, want 2", len(lines))
	}
}

func TestTailer_NonExistentFile(t *testing.T) {
	tailer := New("/nonexistent/file.log", func(string) error { return nil }, nil)

	err := tailer.Start(context.Background())
	if err == nil {
		t.Error("Start() should return error for non-existent file")
	}
}

func TestTailer_DoubleStart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	if err := os.WriteFile(path, []byte("test\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	tailer := New(path, func(string) error { return nil }, nil)

	ctx := context.Background()

	if err := tailer.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer tailer.Stop()

	err := tailer.Start(ctx)
	if err == nil {
		t.Error("Second Start() should return error")
	}
}

func TestTailer_Path(t *testing.T) {
	tailer := New("/var/log/test.log", func(string) error { return nil }, nil)
	if tailer.Path() != "/var/log/test.log" {
		t.Errorf("Path() = %q, want %q", tailer.Path(), "/var/log/test.log")
	}
}

func TestProcessReader_LongLines(t *testing.T) {
	longLine := `127.0.0.1 - - [01/Jan/2024:12:00:00 +0000] "GET /` + strings.Repeat("x", 100*1024) + ` HTTP/1.1" 200 1`
	content := longLine + "\nshort line\n"
	reader := strings.NewReader(content)

	var lines []string
	handler := func(line string) error {
		lines = append(lines, line)
		return nil
	}

	count, err := ProcessReader(reader, handler, 0)
	if err != nil {
		t.Fatalf("ProcessReader() error = %v", err)
	}

	if count != 2 {
		t.Errorf("ProcessReader() count = %d, want 2", count)
	}

	if lines[0] != longLine {
		t.Errorf("len(lines[0]) = %d, want %d", len(lines[0]), len(longLine))
	}
}

func TestProcessFile_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.log")

	if err := os.WriteFile(path, []byte{}, 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var lines []string
	handler := func(line string) error {
		lines = append(lines, line)
		return nil
	}

	count, err := ProcessFile(path, handler, 0)
	if err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	if count != 0 {
		t.Errorf("ProcessFile() count = %d, want 0", count)
	}

	if len(lines) != 0 {
		t.Errorf("len(lines) = %d, want 0", len(lines))
	}
}

func TestProcessReader_EmptyLines(t *testing.T) {
	content := "line1\n\nline3\n\n"
	reader := strings.NewReader(content)

	var lines []string
	handler := func(line string) error {
		lines = append(lines, line)
		return nil
	}

	count, err := ProcessReader(reader, handler, 0)
	if err != nil {
		t.Fatalf("ProcessReader() error = %v", err)
	}

	if count != 4 {
		t.Errorf("ProcessReader() count = %d, want 4", count)
	}

	expected := []string{"line1", "", "line3", ""}
	for i, exp := range expected {
		if i >= len(lines) {
			t.Errorf("missing line at index %d", i)
			continue
		}
		if lines[i] != exp {
			t.Errorf("lines[%d] = %q, want %q", i, lines[i], exp)
		}
	}
}

func TestProcessReader_TrimsCarriageReturn(t *testing.T) {
	reader := strings.NewReader("first\r\nsecond\r\n")

	var lines []string
	handler := func(line string) error {
		lines = append(lines, line)
		return nil
	}

	if _, err := ProcessReader(reader, handler, 0); err != nil {
		t.Fatalf("ProcessReader() error = %v", err)
	}

	expected := []string{"first", "second"}
	for i, exp := range expected {
		if lines[i] != exp {
			t.Errorf("lines[%d] = %q, want %q", i, lines[i], exp)
		}
	}
}

func TestProcessReader_HandlerError(t *testing.T) {
	errStop := errors.New("stop")
	reader := strings.NewReader("a\nb\nc\nd\n")

	var lines []string
	handler := func(line string) error {
		lines = append(lines, line)
		if line == "b" {
			return errStop
		}
		return nil
	}

	count, err := ProcessReader(reader, handler, 0)
	if !errors.Is(err, errStop) {
		t.Fatalf("ProcessReader() error = %v, want %v", err, errStop)
	}

	if count != 2 {
		t.Errorf("ProcessReader() count = %d, want 2", count)
	}

	if len(lines) != 2 {
		t.Errorf("len(lines) = %d, want 2", len(lines))
	}
}

func TestProcessReader_LineTooLong(t *testing.T) {
	reader := strings.NewReader(strings.Repeat("x", MaxLineSize+1) + "\n")

	_, err := ProcessReader(reader, func(string) error { return nil }, 0)
	if err == nil {
		t.Error("ProcessReader() should return error for a line over MaxLineSize")
	}
}

func TestTailer_HandlerErrorStopsTailer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	if err := os.WriteFile(path, []byte("good\nbad\nnever\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	errBad := errors.New("bad line")
	var mu sync.Mutex
	var lines []string
	handler := func(line string) error {
		mu.Lock()
		lines = append(lines, line)
		mu.Unlock()
		if line == "bad" {
			return errBad
		}
		return nil
	}

	tailer := New(path, handler, nil)
	if err := tailer.StartFromBeginning(context.Background()); err != nil {
		t.Fatalf("StartFromBeginning() error = %v", err)
	}
	defer tailer.Stop()

	select {
	case err := <-tailer.Err():
		if !errors.Is(err, errBad) {
			t.Errorf("Err() = %v, want %v", err, errBad)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handler error")
	}

	mu.Lock()
	defer mu.Unlock()

	if len(lines) != 2 {
		t.Errorf("len(lines) = %d, want 2", len(lines))
	}
}

func TestTailer_StopIdempotent(t *testing.T) {
	tailer := New("/var/log/test.log", func(string) error { return nil }, nil)

	if err := tailer.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := tailer.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}
