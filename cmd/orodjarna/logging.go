package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to
// stderr. Either side may be nil to drop those records.
type levelRouter struct {
	level  slog.Level
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= lr.level
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	if lr.stdout == nil {
		return nil
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := &levelRouter{level: lr.level, stderr: lr.stderr.WithAttrs(attrs)}
	if lr.stdout != nil {
		out.stdout = lr.stdout.WithAttrs(attrs)
	}
	return out
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	out := &levelRouter{level: lr.level, stderr: lr.stderr.WithGroup(name)}
	if lr.stdout != nil {
		out.stdout = lr.stdout.WithGroup(name)
	}
	return out
}

// setupLogger configures structured logging. INFO/WARN go to stdout, ERROR goes
// to stderr. If logPath is non-empty, all levels are also written to that file.
// With quiet set, INFO/WARN only go to the log file so they do not interleave
// with console output. Returns a cleanup function that closes the log file (if
// opened).
func setupLogger(logPath string, level slog.Level, quiet bool) (func(), error) {
	opts := &slog.HandlerOptions{Level: level}

	var cleanup func()

	var stdoutW io.Writer = os.Stdout
	if quiet {
		stdoutW = nil
	}
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		if stdoutW == nil {
			stdoutW = f
		} else {
			stdoutW = io.MultiWriter(os.Stdout, f)
		}
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	handler := &levelRouter{
		level:  level,
		stderr: slog.NewTextHandler(stderrW, opts),
	}
	if stdoutW != nil {
		handler.stdout = slog.NewTextHandler(stdoutW, opts)
	}
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}
