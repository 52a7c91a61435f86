package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Options controls how a single command is executed.
type Options struct {
	Dir    string
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// Result is the outcome of a finished command.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Combined returns stdout followed by stderr.
func (r Result) Combined() string {
	if len(r.Stderr) == 0 {
		return string(r.Stdout)
	}
	return string(r.Stdout) + "\n" + string(r.Stderr)
}

// Runner executes external programs and waits for them to exit.
type Runner interface {
	Run(ctx context.Context, command string, args []string, opts Options) (Result, error)
}

// SubprocessError reports a command that exited with a non-zero status.
type SubprocessError struct {
	Command  string
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *SubprocessError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", filepath.Base(e.Command), e.ExitCode)
	if tail := lastLine(e.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

// CmdRunner runs commands with os/exec. Output is streamed to the logger line
// by line as it arrives and captured in the returned Result.
type CmdRunner struct {
	Logger  *zap.Logger
	Timeout time.Duration
}

func (r CmdRunner) Run(ctx context.Context, command string, args []string, opts Options) (Result, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("cmd", filepath.Base(command)))
	logger.Debug("exec", zap.String("path", command), zap.Strings("args", args))

	cmd := exec.CommandContext(ctx, command, args...)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	stdoutLog := &lineLogger{logger: logger, stream: "stdout"}
	stderrLog := &lineLogger{logger: logger, stream: "stderr"}

	stdoutWriters := []io.Writer{&stdoutBuf, stdoutLog}
	if opts.Stdout != nil {
		stdoutWriters = append(stdoutWriters, opts.Stdout)
	}
	stderrWriters := []io.Writer{&stderrBuf, stderrLog}
	if opts.Stderr != nil {
		stderrWriters = append(stderrWriters, opts.Stderr)
	}
	cmd.Stdout = io.MultiWriter(stdoutWriters...)
	cmd.Stderr = io.MultiWriter(stderrWriters...)

	err := cmd.Run()
	stdoutLog.flush()
	stderrLog.flush()

	result := Result{Stdout: stdoutBuf.Bytes(), Stderr: stderrBuf.Bytes()}
	if err == nil {
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		return result, fmt.Errorf("run %s: %w", filepath.Base(command), ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, &SubprocessError{
			Command:  command,
			Args:     args,
			ExitCode: result.ExitCode,
			Stderr:   stderrBuf.String(),
		}
	}
	result.ExitCode = -1
	return result, fmt.Errorf("run %s: %w", filepath.Base(command), err)
}

var _ Runner = CmdRunner{}

// lineLogger forwards complete lines to the logger and buffers the remainder.
type lineLogger struct {
	mu      sync.Mutex
	logger  *zap.Logger
	stream  string
	pending []byte
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending = append(l.pending, p...)
	for {
		idx := bytes.IndexByte(l.pending, '\n')
		if idx < 0 {
			break
		}
		l.emit(l.pending[:idx])
		l.pending = l.pending[idx+1:]
	}
	return len(p), nil
}

func (l *lineLogger) flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) > 0 {
		l.emit(l.pending)
		l.pending = nil
	}
}

func (l *lineLogger) emit(line []byte) {
	text := strings.TrimRight(string(line), "\r")
	if strings.TrimSpace(text) == "" {
		return
	}
	l.logger.Debug(text, zap.String("stream", l.stream))
}

func lastLine(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.LastIndexByte(text, '\n'); idx >= 0 {
		return strings.TrimSpace(text[idx+1:])
	}
	return text
}
