package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/memvid/runpod-worker/internal/logger"
)

// Result holds the outcome of one finished subprocess: its exit code and both
// captured streams, decoded as text.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes an argv to completion. A non-zero exit code is not an
// error; callers inspect Result.ExitCode. Errors are reserved for failures to
// run at all (missing binary, cancellation, kill on timeout).
type Runner interface {
	Run(ctx context.Context, argv []string, extraEnv map[string]string) (*Result, error)
}

// ExecRunner runs local binaries synchronously with captured output.
type ExecRunner struct {
	timeout time.Duration
}

// NewExecRunner creates an ExecRunner. A zero timeout means the child runs
// until it exits on its own.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{timeout: timeout}
}

func (r *ExecRunner) Run(ctx context.Context, argv []string, extraEnv map[string]string) (*Result, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty argv")
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	// Copy-on-write child environment: the parent env is inherited but never
	// mutated, so concurrent invocations cannot leak overrides into each other.
	env := os.Environ()
	for key, value := range extraEnv {
		env = append(env, key+"="+value)
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := &Result{
		ExitCode: 0,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			result.ExitCode = exitErr.ExitCode()
			logger.Logger.Debug().
				Str("argv0", argv[0]).
				Int("exit_code", result.ExitCode).
				Dur("duration", duration).
				Msg("Subprocess exited non-zero")
			return result, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("process %s terminated: %w", argv[0], ctxErr)
		}
		return nil, fmt.Errorf("failed to start %s: %w", argv[0], err)
	}

	logger.Logger.Debug().
		Str("argv0", argv[0]).
		Dur("duration", duration).
		Msg("Subprocess completed")
	return result, nil
}

// Tail returns the last n characters of s, the portion kept when a captured
// stream is surfaced in an error envelope. Counting characters rather than
// bytes keeps multibyte output intact instead of cutting mid-rune.
func Tail(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
