package runner

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupOrSkip(t *testing.T, name string) string {
	t.Helper()
	p, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not found in PATH; skipping", name)
	}
	return p
}

func TestRunCapturesStdout(t *testing.T) {
	sh := lookupOrSkip(t, "sh")
	r := NewExecRunner(0)

	result, err := r.Run(context.Background(), []string{sh, "-c", `printf '{"status":"ok"}'`}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, `{"status":"ok"}`, result.Stdout)
	assert.Empty(t, result.Stderr)
}

func TestRunCapturesStderrAndExitCode(t *testing.T) {
	sh := lookupOrSkip(t, "sh")
	r := NewExecRunner(0)

	result, err := r.Run(context.Background(), []string{sh, "-c", `printf boom >&2; exit 3`}, nil)
	require.NoError(t, err, "non-zero exit is not an error")
	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, "boom", result.Stderr)
}

func TestRunExtraEnvReachesChild(t *testing.T) {
	sh := lookupOrSkip(t, "sh")
	r := NewExecRunner(0)

	result, err := r.Run(context.Background(),
		[]string{sh, "-c", `printf '%s' "$OLLAMA_HOST"`},
		map[string]string{"OLLAMA_HOST": "http://ollama:11434"})
	require.NoError(t, err)
	assert.Equal(t, "http://ollama:11434", result.Stdout)
}

func TestRunDoesNotMutateParentEnv(t *testing.T) {
	sh := lookupOrSkip(t, "sh")
	r := NewExecRunner(0)

	_, err := r.Run(context.Background(),
		[]string{sh, "-c", "true"},
		map[string]string{"OLLAMA_HOST": "http://ollama:11434"})
	require.NoError(t, err)

	assert.NotEqual(t, "http://ollama:11434", os.Getenv("OLLAMA_HOST"),
		"override must stay in the child environment")
}

func TestRunInheritsParentEnv(t *testing.T) {
	sh := lookupOrSkip(t, "sh")
	t.Setenv("EXPORT_WORKER_TEST_VAR", "inherited")
	r := NewExecRunner(0)

	result, err := r.Run(context.Background(),
		[]string{sh, "-c", `printf '%s' "$EXPORT_WORKER_TEST_VAR"`}, nil)
	require.NoError(t, err)
	assert.Equal(t, "inherited", result.Stdout)
}

func TestRunMissingBinary(t *testing.T) {
	r := NewExecRunner(0)

	_, err := r.Run(context.Background(), []string{"/nonexistent/export-binary"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start")
}

func TestRunEmptyArgv(t *testing.T) {
	r := NewExecRunner(0)
	_, err := r.Run(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestRunTimeoutKillsChild(t *testing.T) {
	sleep := lookupOrSkip(t, "sleep")
	r := NewExecRunner(100 * time.Millisecond)

	start := time.Now()
	_, err := r.Run(context.Background(), []string{sleep, "10"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminated")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunContextCancellation(t *testing.T) {
	sleep := lookupOrSkip(t, "sleep")
	r := NewExecRunner(0)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := r.Run(ctx, []string{sleep, "10"}, nil)
	require.Error(t, err)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", Tail("short", 4000))
	assert.Equal(t, "", Tail("", 4000))

	long := strings.Repeat("a", 4500) + strings.Repeat("b", 500)
	got := Tail(long, 4000)
	assert.Len(t, got, 4000)
	assert.True(t, strings.HasSuffix(got, strings.Repeat("b", 500)))
	assert.Equal(t, "whole", Tail("whole", 0))
}

func TestTailCountsCharactersNotBytes(t *testing.T) {
	// 2000 characters, 6000 bytes: within the character budget, kept whole.
	euros := strings.Repeat("€", 2000)
	assert.Equal(t, euros, Tail(euros, 4000))

	// Truncation lands on a rune boundary, never inside one.
	mixed := "abc" + strings.Repeat("€", 4000)
	got := Tail(mixed, 4000)
	assert.Equal(t, strings.Repeat("€", 4000), got)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 4000, utf8.RuneCountInString(got))
}
