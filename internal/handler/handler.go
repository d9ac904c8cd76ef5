package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/memvid/runpod-worker/internal/jobs"
	"github.com/memvid/runpod-worker/internal/logger"
	"github.com/memvid/runpod-worker/internal/metrics"
	"github.com/memvid/runpod-worker/internal/runner"
)

const (
	// Subcommand is the export pipeline's entry point for platform jobs.
	Subcommand = "runpod-execute"

	// AdapterTag is injected into every success envelope. Downstream
	// consumers key on this exact value; it is wire data, not a description
	// of this service.
	AdapterTag = "python-runpod-handler"

	CodeExecutionFailed   = "RUST_EXECUTION_FAILED"
	CodeOutputInvalidJSON = "RUST_OUTPUT_INVALID_JSON"

	executionFailedMessage = "Rust export pipeline execution failed"

	// tailBytes bounds how much of a captured stream an error envelope carries.
	tailBytes = 4000
)

// Handler adapts platform jobs onto the export pipeline binary: validate the
// input, build the argv, run the subprocess, and reshape its output into a
// response envelope.
type Handler struct {
	executable string
	runner     runner.Runner
}

// New creates a Handler that invokes the given executable through the given
// runner.
func New(executable string, r runner.Runner) *Handler {
	return &Handler{executable: executable, runner: r}
}

// Executable returns the path of the wrapped pipeline binary.
func (h *Handler) Executable() string {
	return h.executable
}

// Handle processes one job to completion and returns its response envelope.
// Invalid input returns a *jobs.MissingFieldError before any subprocess is
// launched; every other outcome, including pipeline failure, is an envelope.
// One subprocess invocation per job, no retries.
func (h *Handler) Handle(ctx context.Context, job *jobs.Job) (jobs.Envelope, error) {
	runpodJobID := job.RunpodJobID()

	input, err := jobs.ParseInput(job.Input)
	if err != nil {
		return nil, err
	}

	argv := []string{
		h.executable,
		Subcommand,
		"--job-id", input.JobID,
		"--payload-ref", input.PayloadRef,
		"--output-prefix", input.OutputPrefix,
		"--embedding-mode", input.EmbeddingMode,
		"--embedding-provider", input.EmbeddingProvider,
	}

	var extraEnv map[string]string
	if input.OllamaHost != "" {
		extraEnv = map[string]string{"OLLAMA_HOST": input.OllamaHost}
	}

	log := logger.WithJobID(input.JobID)
	log.Info().
		Str("runpod_job_id", runpodJobID).
		Str("embedding_mode", input.EmbeddingMode).
		Str("embedding_provider", input.EmbeddingProvider).
		Msg("Executing export pipeline")

	metrics.JobsHandledTotal.Inc()
	metrics.JobsInFlight.Inc()
	defer metrics.JobsInFlight.Dec()

	start := time.Now()
	result, err := h.runner.Run(ctx, argv, extraEnv)
	metrics.SubprocessDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		log.Error().Err(err).Msg("Export pipeline did not run to completion")
		return h.executionFailed(runpodJobID, input.JobID, err.Error()), nil
	}

	if result.ExitCode != 0 {
		log.Error().
			Int("exit_code", result.ExitCode).
			Msg("Export pipeline exited non-zero")
		return h.executionFailed(runpodJobID, input.JobID, runner.Tail(result.Stderr, tailBytes)), nil
	}

	parsed, parseErr := decodeOutput(result.Stdout)
	if parseErr != nil {
		log.Error().Err(parseErr).Msg("Export pipeline produced invalid JSON")
		metrics.JobFailuresTotal.WithLabelValues(CodeOutputInvalidJSON).Inc()
		return jobs.Envelope{
			"error": map[string]any{
				"code":    CodeOutputInvalidJSON,
				"message": fmt.Sprintf("Rust runner returned invalid JSON: %v", parseErr),
				"stdout":  runner.Tail(result.Stdout, tailBytes),
				"stderr":  runner.Tail(result.Stderr, tailBytes),
			},
			"runpodJobId": runpodJobID,
			"jobId":       input.JobID,
		}, nil
	}

	parsed["runpodJobId"] = runpodJobID
	parsed["adapter"] = AdapterTag

	log.Info().Msg("Export pipeline completed")
	metrics.JobsSucceededTotal.Inc()
	return parsed, nil
}

func (h *Handler) executionFailed(runpodJobID, jobID, details string) jobs.Envelope {
	metrics.JobFailuresTotal.WithLabelValues(CodeExecutionFailed).Inc()
	return jobs.Envelope{
		"error": map[string]any{
			"code":    CodeExecutionFailed,
			"message": executionFailedMessage,
			"details": details,
		},
		"runpodJobId": runpodJobID,
		"jobId":       jobID,
	}
}

// decodeOutput parses the pipeline's stdout as a single JSON object. Anything
// else, including JSON that is not an object, is invalid output: the envelope
// contract injects fields into it.
func decodeOutput(stdout string) (map[string]any, error) {
	trimmed := strings.TrimSpace(stdout)
	var parsed map[string]any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return nil, err
	}
	if parsed == nil {
		return nil, fmt.Errorf("expected a JSON object, got %q", runner.Tail(trimmed, 64))
	}
	return parsed, nil
}
