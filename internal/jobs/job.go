package jobs

import (
	"fmt"
	"strings"
)

// Defaults applied to optional input fields.
const (
	DefaultEmbeddingMode     = "external_api"
	DefaultEmbeddingProvider = "nvidia"
)

// Envelope is the JSON object returned to the hosting platform, success or
// error. Success envelopes carry whatever the export pipeline printed plus the
// injected bookkeeping fields; error envelopes carry a structured "error"
// object.
type Envelope = map[string]any

// Job is one unit of work as delivered by the hosting platform.
type Job struct {
	ID    string         `json:"id"`
	Input map[string]any `json:"input"`
}

// RunpodJobID returns the platform-assigned job id, or "unknown" when the
// platform did not attach one.
func (j *Job) RunpodJobID() string {
	if strings.TrimSpace(j.ID) == "" {
		return "unknown"
	}
	return j.ID
}

// String returns a string representation of the job
func (j *Job) String() string {
	return fmt.Sprintf("Job{ID: %s, Fields: %d}", j.RunpodJobID(), len(j.Input))
}

// Input holds the validated and defaulted fields extracted from a job's input
// mapping.
type Input struct {
	JobID             string
	PayloadRef        string
	OutputPrefix      string
	EmbeddingMode     string
	EmbeddingProvider string
	OllamaHost        string
}

// MissingFieldError reports a required input field that is absent or blank.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required input field: %s", e.Field)
}

// ParseInput validates a job's input mapping. Required fields must be present
// and non-blank after string coercion; optional fields fall back to their
// defaults.
func ParseInput(raw map[string]any) (*Input, error) {
	jobID, err := required(raw, "job_id")
	if err != nil {
		return nil, err
	}
	payloadRef, err := required(raw, "payload_ref")
	if err != nil {
		return nil, err
	}
	outputPrefix, err := required(raw, "output_prefix")
	if err != nil {
		return nil, err
	}

	return &Input{
		JobID:             jobID,
		PayloadRef:        payloadRef,
		OutputPrefix:      outputPrefix,
		EmbeddingMode:     optional(raw, "embedding_mode", DefaultEmbeddingMode),
		EmbeddingProvider: optional(raw, "embedding_provider", DefaultEmbeddingProvider),
		OllamaHost:        optional(raw, "ollama_host", ""),
	}, nil
}

func required(raw map[string]any, key string) (string, error) {
	value, ok := raw[key]
	if !ok || value == nil {
		return "", &MissingFieldError{Field: key}
	}
	s := coerce(value)
	if strings.TrimSpace(s) == "" {
		return "", &MissingFieldError{Field: key}
	}
	return s, nil
}

// optional treats only present, non-blank strings as overrides. JSON false,
// 0, or null are not a mode, a provider, or a host; they fall back like an
// absent key.
func optional(raw map[string]any, key, fallback string) string {
	value, ok := raw[key]
	if !ok || value == nil {
		return fallback
	}
	s, isString := value.(string)
	if !isString || strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// coerce renders any JSON-decoded value as a string the way the input
// contract expects: strings pass through, everything else takes its default
// formatting.
func coerce(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}

// InvalidInputEnvelope wraps a validation failure in the same envelope shape
// execution failures use, so everything reported to the platform has one
// format. The handler itself surfaces validation failures as errors; callers
// that face the platform convert them here.
func InvalidInputEnvelope(j *Job, err error) Envelope {
	jobID := ""
	if v, ok := j.Input["job_id"]; ok && v != nil {
		jobID = coerce(v)
	}
	return Envelope{
		"error": map[string]any{
			"code":    "INVALID_INPUT",
			"message": err.Error(),
		},
		"runpodJobId": j.RunpodJobID(),
		"jobId":       jobID,
	}
}

// IsErrorEnvelope reports whether an envelope carries an error object rather
// than a pipeline result.
func IsErrorEnvelope(env Envelope) bool {
	_, ok := env["error"]
	return ok
}
