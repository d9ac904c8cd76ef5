package runpod

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/memvid/runpod-worker/internal/jobs"
)

const (
	// takeTimeout is generous because job-take long-polls on the platform side.
	takeTimeout   = 90 * time.Second
	reportTimeout = 30 * time.Second
)

// Client talks to the hosting platform's serverless endpoint API: it takes
// the next queued job for this worker and reports results back.
type Client struct {
	httpClient *http.Client
	baseURL    string
	endpointID string
	apiKey     string
	workerID   string
}

// NewClient creates a platform client for one endpoint and worker identity.
func NewClient(baseURL, endpointID, apiKey, workerID string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: takeTimeout + 10*time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		endpointID: endpointID,
		apiKey:     apiKey,
		workerID:   workerID,
	}
}

// TakeJob asks the platform for the next job assigned to this worker. It
// returns (nil, nil) when no job is available.
func (c *Client) TakeJob(ctx context.Context) (*jobs.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, takeTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s/job-take/%s", c.baseURL, c.endpointID, c.workerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build job-take request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("job-take request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent, http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return nil, nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("job-take returned status %d: %s", resp.StatusCode, body)
	}

	var job jobs.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("failed to decode job-take response: %w", err)
	}
	return &job, nil
}

// ReportDone delivers a success envelope for a finished job.
func (c *Client) ReportDone(ctx context.Context, jobID string, envelope jobs.Envelope) error {
	return c.report(ctx, jobID, envelope)
}

// ReportFailed delivers an error envelope for a failed job.
func (c *Client) ReportFailed(ctx context.Context, jobID string, envelope jobs.Envelope) error {
	return c.report(ctx, jobID, envelope)
}

func (c *Client) report(ctx context.Context, jobID string, envelope jobs.Envelope) error {
	ctx, cancel := context.WithTimeout(ctx, reportTimeout)
	defer cancel()

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	url := fmt.Sprintf("%s/%s/job-done/%s/%s", c.baseURL, c.endpointID, c.workerID, jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build job-done request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("job-done request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("job-done returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}
