package nats

// JobSubmissionMessage mirrors the platform job shape so the same input
// mapping drives the handler regardless of transport.
type JobSubmissionMessage struct {
	ID    string                 `json:"id"`
	Input map[string]interface{} `json:"input"`
}
