package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/memvid/runpod-worker/internal/handler"
	"github.com/memvid/runpod-worker/internal/jobs"
	"github.com/memvid/runpod-worker/internal/logger"
)

const (
	JobSubmitSubject = "jobs.submit"
	JobResultSubject = "jobs.result"
)

// Server is the optional local submission transport: jobs published on
// jobs.submit run through the adapter, and the envelope comes back on the
// request's reply subject (or jobs.result for fire-and-forget publishes).
// Useful for driving the worker without the hosting platform.
type Server struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	handler *handler.Handler
}

func NewServer(url string, h *handler.Handler) (*Server, error) {
	if url == "" {
		url = nats.DefaultURL
	}

	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Server{
		conn:    conn,
		handler: h,
	}, nil
}

func (s *Server) Subscribe() error {
	sub, err := s.conn.Subscribe(JobSubmitSubject, func(msg *nats.Msg) {
		var jobMsg JobSubmissionMessage
		if err := json.Unmarshal(msg.Data, &jobMsg); err != nil {
			logger.Logger.Error().Err(err).Msg("Invalid job submission message")
			return
		}

		job := &jobs.Job{ID: jobMsg.ID, Input: jobMsg.Input}
		envelope, err := s.handler.Handle(context.Background(), job)
		if err != nil {
			envelope = jobs.InvalidInputEnvelope(job, err)
		}

		data, err := json.Marshal(envelope)
		if err != nil {
			logger.Logger.Error().Err(err).Msg("Failed to encode envelope")
			return
		}

		if msg.Reply != "" {
			if err := msg.Respond(data); err != nil {
				logger.Logger.Error().Err(err).Msg("Failed to respond with envelope")
			}
			return
		}
		if err := s.conn.Publish(JobResultSubject, data); err != nil {
			logger.Logger.Error().Err(err).Msg("Failed to publish envelope")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to NATS: %w", err)
	}

	s.sub = sub
	return nil
}

func (s *Server) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.conn != nil {
		s.conn.Close()
	}
}
