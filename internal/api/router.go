package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/memvid/runpod-worker/internal/handler"
	"github.com/memvid/runpod-worker/internal/jobs"
	"github.com/memvid/runpod-worker/internal/logger"
	"github.com/memvid/runpod-worker/internal/websocket"
)

func AddRoutes(
	mux *http.ServeMux,
	h *handler.Handler,
	hub *websocket.Hub,
) {
	mux.HandleFunc("/runsync", correlationMiddleware(handleRunSync(h, hub)))
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.HandleWebSocket(hub, w, r)
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", HandleHealth)
	mux.HandleFunc("/health/ready", HandleReadiness)
	mux.HandleFunc("/health/live", HandleLiveness)
}

func correlationMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		ctx := r.Context()
		ctx = context.WithValue(ctx, "correlation_id", correlationID)
		r = r.WithContext(ctx)
		next(w, r)
	}
}

// handleRunSync runs a job through the adapter synchronously and returns its
// envelope, mirroring what the platform loop does. Meant for local testing of
// a worker image without the hosting platform in between.
func handleRunSync(h *handler.Handler, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		correlationID := getCorrelationID(r.Context())
		log := logger.WithCorrelationID(correlationID)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Received request")

		var job jobs.Job
		if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
			log.Error().Err(err).Msg("Invalid JSON request")
			http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}

		websocket.BroadcastJobEvent(hub, "job_received", &job)

		envelope, err := h.Handle(r.Context(), &job)
		if err != nil {
			var missing *jobs.MissingFieldError
			if !errors.As(err, &missing) {
				log.Error().Err(err).Msg("Handler failed")
				http.Error(w, "Failed to handle job: "+err.Error(), http.StatusInternalServerError)
				return
			}
			log.Warn().Err(err).Msg("Job rejected before execution")
			envelope = jobs.InvalidInputEnvelope(&job, err)
			websocket.BroadcastJobEvent(hub, "job_failed", envelope)
			writeEnvelope(w, http.StatusBadRequest, envelope)
			return
		}

		if jobs.IsErrorEnvelope(envelope) {
			websocket.BroadcastJobEvent(hub, "job_failed", envelope)
		} else {
			websocket.BroadcastJobEvent(hub, "job_completed", envelope)
		}
		writeEnvelope(w, http.StatusOK, envelope)
	}
}

func writeEnvelope(w http.ResponseWriter, status int, envelope jobs.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func getCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value("correlation_id").(string); ok {
		return id
	}
	return ""
}
