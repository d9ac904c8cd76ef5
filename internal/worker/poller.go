package worker

import (
	"context"
	"sync"
	"time"

	"github.com/memvid/runpod-worker/internal/handler"
	"github.com/memvid/runpod-worker/internal/jobs"
	"github.com/memvid/runpod-worker/internal/logger"
	"github.com/memvid/runpod-worker/internal/runpod"
	"github.com/memvid/runpod-worker/internal/websocket"
)

// Platform is the slice of the hosting platform API the poller needs.
type Platform interface {
	TakeJob(ctx context.Context) (*jobs.Job, error)
	ReportDone(ctx context.Context, jobID string, envelope jobs.Envelope) error
	ReportFailed(ctx context.Context, jobID string, envelope jobs.Envelope) error
}

var _ Platform = (*runpod.Client)(nil)

// Poller drives the serverless loop: take a job from the platform, hand it to
// the adapter, report the envelope back. Strictly one job at a time; the
// platform scales out by running more workers, not by fanning out inside one.
type Poller struct {
	platform Platform
	handler  *handler.Handler
	hub      *websocket.Hub
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewPoller creates a poller. The hub may be nil when no event feed is wanted.
func NewPoller(platform Platform, h *handler.Handler, hub *websocket.Hub, interval time.Duration) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{
		platform: platform,
		handler:  h,
		hub:      hub,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins polling in the background.
func (p *Poller) Start() {
	logger.Logger.Info().Dur("interval", p.interval).Msg("Starting platform poller")
	p.wg.Add(1)
	go p.run()
}

// Stop cancels polling and waits for the in-flight job, if any, to finish.
func (p *Poller) Stop() {
	logger.Logger.Info().Msg("Stopping platform poller")
	p.cancel()
	p.wg.Wait()
	logger.Logger.Info().Msg("Platform poller stopped")
}

func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			job, err := p.platform.TakeJob(p.ctx)
			if err != nil {
				if p.ctx.Err() != nil {
					return
				}
				logger.Logger.Error().Err(err).Msg("Failed to take job from platform")
				continue
			}
			if job != nil {
				p.process(job)
			}
		}
	}
}

func (p *Poller) process(job *jobs.Job) {
	// Shutdown must not kill a launched pipeline mid-flight; Stop waits for
	// this method instead of cancelling it.
	ctx := context.WithoutCancel(p.ctx)

	log := logger.WithJobID(job.RunpodJobID())
	log.Info().Msg("Job received from platform")
	websocket.BroadcastJobEvent(p.hub, "job_received", job)

	envelope, err := p.handler.Handle(ctx, job)
	if err != nil {
		// Validation failures leave the handler as errors; everything
		// reported to the platform has the one envelope shape.
		log.Warn().Err(err).Msg("Job rejected before execution")
		envelope = jobs.InvalidInputEnvelope(job, err)
	}

	if jobs.IsErrorEnvelope(envelope) {
		websocket.BroadcastJobEvent(p.hub, "job_failed", envelope)
		if err := p.platform.ReportFailed(ctx, job.RunpodJobID(), envelope); err != nil {
			log.Error().Err(err).Msg("Failed to report job failure to platform")
		}
		return
	}

	websocket.BroadcastJobEvent(p.hub, "job_completed", envelope)
	if err := p.platform.ReportDone(ctx, job.RunpodJobID(), envelope); err != nil {
		log.Error().Err(err).Msg("Failed to report job result to platform")
	}
}
