package main

import (
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/memvid/runpod-worker/internal/api"
	"github.com/memvid/runpod-worker/internal/config"
	"github.com/memvid/runpod-worker/internal/handler"
	"github.com/memvid/runpod-worker/internal/logger"
	"github.com/memvid/runpod-worker/internal/nats"
	"github.com/memvid/runpod-worker/internal/runner"
	"github.com/memvid/runpod-worker/internal/runpod"
	"github.com/memvid/runpod-worker/internal/websocket"
	"github.com/memvid/runpod-worker/internal/worker"
)

func main() {
	// .env is optional; the system environment is used when it is absent.
	_ = godotenv.Load()

	logger.Init("export-worker")
	logger.Logger.Info().Msg("Starting export worker")

	cfg := config.Load()
	logger.Logger.Info().
		Str("executable", cfg.Executable).
		Str("worker_id", cfg.WorkerID).
		Msg("Configuration loaded")

	execRunner := runner.NewExecRunner(cfg.ExecTimeout)
	jobHandler := handler.New(cfg.Executable, execRunner)

	hub := websocket.NewHub()
	go hub.Run()

	var natsServer *nats.Server
	if cfg.UseNATS {
		server, err := nats.NewServer(cfg.NATSURL, jobHandler)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to create NATS server")
		}
		if err := server.Subscribe(); err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to subscribe to NATS")
		}
		natsServer = server
		logger.Logger.Info().Str("url", cfg.NATSURL).Msg("NATS consumer started")
	}

	var poller *worker.Poller
	if cfg.PollingEnabled() {
		client := runpod.NewClient(cfg.RunpodBaseURL, cfg.RunpodEndpointID, cfg.RunpodAPIKey, cfg.WorkerID)
		poller = worker.NewPoller(client, jobHandler, hub, cfg.PollInterval)
		poller.Start()
		logger.Logger.Info().
			Str("endpoint_id", cfg.RunpodEndpointID).
			Msg("Platform polling started")
	} else {
		logger.Logger.Warn().Msg("Platform credentials not configured, polling disabled")
	}

	apiServer := api.NewServer(jobHandler, hub, cfg.HTTPPort)
	go apiServer.Start()

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to listen")
	}

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, healthServer)

	go func() {
		logger.Logger.Info().Str("port", cfg.GRPCPort).Msg("gRPC health server listening")
		if err := s.Serve(lis); err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to serve")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Logger.Info().Msg("Shutting down gracefully...")
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	if poller != nil {
		poller.Stop()
	}
	s.GracefulStop()
	if natsServer != nil {
		natsServer.Close()
	}
	logger.Logger.Info().Msg("Export worker stopped")
}
