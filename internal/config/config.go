package config

import (
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const defaultExecutable = "/usr/local/bin/memvid-export-api"

// Config carries everything the worker reads from the environment. Values are
// read once at startup; godotenv in main loads a .env file first when present.
type Config struct {
	// Path of the export pipeline binary.
	Executable string

	// Deadline for one subprocess invocation. Zero disables the deadline and
	// the child runs until it exits on its own.
	ExecTimeout time.Duration

	HTTPPort string
	GRPCPort string

	UseNATS bool
	NATSURL string

	// Platform polling is enabled only when EndpointID and APIKey are both set.
	RunpodBaseURL    string
	RunpodEndpointID string
	RunpodAPIKey     string
	WorkerID         string
	PollInterval     time.Duration
}

// Load reads the worker configuration from the environment, applying
// defaults for anything unset.
func Load() *Config {
	cfg := &Config{
		Executable:       envOr("RUNPOD_RUST_EXECUTABLE", defaultExecutable),
		ExecTimeout:      time.Duration(envInt("EXEC_TIMEOUT_SECONDS", 0)) * time.Second,
		HTTPPort:         envOr("HTTP_PORT", "8080"),
		GRPCPort:         envOr("GRPC_PORT", "8081"),
		UseNATS:          os.Getenv("USE_NATS") == "true",
		NATSURL:          envOr("NATS_URL", "nats://localhost:4222"),
		RunpodBaseURL:    envOr("RUNPOD_API_BASE_URL", "https://api.runpod.ai/v2"),
		RunpodEndpointID: os.Getenv("RUNPOD_ENDPOINT_ID"),
		RunpodAPIKey:     os.Getenv("RUNPOD_API_KEY"),
		WorkerID:         os.Getenv("RUNPOD_WORKER_ID"),
		PollInterval:     time.Duration(envInt("POLL_INTERVAL_MS", 1000)) * time.Millisecond,
	}

	if cfg.WorkerID == "" {
		cfg.WorkerID = "worker-" + uuid.New().String()
	}

	return cfg
}

// PollingEnabled reports whether the platform poll loop should run.
func (c *Config) PollingEnabled() bool {
	return c.RunpodEndpointID != "" && c.RunpodAPIKey != ""
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
