package api

import (
	"encoding/json"
	"net/http"
	"os"
	"time"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
}

type ReadinessResponse struct {
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	Service    string    `json:"service"`
	Executable string    `json:"executable"`
}

var executablePath string

// SetExecutablePath tells the readiness probe which pipeline binary to check.
func SetExecutablePath(path string) {
	executablePath = path
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   "export-worker",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// HandleReadiness reports ready only when the wrapped pipeline binary exists
// and is executable; without it every job would fail.
func HandleReadiness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	execStatus := "present"
	ready := true
	if executablePath == "" {
		execStatus = "unknown"
	} else if info, err := os.Stat(executablePath); err != nil {
		execStatus = "missing"
		ready = false
	} else if info.Mode()&0111 == 0 {
		execStatus = "not executable"
		ready = false
	}

	response := ReadinessResponse{
		Status:     "ready",
		Timestamp:  time.Now(),
		Service:    "export-worker",
		Executable: execStatus,
	}

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		response.Status = "not ready"
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(response)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

func HandleLiveness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:    "alive",
		Timestamp: time.Now(),
		Service:   "export-worker",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
