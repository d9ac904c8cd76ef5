package api

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/memvid/runpod-worker/internal/handler"
	"github.com/memvid/runpod-worker/internal/websocket"
)

func NewServer(h *handler.Handler, hub *websocket.Hub, port string) *Server {
	logger := log.New(log.Writer(), "[API] ", log.LstdFlags)

	return &Server{
		handler: h,
		hub:     hub,
		port:    port,
		logger:  logger,
	}
}

type Server struct {
	handler *handler.Handler
	hub     *websocket.Hub
	logger  *log.Logger
	port    string
}

func (s *Server) Start() {
	addr := fmt.Sprintf(":%s", s.port)
	s.logger.Printf("Starting server on %s", addr)

	SetExecutablePath(s.handler.Executable())

	mux := http.NewServeMux()
	AddRoutes(mux, s.handler, s.hub)

	server := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// /runsync holds the connection for the full pipeline run.
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		s.logger.Fatalf("Failed to start server: %v", err)
	}
}
