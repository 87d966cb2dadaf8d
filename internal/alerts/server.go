package alerts

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// ServerConfig tunes the embedded NATS server.
type ServerConfig struct {
	Port    int
	DataDir string

	MaxMemory    int64
	MaxFileStore int64
}

// DefaultServerConfig returns the standalone-deployment defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:         4222,
		DataDir:      "./data/nats",
		MaxMemory:    64 * 1024 * 1024,
		MaxFileStore: 512 * 1024 * 1024,
	}
}

// EmbeddedServer runs a NATS server inside the process, so a standalone
// deployment needs no external broker.
type EmbeddedServer struct {
	srv    *server.Server
	logger *slog.Logger
}

// StartEmbeddedServer boots the server and blocks until it accepts
// connections.
func StartEmbeddedServer(cfg ServerConfig, logger *slog.Logger) (*EmbeddedServer, error) {
	opts := &server.Options{
		Port:               cfg.Port,
		JetStream:          true,
		StoreDir:           cfg.DataDir,
		JetStreamMaxMemory: cfg.MaxMemory,
		JetStreamMaxStore:  cfg.MaxFileStore,
	}

	srv, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("alerts: create embedded nats server: %w", err)
	}

	go srv.Start()
	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		return nil, fmt.Errorf("alerts: embedded nats server not ready")
	}

	logger.Info("embedded nats server started", "port", cfg.Port, "store_dir", cfg.DataDir)
	return &EmbeddedServer{srv: srv, logger: logger}, nil
}

// ClientURL returns the URL publishers should connect to.
func (e *EmbeddedServer) ClientURL() string {
	return e.srv.ClientURL()
}

// Shutdown stops the server and waits for it to wind down.
func (e *EmbeddedServer) Shutdown() {
	e.srv.Shutdown()
	e.srv.WaitForShutdown()
	e.logger.Info("embedded nats server stopped")
}
