package handlers

import (
	"log/slog"

	"github.com/rogerio-castellano/inventory-sync/internal/alert"
	"github.com/rogerio-castellano/inventory-sync/internal/inventory"
	"github.com/rogerio-castellano/inventory-sync/internal/repo"
)

type ServerConfig struct {
	Hub        *inventory.Hub
	Registry   *inventory.Registry
	Recipients *repo.RecipientRepository
	History    alert.History
	Logger     *slog.Logger
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	hub        *inventory.Hub
	registry   *inventory.Registry
	recipients *repo.RecipientRepository
	history    alert.History
	logger     *slog.Logger
}

func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		hub:        cfg.Hub,
		registry:   cfg.Registry,
		recipients: cfg.Recipients,
		history:    cfg.History,
		logger:     logger,
	}
}
