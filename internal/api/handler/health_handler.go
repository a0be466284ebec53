package handler

import (
	"context"
	"net/http"
	"time"

	"sweet_shop/internal/common"

	"go.uber.org/zap"
)

const (
	statusConnected     = "Connected"
	statusDisconnected  = "Disconnected"
	statusConfigured    = "Configured"
	statusNotConfigured = "Not configured"
	statusUnreachable   = "Unreachable"

	healthCheckTimeout = 2 * time.Second
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// ImageStore is the health view of the image uploader.
type ImageStore interface {
	Pinger
	Configured() bool
}

type HealthHandler struct {
	database Pinger
	redis    Pinger // nil when Redis is not configured
	storage  ImageStore
	log      *zap.Logger
}

func NewHealthHandler(database, redis Pinger, storage ImageStore, log *zap.Logger) *HealthHandler {
	return &HealthHandler{database: database, redis: redis, storage: storage, log: log}
}

type HealthResponse struct {
	Message  string `json:"message"`
	Database string `json:"database"`
	Redis    string `json:"redis"`
	Storage  string `json:"storage"`
}

// Health always answers 200; dependency state is reported in the body.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Message:  "Server running",
		Database: statusConnected,
		Redis:    statusNotConfigured,
		Storage:  statusNotConfigured,
	}

	if err := h.database.Ping(ctx); err != nil {
		h.log.Warn("database health check failed", zap.Error(err))
		resp.Database = statusDisconnected
	}
	if h.redis != nil {
		resp.Redis = statusConnected
		if err := h.redis.Ping(ctx); err != nil {
			h.log.Warn("redis health check failed", zap.Error(err))
			resp.Redis = statusDisconnected
		}
	}
	if h.storage != nil && h.storage.Configured() {
		resp.Storage = statusConfigured
		if err := h.storage.Ping(ctx); err != nil {
			h.log.Warn("storage health check failed", zap.Error(err))
			resp.Storage = statusUnreachable
		}
	}

	common.RespondWithJSON(w, http.StatusOK, resp)
}
