package handlers

import (
	"context"

	"github.com/tracklab/trove/internal/server/dto"
)

// HealthHandler handles health check requests.
type HealthHandler struct{}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Health handles health check requests.
func (h *HealthHandler) Health(ctx context.Context, req *dto.EmptyRequest) (*dto.HealthResponse, error) {
	return &dto.HealthResponse{Status: "ok"}, nil
}
