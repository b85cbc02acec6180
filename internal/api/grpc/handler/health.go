package handler

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/dtroode/vpnbot/internal/logger"
	"github.com/dtroode/vpnbot/internal/model"
)

const pingTimeout = 2 * time.Second

// Health reports SERVING while every dependency answers a ping.
type Health struct {
	grpc_health_v1.UnimplementedHealthServer

	deps   map[string]model.Pinger
	logger *logger.Logger
}

// NewHealth creates a Health handler over named dependencies.
func NewHealth(deps map[string]model.Pinger, logger *logger.Logger) *Health {
	return &Health{deps: deps, logger: logger}
}

// Check pings the dependency named by the request, or all of them for an empty service.
func (h *Health) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	service := req.GetService()

	targets := h.deps
	if service != "" {
		dep, ok := h.deps[service]
		if !ok {
			return nil, status.Errorf(codes.NotFound, "unknown service %q", service)
		}
		targets = map[string]model.Pinger{service: dep}
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	for name, dep := range targets {
		if err := dep.Ping(ctx); err != nil {
			h.logger.Warn("Health: dependency unavailable", "dependency", name, "error", err)
			return &grpc_health_v1.HealthCheckResponse{
				Status: grpc_health_v1.HealthCheckResponse_NOT_SERVING,
			}, nil
		}
	}

	return &grpc_health_v1.HealthCheckResponse{
		Status: grpc_health_v1.HealthCheckResponse_SERVING,
	}, nil
}
