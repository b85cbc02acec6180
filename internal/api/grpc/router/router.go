package router

import (
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/dtroode/vpnbot/internal/api/grpc/handler"
	"github.com/dtroode/vpnbot/internal/api/grpc/middleware"
	"github.com/dtroode/vpnbot/internal/logger"
	"github.com/dtroode/vpnbot/internal/model"
)

// Router builds the ops gRPC server.
type Router struct {
	deps   map[string]model.Pinger
	logger *logger.Logger
}

// New creates new gRPC Router instance over the dependencies health checks ping.
func New(deps map[string]model.Pinger, logger *logger.Logger) *Router {
	return &Router{deps: deps, logger: logger}
}

// Register registers the health and reflection services behind
// recovery and request logging interceptors.
func (r *Router) Register() *grpc.Server {
	logging := middleware.NewLogging(r.logger)

	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			recovery.UnaryServerInterceptor(recovery.WithRecoveryHandlerContext(logging.Recover)),
			logging.HandleGRPC,
		),
		grpc.ChainStreamInterceptor(
			recovery.StreamServerInterceptor(recovery.WithRecoveryHandlerContext(logging.Recover)),
		),
	)
	grpc_health_v1.RegisterHealthServer(s, handler.NewHealth(r.deps, r.logger))
	reflection.Register(s)

	return s
}
