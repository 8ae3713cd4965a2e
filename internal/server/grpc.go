package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	healthhandler "storehub/backend/internal/health/handler"
	identityhandler "storehub/backend/internal/identity/handler"
	"storehub/backend/internal/server/interceptors"
)

const healthCheckMethod = "/grpc.health.v1.Health/Check"

// GRPCDeps holds the dependencies of the gRPC server.
type GRPCDeps struct {
	// Resolver backs the Bearer token gate. If nil, no gate is installed and PrincipalService is not served.
	Resolver interceptors.PrincipalResolver
	// Health serves grpc.health.v1. If nil, a server without probes is used.
	Health *healthhandler.Server
	Logger *zap.Logger
}

// NewGRPCServer returns a gRPC server with tracing, client IP, gate, and logging interceptors and the
// services registered.
func NewGRPCServer(deps GRPCDeps, opts ...grpc.ServerOption) *grpc.Server {
	chain := []grpc.UnaryServerInterceptor{interceptors.ClientIPUnary()}
	if deps.Resolver != nil {
		chain = append(chain, interceptors.AuthUnary(deps.Resolver))
	}
	chain = append(chain, interceptors.LoggingUnary(deps.Logger, map[string]bool{healthCheckMethod: true}))

	opts = append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(chain...),
	}, opts...)
	s := grpc.NewServer(opts...)
	RegisterServices(s, deps)
	return s
}

// RegisterServices registers the gRPC services with r: health, and PrincipalService when a gate is
// configured. The session lifecycle itself is served over HTTP.
func RegisterServices(r grpc.ServiceRegistrar, deps GRPCDeps) {
	health := deps.Health
	if health == nil {
		health = healthhandler.NewServer(nil)
	}
	health.Register(r)
	if deps.Resolver != nil {
		identityhandler.NewPrincipalServer().Register(r)
	}
}
