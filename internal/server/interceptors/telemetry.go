package interceptors

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"storehub/backend/internal/platform/rbac"
)

// LoggingUnary returns a unary server interceptor that logs each RPC after it completes.
// skipMethods is the set of full method names not to log (e.g. health checks polled by load balancers).
func LoggingUnary(logger *zap.Logger, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if skipMethods[info.FullMethod] {
			return resp, err
		}
		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", ClientIP(ctx)),
		}
		if p, ok := rbac.PrincipalFromContext(ctx); ok {
			fields = append(fields, zap.String("account_id", p.AccountID))
		}
		switch code {
		case codes.OK:
			logger.Info("rpc", fields...)
		case codes.Internal, codes.Unknown, codes.DataLoss, codes.Unavailable:
			logger.Error("rpc", fields...)
		default:
			logger.Warn("rpc", fields...)
		}
		return resp, err
	}
}
