package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"storehub/backend/internal/audit"
	audithandler "storehub/backend/internal/audit/handler"
	"storehub/backend/internal/audit/producer"
	auditrepo "storehub/backend/internal/audit/repository"
	"storehub/backend/internal/config"
	"storehub/backend/internal/db"
	"storehub/backend/internal/db/migrate"
	healthhandler "storehub/backend/internal/health/handler"
	identityhandler "storehub/backend/internal/identity/handler"
	"storehub/backend/internal/identity/service"
	"storehub/backend/internal/jobs"
	"storehub/backend/internal/logger"
	"storehub/backend/internal/metrics"
	"storehub/backend/internal/platform/rbac"
	"storehub/backend/internal/policy/engine"
	"storehub/backend/internal/security"
	"storehub/backend/internal/server"
	"storehub/backend/internal/server/middleware"
	sessionhandler "storehub/backend/internal/session/handler"
	sessionrepo "storehub/backend/internal/session/repository"
	otelsetup "storehub/backend/internal/telemetry/otel"
	userrepo "storehub/backend/internal/user/repository"
)

const shutdownTimeout = 15 * time.Second

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.Env)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otelsetup.NewProviders(ctx, otelsetup.Config{
		Endpoint:       cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
		ServiceName:    cfg.OTelServiceName,
		ServiceVersion: version,
		Environment:    cfg.Env,
	}, log)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	sqlDB, err := db.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer sqlDB.Close()
	if cfg.AutoMigrate {
		if err := migrate.Apply(ctx, sqlDB, cfg.DBDriver, "up"); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("migrations applied", zap.String("driver", cfg.DBDriver))
	}

	key, err := cfg.SigningKey()
	if err != nil {
		return err
	}
	tokens, err := security.NewTokenIssuer(key, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())
	if err != nil {
		return fmt.Errorf("token issuer: %w", err)
	}

	roles := rbac.DefaultRoleTable()
	if cfg.RolePermissionsFile != "" {
		if roles, err = rbac.LoadRoleTable(cfg.RolePermissionsFile); err != nil {
			return err
		}
		if err := roles.Require(rbac.BuiltinRoles...); err != nil {
			return fmt.Errorf("role table %s: %w", cfg.RolePermissionsFile, err)
		}
	}

	var (
		authz  rbac.Authorizer = rbac.StaticAuthorizer{}
		policy healthhandler.PolicyChecker
	)
	if cfg.AuthzEngine == "opa" {
		var opa *engine.OPAAuthorizer
		if cfg.AuthzPolicyFile != "" {
			opa, err = engine.NewOPAAuthorizerFromFile(ctx, cfg.AuthzPolicyFile, log)
		} else {
			opa, err = engine.NewOPAAuthorizer(ctx, engine.DefaultPolicy, log)
		}
		if err != nil {
			return fmt.Errorf("authz: %w", err)
		}
		authz, policy = opa, opa
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	authMetrics := metrics.NewAuth(reg)

	events := auditrepo.NewSQLRepository(sqlDB)
	var sinks []audit.Sink
	if cfg.AuditDBSink {
		sinks = append(sinks, events)
	}
	kafkaSink := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.AuditKafkaTopic)
	if kafkaSink != nil {
		sinks = append(sinks, kafkaSink)
		defer kafkaSink.Close()
	}
	if cfg.OTLPEndpoint != "" {
		sinks = append(sinks, providers.AuditSink())
	}
	auditLog := audit.NewLogger(logger.WithComponent(log, "audit"), nil, sinks...)

	authSvc := service.NewAuthService(
		userrepo.NewSQLRepository(sqlDB),
		sessionrepo.NewSQLRepository(sqlDB),
		security.NewHasher(cfg.BcryptCost),
		tokens,
		roles,
		authMetrics,
		logger.WithComponent(log, "auth"),
	)
	authn := service.NewAudited(authSvc, auditLog)

	checker := healthhandler.NewChecker(sqlDB, policy)
	loginLimiter := middleware.NewIPRateLimiter(cfg.LoginRatePerMinute, cfg.LoginRateBurst)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := server.NewRouter(server.RouterDeps{
		Auth: identityhandler.NewAuthHandler(authn, identityhandler.CookieConfig{
			AccessName:  cfg.AccessCookieName,
			RefreshName: cfg.RefreshCookieName,
			RefreshPath: cfg.RefreshCookiePath,
			Domain:      cfg.CookieDomain,
			Secure:      cfg.CookieSecure,
		}, log),
		Session:          sessionhandler.NewHandler(authn, log),
		Audit:            audithandler.NewHandler(events, log),
		Health:           healthhandler.NewHTTP(checker, log),
		Resolver:         authn,
		Authorizer:       authz,
		AccessCookieName: cfg.AccessCookieName,
		LoginLimiter:     loginLimiter,
		Metrics:          authMetrics,
		MetricsHandler:   metrics.Handler(reg),
		Logger:           logger.WithComponent(log, "http"),
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, "storehub-http"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var cleanup *jobs.Cleanup
	if cfg.SessionCleanupSchedule != "" {
		cleanup, err = jobs.NewCleanup(cfg.SessionCleanupSchedule, authSvc, log, loginLimiter)
		if err != nil {
			return err
		}
		cleanup.Start()
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	var grpcSrv interface{ GracefulStop() }
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		s := server.NewGRPCServer(server.GRPCDeps{
			Resolver: authn,
			Health:   healthhandler.NewServer(checker),
			Logger:   logger.WithComponent(log, "grpc"),
		})
		grpcSrv = s
		go func() {
			log.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
			if err := s.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	if cleanup != nil {
		cleanup.Stop(shutdownCtx)
	}
	drainCtx, drainCancel := context.WithTimeout(context.Background(), audit.ShutdownDrainDuration)
	defer drainCancel()
	auditLog.Wait(drainCtx)
	log.Info("server stopped")
	return runErr
}
