// Worker consumes audit events from Kafka and archives them into audit_logs.
// Set KAFKA_BROKERS, AUDIT_KAFKA_TOPIC, KAFKA_GROUP_ID, DB_DRIVER and DATABASE_URL. JWT_SECRET is validated
// by config but unused here. Run it when the server has AUDIT_DB_SINK=false.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"storehub/backend/internal/audit/consumer"
	auditrepo "storehub/backend/internal/audit/repository"
	"storehub/backend/internal/config"
	"storehub/backend/internal/db"
	"storehub/backend/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.WithComponent(logger.New(cfg.LogLevel, cfg.Env), "worker")
	defer func() { _ = log.Sync() }()

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("KAFKA_BROKERS is required")
	}

	conn, err := db.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("db", zap.Error(err))
	}
	defer conn.Close()

	archiver := consumer.NewArchiver(brokers, cfg.AuditKafkaTopic, cfg.KafkaGroupID, auditrepo.NewSQLRepository(conn), log)
	defer archiver.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("consuming audit events",
		zap.String("topic", cfg.AuditKafkaTopic), zap.String("group", cfg.KafkaGroupID))
	if err := archiver.Run(ctx); err != nil {
		log.Error("worker stopped", zap.Error(err))
		return
	}
	log.Info("worker stopped")
}
