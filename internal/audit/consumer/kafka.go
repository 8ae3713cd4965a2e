// Package consumer archives audit events published to Kafka into the audit_logs table.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"storehub/backend/internal/audit/domain"
)

const storeTimeout = 10 * time.Second

// messageReader is the subset of *kafka.Reader used by Archiver.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Store persists audit events. *repository.SQLRepository implements it; Create must ignore duplicate IDs.
type Store interface {
	Create(ctx context.Context, e *domain.Event) error
}

// Archiver reads audit events from a Kafka topic and stores them.
type Archiver struct {
	reader messageReader
	store  Store
	logger *zap.Logger
}

// NewArchiver returns an Archiver consuming topic as part of groupID.
func NewArchiver(brokers []string, topic, groupID string, store Store, logger *zap.Logger) *Archiver {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	return newArchiver(reader, store, logger)
}

func newArchiver(reader messageReader, store Store, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{reader: reader, store: store, logger: logger.Named("audit_archiver")}
}

// Run consumes until ctx is cancelled. Malformed messages are logged and skipped.
func (a *Archiver) Run(ctx context.Context) error {
	for {
		msg, err := a.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			a.logger.Warn("kafka read error", zap.Error(err))
			continue
		}
		a.handle(ctx, msg)
	}
}

func (a *Archiver) handle(ctx context.Context, msg kafka.Message) {
	var e domain.Event
	if err := json.Unmarshal(msg.Value, &e); err != nil || e.ID == "" || e.Action == "" {
		a.logger.Warn("skipping malformed audit message",
			zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Error(err))
		return
	}
	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := a.store.Create(storeCtx, &e); err != nil {
		a.logger.Error("store audit event", zap.String("id", e.ID), zap.Error(err))
	}
}

// Close closes the Kafka reader.
func (a *Archiver) Close() error {
	return a.reader.Close()
}
