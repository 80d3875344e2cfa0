package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mafiaidola/13-8-office-sub005/internal/ledger"
	"github.com/mafiaidola/13-8-office-sub005/internal/platform/cache"
	"github.com/mafiaidola/13-8-office-sub005/internal/platform/db"
	"github.com/mafiaidola/13-8-office-sub005/internal/sequence"
	"github.com/mafiaidola/13-8-office-sub005/internal/shared"
)

// Backends holds the storage connections shared by the binaries.
type Backends struct {
	Pool  *pgxpool.Pool
	Redis *redis.Client
	Mongo *mongo.Client

	logger *slog.Logger
}

// OpenBackends dials Postgres, Redis and, for the mongo sequence backend,
// MongoDB. Redis is optional unless it issues document numbers.
func OpenBackends(ctx context.Context, cfg *Config, logger *slog.Logger) (*Backends, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Backends{logger: logger}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, err
	}
	b.Pool = pool

	client, err := cache.New(ctx, cfg.RedisOptions())
	switch {
	case err == nil:
		b.Redis = client
	case cfg.SequenceBackend == SequenceRedis:
		b.Close()
		return nil, fmt.Errorf("redis sequence backend: %w", err)
	default:
		logger.Warn("redis unavailable, summary cache disabled", slog.Any("error", err))
	}

	if cfg.SequenceBackend == SequenceMongo {
		mc, err := db.NewMongo(ctx, cfg.MongoURI)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Mongo = mc
	}
	return b, nil
}

// Close releases every open connection.
func (b *Backends) Close() {
	if b == nil {
		return
	}
	if b.Mongo != nil {
		if err := b.Mongo.Disconnect(context.Background()); err != nil && b.logger != nil {
			b.logger.Warn("mongo disconnect", slog.Any("error", err))
		}
	}
	if b.Redis != nil {
		if err := b.Redis.Close(); err != nil && b.logger != nil {
			b.logger.Warn("redis close", slog.Any("error", err))
		}
	}
	if b.Pool != nil {
		b.Pool.Close()
	}
}

// Sequencer returns the configured out-of-transaction sequencer. The
// postgres backend returns nil: numbers are then issued inside each ledger
// transaction.
func (b *Backends) Sequencer(cfg *Config) (sequence.Sequencer, error) {
	switch cfg.SequenceBackend {
	case SequencePostgres, "":
		return nil, nil
	case SequenceRedis:
		if b.Redis == nil {
			return nil, errors.New("redis sequence backend: client not connected")
		}
		return sequence.NewRedis(b.Redis), nil
	case SequenceMongo:
		if b.Mongo == nil {
			return nil, errors.New("mongo sequence backend: client not connected")
		}
		return sequence.NewMongo(b.Mongo.Database(cfg.MongoDatabase)), nil
	default:
		return nil, fmt.Errorf("unknown SEQUENCE_BACKEND %q", cfg.SequenceBackend)
	}
}

// Counters returns a sequencer usable for read-only Peek calls regardless of
// backend.
func (b *Backends) Counters(cfg *Config) (sequence.Sequencer, error) {
	seq, err := b.Sequencer(cfg)
	if err != nil || seq != nil {
		return seq, err
	}
	if b.Pool == nil {
		return nil, errors.New("postgres sequence backend: pool not connected")
	}
	return sequence.NewPostgres(b.Pool), nil
}

// NewLedgerService wires the ledger service over the open backends. A nil
// registerer leaves ledger metrics disabled.
func NewLedgerService(cfg *Config, b *Backends, logger *slog.Logger, registerer prometheus.Registerer) (*ledger.Service, error) {
	if b == nil || b.Pool == nil {
		return nil, errors.New("ledger: postgres pool required")
	}
	seq, err := b.Sequencer(cfg)
	if err != nil {
		return nil, err
	}
	repo := ledger.NewPostgresRepository(b.Pool)
	if seq != nil {
		repo.WithSequencer(seq)
	}

	svc := ledger.NewService(repo, cfg.LedgerConfig(), logger)
	svc.SetAuditRecorder(shared.NewAuditLogger(b.Pool))
	svc.SetApprovalRecorder(shared.NewApprovalRecorder(b.Pool, logger))
	if b.Redis != nil {
		svc.SetSummaryCache(ledger.NewRedisSummaryCache(b.Redis, cfg.SummaryCacheTTL))
	}
	if registerer != nil {
		svc.SetMetrics(ledger.NewMetrics(registerer))
	}
	return svc, nil
}
