package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vietddude/deposit-watcher/internal/core/config"
	redisclient "github.com/vietddude/deposit-watcher/internal/infra/redis"
	"github.com/vietddude/deposit-watcher/internal/infra/storage"
	"github.com/vietddude/deposit-watcher/internal/infra/storage/memory"
	"github.com/vietddude/deposit-watcher/internal/infra/storage/postgres"
)

// Storage bundles the repositories the watcher and the CLI share.
type Storage struct {
	Deposits      storage.DepositRepository
	Blocks        storage.ProcessedBlockRepository
	Subscriptions storage.SubscriptionRepository
	Failed        storage.FailedBlockRepository

	// Backend names the primary store: "postgres" or "memory".
	Backend string
	// FailedBackend names where failed blocks are queued.
	FailedBackend string

	db    *postgres.DB
	redis *redisclient.Client
}

// OpenStorage connects PostgreSQL when database.url is set and runs the
// migrations; otherwise everything lives in memory. The failed-block queue
// moves to Redis when redis.url is set and reachable.
func OpenStorage(ctx context.Context, cfg *config.AppConfig) (*Storage, error) {
	s := &Storage{}

	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := postgres.Migrate(db.DB.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
		s.db = db
		s.Deposits = postgres.NewDepositRepo(db)
		s.Blocks = postgres.NewProcessedBlockRepo(db)
		s.Subscriptions = postgres.NewSubscriptionRepo(db)
		s.Failed = postgres.NewFailedBlockRepo(db)
		s.Backend = "postgres"
		s.FailedBackend = "postgres"
		slog.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewMemoryStorage()
		s.Deposits = memory.NewDepositRepo(store)
		s.Blocks = memory.NewProcessedBlockRepo(store)
		s.Subscriptions = memory.NewSubscriptionRepo(store)
		s.Failed = memory.NewFailedRepo(store)
		s.Backend = "memory"
		s.FailedBackend = "memory"
		slog.Warn("database.url not set, using memory storage; state is lost on exit")
	}

	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, failed blocks stay in "+s.Backend, "error", err)
		} else {
			s.redis = client
			s.Failed = redisclient.NewFailedBlockRepo(client, cfg.Redis.KeyPrefix)
			s.FailedBackend = "redis"
		}
	}

	return s, nil
}

// DB returns the PostgreSQL handle, nil for memory storage.
func (s *Storage) DB() *postgres.DB { return s.db }

// Redis returns the Redis client, nil when the queue is not in Redis.
func (s *Storage) Redis() *redisclient.Client { return s.redis }

// Close releases the connections.
func (s *Storage) Close() error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}
