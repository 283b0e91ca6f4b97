// Package bootstrap wires configuration into the services shared by the api, purger and timerctl binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"example.com/activitytimer/internal/account"
	"example.com/activitytimer/internal/backup"
	"example.com/activitytimer/internal/config"
	"example.com/activitytimer/internal/domain"
	"example.com/activitytimer/internal/events"
	"example.com/activitytimer/internal/identity"
	"example.com/activitytimer/internal/lock"
	"example.com/activitytimer/internal/merge"
	"example.com/activitytimer/internal/persistence/memory"
	"example.com/activitytimer/internal/persistence/postgres"
	"example.com/activitytimer/internal/reservation"
	"example.com/activitytimer/internal/store"
	"example.com/activitytimer/internal/tracker"
)

// ErrNoArchive is returned when an operation needs the backup archive and none is configured.
var ErrNoArchive = errors.New("backup archive not configured")

// Publisher is the outgoing event surface: merge refresh signals and purge notices.
type Publisher interface {
	merge.Refresher
	reservation.Notifier
}

// Services is the fully wired application graph.
type Services struct {
	Repo        *store.Repository
	Executor    *merge.Executor
	Flow        *merge.Flow
	Tracker     *tracker.Service
	Reservation *reservation.Service
	Purger      *reservation.Purger
	Importer    *backup.Importer
	Upgrader    *account.Upgrader
	Publisher   Publisher

	// Archive is nil when no backup bucket is configured.
	Archive *backup.S3Archive

	closers []func()
}

// Close releases connections in reverse order of acquisition.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// New connects the configured backends and builds every service.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Services, error) {
	s := &Services{}

	docs, err := s.openDocuments(ctx, cfg, logger)
	if err != nil {
		s.Close()
		return nil, err
	}

	locker, err := s.openLocker(ctx, cfg, logger)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Publisher = s.openPublisher(cfg, logger)

	if cfg.BackupBucket != "" {
		client, err := backup.NewS3Client(ctx, cfg.BackupRegion, cfg.AWSAccessKey, cfg.AWSSecretKey)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("backup archive: %w", err)
		}
		s.Archive = &backup.S3Archive{Client: client, Bucket: cfg.BackupBucket, Prefix: cfg.BackupPrefix}
	}

	s.Repo = store.New(docs, store.WithLogger(logger.With().Str("component", "store").Logger()))
	s.Executor = merge.NewExecutor(s.Repo,
		merge.WithExecutorLogger(logger.With().Str("component", "merge").Logger()),
		merge.WithWriteConcurrency(cfg.MergeWriteConcurrency),
	)
	s.Flow = merge.NewFlow(s.Repo, s.Executor,
		merge.WithFlowLogger(logger.With().Str("component", "merge_flow").Logger()),
		merge.WithRefresher(s.Publisher),
		merge.WithLocker(locker),
	)
	s.Tracker = tracker.NewService(s.Repo, logger.With().Str("component", "tracker").Logger())
	s.Reservation = reservation.NewService(s.Repo, logger.With().Str("component", "reservation").Logger())
	s.Purger = reservation.NewPurger(s.Repo, s.Publisher, cfg.PurgeConcurrency, logger.With().Str("component", "purger").Logger())
	s.Importer = backup.NewImporter(s.Flow, logger.With().Str("component", "backup").Logger())
	s.Upgrader = account.NewUpgrader(
		identity.NewHTTPProvider(cfg.IdentityProviderURL, cfg.IdentityTimeout),
		s.Repo,
		s.Reservation,
		s.Flow,
		logger.With().Str("component", "account").Logger(),
	)
	return s, nil
}

func (s *Services) openDocuments(ctx context.Context, cfg config.Config, logger zerolog.Logger) (domain.DocumentStore, error) {
	if cfg.StoreDriver == "memory" {
		logger.Warn().Str("evt.name", "store.memory").Msg("using in-memory document store; data is lost on exit")
		return memory.NewStore(), nil
	}
	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	s.closers = append(s.closers, pool.Close)
	return postgres.NewStore(pool), nil
}

func (s *Services) openLocker(ctx context.Context, cfg config.Config, logger zerolog.Logger) (merge.Locker, error) {
	if cfg.RedisURL == "" {
		return &lock.Local{}, nil
	}
	client, err := lock.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("owner lock: %w", err)
	}
	s.closers = append(s.closers, func() {
		if err := client.Close(); err != nil {
			logger.Warn().Err(err).Msg("redis close failed")
		}
	})
	return lock.NewRedis(client, 5*time.Minute, logger.With().Str("component", "lock").Logger()), nil
}

func (s *Services) openPublisher(cfg config.Config, logger zerolog.Logger) Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.Noop{}
	}
	writer := events.NewKafkaWriter(cfg.KafkaBrokers, cfg.RefreshTopic)
	s.closers = append(s.closers, func() {
		if err := writer.Close(); err != nil {
			logger.Warn().Err(err).Msg("kafka writer close failed")
		}
	})
	return events.NewPublisher(writer, logger.With().Str("component", "events").Logger())
}
