package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/workspaces/pkg/observability"
	"github.com/platinummonkey/workspaces/pkg/storage/memory"
	"github.com/platinummonkey/workspaces/pkg/storage/postgres"
	"github.com/platinummonkey/workspaces/pkg/workspace"
)

// Opened is a ready repository with its health checks and closer
type Opened struct {
	Backend    Backend
	Repository workspace.Repository
	Checks     []observability.DependencyCheck
	// DB is the primary SQL handle, nil for non SQL backends
	DB         *sql.DB
	close      func() error
}

// Close releases the backend connections
func (o *Opened) Close() error {
	if o.close == nil {
		return nil
	}
	return o.close()
}

// Open connects the configured backend
func Open(ctx context.Context, cfg Config, logger *observability.Logger) (*Opened, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	switch cfg.Backend {
	case BackendFilesystem:
		repo, err := NewFileSystemRepository(cfg.FilesystemRoot)
		if err != nil {
			return nil, err
		}
		return &Opened{Backend: cfg.Backend, Repository: repo}, nil

	case BackendPostgres:
		conn, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
			PrimaryURL:  cfg.PostgresURL,
			ReplicaURLs: cfg.PostgresReplicaURLs,
			MaxConns:    cfg.PostgresMaxConns,
			MinConns:    cfg.PostgresMinConns,
			Timeout:     cfg.PostgresTimeout,
			MaxLifetime: time.Hour,
			MaxIdleTime: 10 * time.Minute,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		repo := postgres.NewRepository(conn)
		if cfg.AutoMigrate {
			if err := repo.Migrate(ctx); err != nil {
				conn.Close()
				return nil, err
			}
		}
		return &Opened{
			Backend:    cfg.Backend,
			Repository: repo,
			DB:         conn.Primary(),
			Checks: []observability.DependencyCheck{{
				Name:  "postgres",
				Check: repo.HealthCheck,
			}},
			close: repo.Close,
		}, nil

	case BackendRedis:
		client, err := postgres.NewRedisClient(postgres.RedisConfig{
			URL:        cfg.RedisURL,
			Password:   cfg.RedisPassword,
			DB:         cfg.RedisDB,
			MaxRetries: cfg.RedisMaxRetries,
			PoolSize:   cfg.RedisPoolSize,
		})
		if err != nil {
			return nil, err
		}
		repo := postgres.NewRedisRepository(client, cfg.RedisKeyPrefix)
		return &Opened{
			Backend:    cfg.Backend,
			Repository: repo,
			Checks:     []observability.DependencyCheck{observability.RedisCheck("redis", client)},
			close:      repo.Close,
		}, nil

	default:
		return &Opened{Backend: BackendMemory, Repository: memory.NewRepository()}, nil
	}
}
