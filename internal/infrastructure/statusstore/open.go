package statusstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/juju/loggo"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	domain "github.com/mohammadpnp/hana-migration/internal/domain/migration"
	"github.com/mohammadpnp/hana-migration/internal/infrastructure/repository"
)

var logger = loggo.GetLogger("hanamigration.statusstore")

// Store is a status store that owns a connection.
type Store interface {
	domain.StatusStore
	Ping(ctx context.Context) error
	Close() error
}

type Options struct {
	// TTL applies to status records; zero keeps them forever.
	TTL time.Duration
}

// Open picks a backend from the URL scheme: redis://, rediss://, postgres://,
// postgresql:// or sqlite://<path>.
func Open(ctx context.Context, rawURL string, opts Options) (Store, error) {
	switch {
	case strings.HasPrefix(rawURL, "redis://"), strings.HasPrefix(rawURL, "rediss://"):
		redisOpts, err := redis.ParseURL(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		store := NewRedisStore(redis.NewClient(redisOpts), opts.TTL)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		logger.Infof("status store: redis at %s", redisOpts.Addr)
		return store, nil

	case strings.HasPrefix(rawURL, "postgres://"), strings.HasPrefix(rawURL, "postgresql://"):
		return openSQL(ctx, postgres.Open(rawURL), "postgres", opts)

	case strings.HasPrefix(rawURL, "sqlite://"):
		path := strings.TrimPrefix(rawURL, "sqlite://")
		if path == "" {
			return nil, fmt.Errorf("sqlite url needs a path: %q", rawURL)
		}
		return openSQL(ctx, sqlite.Open(path), "sqlite", opts)

	default:
		return nil, fmt.Errorf("unsupported status store url: %q", rawURL)
	}
}

func openSQL(ctx context.Context, dialector gorm.Dialector, name string, opts Options) (Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", name, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get %s handle: %w", name, err)
	}
	if name == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	repo := repository.NewStatusRepository(db, opts.TTL)
	if err := repo.Ping(ctx); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("ping %s: %w", name, err)
	}
	if err := repo.Migrate(ctx); err != nil {
		_ = repo.Close()
		return nil, err
	}

	logger.Infof("status store: %s", name)
	return repo, nil
}
