package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/streamingfast/dstore"
	"go.uber.org/zap"
)

// NewCheckpointerFromURL picks the backend from the scheme of storeURL:
// `postgres://` and `postgresql://` use a table, `redis://` and `rediss://`
// use keys, `memory://` keeps everything in process and anything else is
// handed to dstore. The returned close function releases connections.
func NewCheckpointerFromURL(ctx context.Context, storeURL string, zlogger *zap.Logger) (Checkpointer, func() error, error) {
	noopClose := func() error { return nil }

	switch Scheme(storeURL) {
	case "postgres", "postgresql":
		db, err := sql.Open("postgres", storeURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}

		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}

		checkpointer := NewPostgresCheckpointer(db, DefaultPostgresTable, zlogger)
		if err := checkpointer.InitSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}

		return checkpointer, db.Close, nil

	case "redis", "rediss":
		opts, err := redis.ParseURL(storeURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}

		rdb := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		return NewRedisCheckpointer(rdb, DefaultRedisKeyPrefix, zlogger), rdb.Close, nil

	case "memory":
		return NewMemoryCheckpointer(), noopClose, nil
	}

	store, err := dstore.NewStore(storeURL, "", "", true)
	if err != nil {
		return nil, nil, fmt.Errorf("new state store %q: %w", storeURL, err)
	}

	return NewDStoreCheckpointer(store, zlogger), noopClose, nil
}
