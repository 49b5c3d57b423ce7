package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultRedisKeyPrefix = "substreams:cursor:"

var _ Checkpointer = (*RedisCheckpointer)(nil)

type RedisCheckpointer struct {
	rdb       *redis.Client
	keyPrefix string
	zlogger   *zap.Logger
}

func NewRedisCheckpointer(rdb *redis.Client, keyPrefix string, zlogger *zap.Logger) *RedisCheckpointer {
	if keyPrefix == "" {
		keyPrefix = DefaultRedisKeyPrefix
	}

	return &RedisCheckpointer{
		rdb:       rdb,
		keyPrefix: keyPrefix,
		zlogger:   zlogger,
	}
}

func (s *RedisCheckpointer) key(splitID string) string {
	return s.keyPrefix + splitID
}

func (s *RedisCheckpointer) Load(ctx context.Context, splitID string) (*Checkpoint, error) {
	if err := validateSplitID(splitID); err != nil {
		return nil, err
	}

	token, err := s.rdb.Get(ctx, s.key(splitID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			s.zlogger.Info("no checkpoint found", zap.String("split_id", splitID))
			return nil, nil
		}

		return nil, fmt.Errorf("get cursor of split %q: %w", splitID, err)
	}

	checkpoint, err := NewCheckpoint(token)
	if err != nil {
		return nil, fmt.Errorf("decode cursor of split %q: %w", splitID, err)
	}

	return checkpoint, nil
}

func (s *RedisCheckpointer) Save(ctx context.Context, splitID string, checkpoint *Checkpoint) error {
	if err := validateSplitID(splitID); err != nil {
		return err
	}

	if err := s.rdb.Set(ctx, s.key(splitID), checkpoint.Token, 0).Err(); err != nil {
		return fmt.Errorf("set cursor of split %q: %w", splitID, err)
	}

	return nil
}
