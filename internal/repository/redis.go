package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/gridduel/duel-server-go/internal/config"
	"github.com/gridduel/duel-server-go/internal/game"
)

// NewRedisClient connects to Redis and pings it.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	if logger != nil {
		logger.Info("connected to redis",
			zap.String("addr", cfg.Addr),
			zap.Int("db", cfg.DB),
		)
	}
	return client, nil
}

// RedisGameStore keeps each record in a hash at duel:game:<id> with fields
// version and state. Saves run under WATCH so a concurrent writer aborts
// the transaction.
type RedisGameStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisGameStore creates a store. Keys expire ttl after their last write;
// zero keeps them forever.
func NewRedisGameStore(client *redis.Client, ttl time.Duration) *RedisGameStore {
	return &RedisGameStore{client: client, ttl: ttl}
}

func gameKey(gameID string) string {
	return fmt.Sprintf("duel:game:%s", gameID)
}

func (s *RedisGameStore) write(ctx context.Context, pipe redis.Pipeliner, key string, version int64, data []byte) {
	pipe.HSet(ctx, key, "version", version, "state", data)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
}

func (s *RedisGameStore) Create(ctx context.Context, rec *game.GameRecord) error {
	data, err := game.EncodeRecord(rec)
	if err != nil {
		return err
	}
	key := gameKey(rec.ID)

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %s", game.ErrGameExists, rec.ID)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.write(ctx, pipe, key, 1, data)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, game.ErrGameExists):
		return err
	case errors.Is(err, redis.TxFailedErr):
		return fmt.Errorf("%w: %s", game.ErrGameExists, rec.ID)
	default:
		return fmt.Errorf("failed to create game %s: %w", rec.ID, err)
	}
}

func (s *RedisGameStore) Load(ctx context.Context, gameID string) (*game.GameRecord, int64, error) {
	fields, err := s.client.HGetAll(ctx, gameKey(gameID)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load game %s: %w", gameID, err)
	}
	if len(fields) == 0 {
		return nil, 0, fmt.Errorf("%w: %s", game.ErrGameNotFound, gameID)
	}

	version, err := strconv.ParseInt(fields["version"], 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("game %s has malformed version %q: %w", gameID, fields["version"], err)
	}
	rec, err := game.DecodeRecord([]byte(fields["state"]))
	if err != nil {
		return nil, 0, err
	}
	return rec, version, nil
}

func (s *RedisGameStore) Save(ctx context.Context, rec *game.GameRecord, expectedVersion int64) (int64, error) {
	data, err := game.EncodeRecord(rec)
	if err != nil {
		return 0, err
	}
	key := gameKey(rec.ID)
	next := expectedVersion + 1

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, "version").Int64()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", game.ErrGameNotFound, rec.ID)
		}
		if err != nil {
			return err
		}
		if current != expectedVersion {
			return fmt.Errorf("%w: %s at version %d, expected %d",
				game.ErrVersionConflict, rec.ID, current, expectedVersion)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.write(ctx, pipe, key, next, data)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return next, nil
	case errors.Is(err, game.ErrGameNotFound), errors.Is(err, game.ErrVersionConflict):
		return 0, err
	case errors.Is(err, redis.TxFailedErr):
		return 0, fmt.Errorf("%w: %s changed during save", game.ErrVersionConflict, rec.ID)
	default:
		return 0, fmt.Errorf("failed to save game %s: %w", rec.ID, err)
	}
}
