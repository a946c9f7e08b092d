package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// Redis shares cached records between processes. First-writer-wins is
// enforced with SETNX.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedis(cfg RedisConfig, logger *zap.Logger) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	return NewRedisFromClient(rdb, cfg.KeyPrefix, cfg.TTL, logger)
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(rdb *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *Redis {
	return &Redis{client: rdb, prefix: prefix, ttl: ttlOrDefault(ttl), logger: common.LoggerOrNop(logger)}
}

func (r *Redis) key(fp string) string { return r.prefix + fp }

func (r *Redis) Get(ctx context.Context, fp string) (*entity.InvoiceRecord, bool, error) {
	raw, err := r.client.Get(ctx, r.key(fp)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var rec entity.InvoiceRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		// corrupt entries are misses and get dropped
		r.logger.Warn("cache.redis.corrupt_entry", zap.String("fingerprint", fp), zap.Error(err))
		_ = r.client.Del(ctx, r.key(fp)).Err()
		return nil, false, nil
	}
	return &rec, true, nil
}

func (r *Redis) SetIfAbsent(ctx context.Context, fp string, rec *entity.InvoiceRecord) (bool, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("encode record: %w", err)
	}
	ok, err := r.client.SetNX(ctx, r.key(fp), raw, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
