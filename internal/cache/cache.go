// Package cache maps image fingerprints to assembled invoice records.
package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

// Cache stores assembled records by fingerprint. Implementations are safe
// for concurrent use and never hand out records the caller can mutate into
// the cache.
type Cache interface {
	Get(ctx context.Context, fingerprint string) (*entity.InvoiceRecord, bool, error)
	// SetIfAbsent stores rec unless an entry already exists; the first
	// writer wins. It reports whether rec was stored.
	SetIfAbsent(ctx context.Context, fingerprint string, rec *entity.InvoiceRecord) (bool, error)
	Close() error
}

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// New builds the backend named by cfg.Backend. It returns nil for "none".
func New(cfg common.CacheConfig, logger *zap.Logger) (Cache, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemory(cfg.TTL, cfg.MaxEntries), nil
	case BackendRedis:
		return NewRedis(RedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.KeyPrefix,
			TTL:       cfg.TTL,
		}, logger), nil
	case BackendNone:
		return nil, nil
	}
	return nil, common.NewAppError(common.CodeConfigError, fmt.Sprintf("unknown cache backend %q", cfg.Backend), common.ErrInvalidInput)
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 24 * time.Hour
	}
	return ttl
}
