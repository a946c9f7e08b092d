package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

func record(code string) *entity.InvoiceRecord {
	return &entity.InvoiceRecord{
		Type: entity.InvoiceTypeCandidate{Code: code, Confidence: 0.8},
		Fields: map[constants.FieldName]entity.ExtractedField{
			constants.FieldInvoiceNumber: {Name: constants.FieldInvoiceNumber, NormalizedValue: "08527037", Valid: true, SourceRegions: []int{2}},
		},
		OverallConfidence: 0.9,
		Fingerprint:       "fp",
		ProcessedAt:       time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC),
	}
}

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "invoice_ocr:", time.Hour, zap.NewNop())
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func backends(t *testing.T) map[string]Cache {
	_, r := newMiniRedis(t)
	return map[string]Cache{
		"memory": NewMemory(time.Hour, 0),
		"redis":  r,
	}
}

func TestCache_FirstWriterWins(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := c.Get(ctx, "fp")
			require.NoError(t, err)
			assert.False(t, ok)

			stored, err := c.SetIfAbsent(ctx, "fp", record("10"))
			require.NoError(t, err)
			assert.True(t, stored)

			stored, err = c.SetIfAbsent(ctx, "fp", record("04"))
			require.NoError(t, err)
			assert.False(t, stored)

			got, ok, err := c.Get(ctx, "fp")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "10", got.Type.Code)
			assert.Equal(t, "08527037", got.Fields[constants.FieldInvoiceNumber].NormalizedValue)
			assert.True(t, got.ProcessedAt.Equal(record("").ProcessedAt))
		})
	}
}

func TestCache_ConcurrentWritersOneWinner(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			var mu sync.Mutex
			wins := 0
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := c.SetIfAbsent(ctx, "same", record("10"))
					assert.NoError(t, err)
					if ok {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, 1, wins)
		})
	}
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour, 0)
	rec := record("10")
	_, err := m.SetIfAbsent(ctx, "fp", rec)
	require.NoError(t, err)

	rec.Type.Code = "mutated after store"
	got, _, _ := m.Get(ctx, "fp")
	got.Fields[constants.FieldInvoiceNumber] = entity.ExtractedField{}

	again, _, _ := m.Get(ctx, "fp")
	assert.Equal(t, "10", again.Type.Code)
	assert.Equal(t, "08527037", again.Fields[constants.FieldInvoiceNumber].NormalizedValue)
}

func TestMemory_TTLAndEviction(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	m := NewMemory(time.Minute, 2).WithClock(func() time.Time { return now })

	_, _ = m.SetIfAbsent(ctx, "a", record("10"))
	now = now.Add(time.Second)
	_, _ = m.SetIfAbsent(ctx, "b", record("10"))
	now = now.Add(time.Second)
	_, _ = m.SetIfAbsent(ctx, "c", record("10"))

	_, ok, _ := m.Get(ctx, "a")
	assert.False(t, ok, "oldest evicted at capacity")
	assert.Equal(t, 2, m.Len())

	now = now.Add(2 * time.Minute)
	_, ok, _ = m.Get(ctx, "c")
	assert.False(t, ok, "expired")

	stored, _ := m.SetIfAbsent(ctx, "c", record("04"))
	assert.True(t, stored, "expired entries can be replaced")
}

func TestRedis_TTLAndCorruptEntry(t *testing.T) {
	ctx := context.Background()
	mr, c := newMiniRedis(t)

	_, err := c.SetIfAbsent(ctx, "fp", record("10"))
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mr.TTL("invoice_ocr:fp"))

	require.NoError(t, mr.Set("invoice_ocr:bad", "{not json"))
	_, ok, err := c.Get(ctx, "bad")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("invoice_ocr:bad"))

	mr.FastForward(2 * time.Hour)
	_, ok, err = c.Get(ctx, "fp")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_Unreachable(t *testing.T) {
	mr, c := newMiniRedis(t)
	mr.Close()
	_, _, err := c.Get(context.Background(), "fp")
	assert.Error(t, err)
}

func TestNew_Backends(t *testing.T) {
	c, err := New(common.CacheConfig{Backend: BackendMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	c, err = New(common.CacheConfig{Backend: BackendNone}, nil)
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = New(common.CacheConfig{Backend: "memcached"}, nil)
	assert.Equal(t, common.CodeConfigError, common.CodeOf(err))
}
