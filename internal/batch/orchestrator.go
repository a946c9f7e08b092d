// Package batch runs many recognitions concurrently with per-item
// isolation, caching, rate limiting and retries.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/cache"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
	"github.com/joseph-ayodele/invoice-ocr/internal/imageproc"
	"github.com/joseph-ayodele/invoice-ocr/internal/metrics"
	"github.com/joseph-ayodele/invoice-ocr/internal/ocr"
	"github.com/joseph-ayodele/invoice-ocr/internal/resilience"
)

// Recognizer is the single-item pipeline as seen by the orchestrator.
type Recognizer interface {
	Decode(ctx context.Context, data []byte) (ocr.Image, error)
	Process(ctx context.Context, img ocr.Image) (*entity.InvoiceRecord, error)
}

// Fetcher downloads images given by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Archiver persists successful records.
type Archiver interface {
	Save(ctx context.Context, batchID, itemID string, rec *entity.InvoiceRecord) error
}

// Config holds orchestrator limits.
type Config struct {
	DefaultParallel   int
	MaxParallel       int
	MaxBatchSize      int
	ItemTimeout       time.Duration
	RequestsPerMinute int // 0 disables rate limiting
	Burst             int
	Retry             resilience.RetryPolicy
	StatusRetention   time.Duration
}

func DefaultConfig() Config {
	return Config{
		DefaultParallel: 3,
		MaxParallel:     constants.MaxParallelCount,
		MaxBatchSize:    50,
		ItemTimeout:     30 * time.Second,
		Retry:           resilience.DefaultRetryPolicy(),
		StatusRetention: time.Hour,
	}
}

// ConfigFrom maps the batch section of the application config.
func ConfigFrom(c common.BatchConfig) Config {
	return Config{
		DefaultParallel:   c.DefaultParallel,
		MaxParallel:       c.MaxParallel,
		MaxBatchSize:      c.MaxBatchSize,
		ItemTimeout:       c.ItemTimeout,
		RequestsPerMinute: c.RequestsPerMinute,
		Burst:             c.Burst,
		Retry: resilience.RetryPolicy{
			MaxAttempts:    c.RetryAttempts,
			InitialBackoff: c.RetryBackoff,
			MaxBackoff:     c.RetryMaxBackoff,
			Multiplier:     2,
			JitterFraction: 0.2,
		},
		StatusRetention: c.StatusRetention,
	}
}

type Orchestrator struct {
	rec      Recognizer
	cfg      Config
	cache    cache.Cache
	limiter  *rate.Limiter
	fetcher  Fetcher
	archiver Archiver
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time

	flights singleflight.Group

	mu      sync.Mutex
	batches map[string]*tracker
}

type Option func(*Orchestrator)

func WithCache(c cache.Cache) Option        { return func(o *Orchestrator) { o.cache = c } }
func WithFetcher(f Fetcher) Option          { return func(o *Orchestrator) { o.fetcher = f } }
func WithArchiver(a Archiver) Option        { return func(o *Orchestrator) { o.archiver = a } }
func WithMetrics(m *metrics.Metrics) Option { return func(o *Orchestrator) { o.metrics = m } }

// WithLimiter replaces the limiter built from RequestsPerMinute.
func WithLimiter(l *rate.Limiter) Option { return func(o *Orchestrator) { o.limiter = l } }

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func New(rec Recognizer, cfg Config, logger *zap.Logger, opts ...Option) *Orchestrator {
	def := DefaultConfig()
	if cfg.DefaultParallel <= 0 {
		cfg.DefaultParallel = def.DefaultParallel
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = def.MaxParallel
	}
	cfg.MaxParallel = min(cfg.MaxParallel, constants.MaxParallelCount)
	cfg.DefaultParallel = min(cfg.DefaultParallel, cfg.MaxParallel)
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = def.MaxBatchSize
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = def.ItemTimeout
	}
	if cfg.StatusRetention <= 0 {
		cfg.StatusRetention = def.StatusRetention
	}
	o := &Orchestrator{
		rec:     rec,
		cfg:     cfg,
		logger:  common.LoggerOrNop(logger),
		now:     time.Now,
		batches: make(map[string]*tracker),
	}
	if cfg.RequestsPerMinute > 0 {
		o.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60), max(1, cfg.Burst))
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run processes every item and returns outcomes in input order. Only a
// malformed request is an error; item failures are reported per item.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*entity.BatchResult, error) {
	if err := o.validate(req); err != nil {
		return nil, err
	}
	batchID := req.BatchID
	if batchID == "" {
		batchID = uuid.NewString()
	}
	parallel := o.parallelism(req.ParallelCount)
	itemTimeout := req.ItemTimeout
	if itemTimeout <= 0 {
		itemTimeout = o.cfg.ItemTimeout
	}

	runCtx, cancel := context.WithCancel(common.WithBatchID(ctx, batchID))
	defer cancel()
	if req.OverallDeadline > 0 {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithTimeout(runCtx, req.OverallDeadline)
		defer cancelDeadline()
	}

	t := newTracker(batchID, req.Items, o.now(), cancel)
	if err := o.register(t); err != nil {
		return nil, err
	}
	o.metrics.BatchStarted()

	log := o.logger.With(zap.String("batch_id", batchID))
	log.Info("batch.start",
		zap.Int("items", len(req.Items)),
		zap.Int("parallel", parallel),
		zap.Duration("item_timeout", itemTimeout),
		zap.Duration("overall_deadline", req.OverallDeadline),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		var g errgroup.Group
		g.SetLimit(parallel)
		for i, it := range req.Items {
			if runCtx.Err() != nil {
				break
			}
			g.Go(func() error {
				if runCtx.Err() != nil {
					return nil
				}
				t.begin(i, o.now())
				item := o.processItem(runCtx, batchID, it, itemTimeout)
				if t.finalize(i, item) {
					o.metrics.ObserveItem(string(item.Status), itemCode(item), item.Duration)
				}
				return nil // never abort siblings
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-runCtx.Done():
	}

	state := constants.BatchStateCompleted
	if err := runCtx.Err(); err != nil {
		now := o.now()
		status, code, msg := constants.ItemStatusTimeout, common.CodeTimeout, "batch deadline exceeded"
		state = constants.BatchStateExpired
		if t.isCancelled() || (errors.Is(err, context.Canceled) && ctx.Err() != nil) {
			status, code, msg = constants.ItemStatusFailed, common.CodeCancelled, "batch was cancelled"
			state = constants.BatchStateCancelled
		}
		n := t.finalizeRemaining(now, status, code, msg)
		for range n {
			o.metrics.ObserveItem(string(status), code, 0)
		}
		if n == 0 {
			state = constants.BatchStateCompleted
		} else {
			log.Warn("batch.interrupted", zap.String("state", string(state)), zap.Int("unfinished", n))
		}
	}

	res := t.finish(state, o.now())
	o.metrics.BatchFinished(string(state))
	log.Info("batch.done",
		zap.String("state", string(state)),
		zap.Int("succeeded", res.Stats.Succeeded),
		zap.Int("failed", res.Stats.Failed),
		zap.Int("timed_out", res.Stats.TimedOut),
		zap.Int("cache_hits", res.Stats.CacheHits),
		zap.Int64("elapsed_ms", res.Stats.TotalDuration.Milliseconds()),
	)
	return res, nil
}

// Recognize processes a single image with the cache, limiter and retries
// the batch path uses.
func (o *Orchestrator) Recognize(ctx context.Context, data []byte) (*entity.InvoiceRecord, error) {
	if len(data) == 0 {
		return nil, common.NewInputError(common.CodeMalformedInput, "image data is required", nil)
	}
	ctx, cancel := context.WithTimeout(ctx, o.cfg.ItemTimeout)
	defer cancel()
	rec, _, _, err := o.recognize(ctx, data)
	return rec, err
}

// Status reports progress of a running or recently finished batch.
func (o *Orchestrator) Status(batchID string) (entity.BatchProgress, error) {
	o.mu.Lock()
	t, ok := o.batches[batchID]
	o.mu.Unlock()
	if !ok {
		return entity.BatchProgress{}, fmt.Errorf("batch %s: %w", batchID, common.ErrNotFound)
	}
	return t.progress(), nil
}

// Cancel stops a running batch; unfinished items end as failed/cancelled.
// It reports false when the batch already finished.
func (o *Orchestrator) Cancel(batchID string) (bool, error) {
	o.mu.Lock()
	t, ok := o.batches[batchID]
	o.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("batch %s: %w", batchID, common.ErrNotFound)
	}
	if !t.markCancelled() {
		return false, nil
	}
	t.cancel()
	o.logger.Info("batch.cancel", zap.String("batch_id", batchID))
	return true, nil
}

func (o *Orchestrator) register(t *tracker) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now()
	for id, old := range o.batches {
		if old.expired(now, o.cfg.StatusRetention) {
			delete(o.batches, id)
		}
	}
	if _, dup := o.batches[t.id]; dup {
		return common.NewInputError(common.CodeMalformedBatch, "batch id "+t.id+" is already in use", nil)
	}
	o.batches[t.id] = t
	return nil
}

func (o *Orchestrator) processItem(ctx context.Context, batchID string, it Item, timeout time.Duration) entity.BatchItem {
	start := o.now()
	ictx, cancel := context.WithTimeout(common.WithItemID(ctx, it.ID), timeout)
	defer cancel()

	out := entity.BatchItem{ID: it.ID}
	data := it.Data
	var err error
	if len(data) == 0 {
		data, err = o.fetch(ictx, it.URL)
	}
	var rec *entity.InvoiceRecord
	if err == nil {
		rec, out.CacheHit, out.Attempts, err = o.recognize(ictx, data)
	}
	out.Duration = o.now().Sub(start)

	log := o.logger.With(common.ContextFields(ictx)...)
	if err != nil {
		out.Status, out.Error = itemFailure(err)
		log.Warn("batch.item.failed",
			zap.String("code", out.Error.Code),
			zap.Int("attempts", out.Attempts),
			zap.Int64("elapsed_ms", out.Duration.Milliseconds()),
			zap.Error(err),
		)
		return out
	}

	out.Status = constants.ItemStatusSuccess
	out.Record = rec
	if o.archiver != nil {
		if err := o.archiver.Save(ictx, batchID, it.ID, rec); err != nil {
			log.Warn("batch.item.archive_failed", zap.Error(err))
		}
	}
	log.Info("batch.item.ok",
		zap.String("fingerprint", rec.Fingerprint),
		zap.String("type_code", rec.Type.Code),
		zap.Bool("cache_hit", out.CacheHit),
		zap.Int("attempts", out.Attempts),
		zap.Int64("elapsed_ms", out.Duration.Milliseconds()),
	)
	return out
}

func (o *Orchestrator) fetch(ctx context.Context, url string) ([]byte, error) {
	if o.fetcher == nil {
		return nil, common.NewInputError(common.CodeFetchError, "image urls are not supported by this service", nil)
	}
	return o.fetcher.Fetch(ctx, url)
}

type flight struct {
	rec *entity.InvoiceRecord
	hit bool
}

// recognize resolves data through the cache, collapsing concurrent misses
// on the same fingerprint into one engine run. The attempt count covers
// engine calls made on behalf of this caller, even when its deadline cuts
// the retries short.
func (o *Orchestrator) recognize(ctx context.Context, data []byte) (*entity.InvoiceRecord, bool, int, error) {
	fp := imageproc.Fingerprint(data)
	ctx = common.WithFingerprint(ctx, fp)

	if rec, ok := o.cacheGet(ctx, fp); ok {
		return rec, true, 0, nil
	}

	var attempts atomic.Int32
	ch := o.flights.DoChan(fp, func() (any, error) {
		if rec, ok := o.cacheGet(ctx, fp); ok {
			return flight{rec: rec, hit: true}, nil
		}
		rec, err := o.compute(ctx, data, &attempts)
		if err != nil {
			return flight{}, err
		}
		o.cachePut(ctx, fp, rec)
		return flight{rec: rec}, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, int(attempts.Load()), contextFailure(ctx)
	case res := <-ch:
		f, _ := res.Val.(flight)
		if res.Err == nil {
			return f.rec.Clone(), f.hit, int(attempts.Load()), nil
		}
		if ctx.Err() != nil {
			return nil, false, int(attempts.Load()), contextFailure(ctx)
		}
		if res.Shared && isContextCode(res.Err) {
			// the leader ran out of time; this caller still has budget
			rec, err := o.compute(ctx, data, &attempts)
			if err != nil {
				return nil, false, int(attempts.Load()), err
			}
			o.cachePut(ctx, fp, rec)
			return rec, false, int(attempts.Load()), nil
		}
		return nil, false, int(attempts.Load()), res.Err
	}
}

// compute decodes once and retries the engine stage on engine errors,
// taking a rate-limit token before every attempt. attempts counts engine
// calls as they start.
func (o *Orchestrator) compute(ctx context.Context, data []byte, attempts *atomic.Int32) (*entity.InvoiceRecord, error) {
	img, err := o.rec.Decode(ctx, data)
	if err != nil {
		return nil, err
	}
	policy := o.cfg.Retry
	policy.OnRetry = func(attempt int, err error) {
		o.metrics.Retry()
		o.logger.Warn("batch.item.retry",
			append(common.ContextFields(ctx), zap.Int("attempt", attempt), zap.Error(err))...)
	}
	rec, _, err := resilience.DoVal(ctx, policy, func(ctx context.Context) (*entity.InvoiceRecord, error) {
		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				if errors.Is(ctx.Err(), context.Canceled) {
					return nil, ctx.Err()
				}
				return nil, common.NewTimeoutError("rate limit wait exceeds the item deadline", err)
			}
		}
		attempts.Add(1)
		return o.rec.Process(ctx, img)
	})
	return rec, err
}

func (o *Orchestrator) cacheGet(ctx context.Context, fp string) (*entity.InvoiceRecord, bool) {
	if o.cache == nil {
		return nil, false
	}
	rec, ok, err := o.cache.Get(ctx, fp)
	if err != nil {
		o.logger.Warn("batch.cache.get_failed", zap.String("fingerprint", fp), zap.Error(err))
		ok = false
	}
	o.metrics.CacheResult(ok)
	return rec, ok
}

func (o *Orchestrator) cachePut(ctx context.Context, fp string, rec *entity.InvoiceRecord) {
	if o.cache == nil {
		return
	}
	if _, err := o.cache.SetIfAbsent(ctx, fp, rec); err != nil {
		o.logger.Warn("batch.cache.set_failed", zap.String("fingerprint", fp), zap.Error(err))
	}
}

func contextFailure(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return common.NewTimeoutError("item deadline exceeded", ctx.Err())
	}
	return ctx.Err()
}

func isContextCode(err error) bool {
	code := common.CodeOf(err)
	return code == common.CodeTimeout || code == common.CodeCancelled
}

func itemFailure(err error) (constants.ItemStatus, *entity.ItemError) {
	code := common.CodeOf(err)
	msg := err.Error()
	if ae, ok := common.AsAppError(err); ok {
		msg = ae.Message
	}
	if code == common.CodeTimeout {
		return constants.ItemStatusTimeout, &entity.ItemError{Code: code, Message: msg}
	}
	return constants.ItemStatusFailed, &entity.ItemError{Code: code, Message: msg}
}

func itemCode(it entity.BatchItem) string {
	if it.Error == nil {
		return ""
	}
	return it.Error.Code
}
