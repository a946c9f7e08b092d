// Package core wires the recognition pipeline, batch orchestrator, cache and
// record store behind one facade used by the CLI and the gRPC server.
package core

import (
	"context"
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/assemble"
	"github.com/joseph-ayodele/invoice-ocr/internal/batch"
	"github.com/joseph-ayodele/invoice-ocr/internal/cache"
	"github.com/joseph-ayodele/invoice-ocr/internal/classify"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
	"github.com/joseph-ayodele/invoice-ocr/internal/extract"
	"github.com/joseph-ayodele/invoice-ocr/internal/fields"
	"github.com/joseph-ayodele/invoice-ocr/internal/imageproc"
	"github.com/joseph-ayodele/invoice-ocr/internal/metrics"
	"github.com/joseph-ayodele/invoice-ocr/internal/ocr"
	"github.com/joseph-ayodele/invoice-ocr/internal/pipeline"
	"github.com/joseph-ayodele/invoice-ocr/internal/repository"
)

// Service is safe for concurrent use.
type Service struct {
	classifier   *classify.Classifier
	pipeline     *pipeline.Pipeline
	orchestrator *batch.Orchestrator
	cache        cache.Cache
	db           *repository.DB
	records      repository.RecordRepository
	fetcher      *imageproc.Fetcher
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

type options struct {
	engine   ocr.Engine
	cache    cache.Cache
	registry *prometheus.Registry
	tracer   trace.TracerProvider
	batch    []batch.Option
}

type Option func(*options)

// WithEngine overrides the engine selected by configuration.
func WithEngine(e ocr.Engine) Option { return func(o *options) { o.engine = e } }

// WithCache overrides the cache built from configuration.
func WithCache(c cache.Cache) Option { return func(o *options) { o.cache = c } }

// WithRegistry registers the service metrics on reg.
func WithRegistry(reg *prometheus.Registry) Option { return func(o *options) { o.registry = reg } }

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracer = tp }
}

// WithBatchOptions passes extra options to the orchestrator.
func WithBatchOptions(opts ...batch.Option) Option {
	return func(o *options) { o.batch = append(o.batch, opts...) }
}

// New builds a Service from validated configuration.
func New(ctx context.Context, cfg *common.Config, logger *zap.Logger, opts ...Option) (*Service, error) {
	logger = common.LoggerOrNop(logger)
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s := &Service{classifier: classify.New(), logger: logger}
	if o.registry != nil {
		s.metrics = metrics.New(o.registry)
	}

	engine := o.engine
	if engine == nil {
		var err error
		if engine, err = ocr.NewEngine(cfg.Engine, logger); err != nil {
			return nil, err
		}
	}

	lib := fields.NewLibrary()
	extractor := extract.NewExtractor(lib, extract.Config{InvalidFieldPenalty: cfg.Extraction.InvalidFieldPenalty}, logger)
	assembler := assemble.NewAssembler(assemble.Config{
		TypeWeight:      cfg.Extraction.TypeWeight,
		FieldWeight:     cfg.Extraction.FieldWeight,
		AmountTolerance: cfg.Extraction.AmountTolerance,
	}, logger)

	pipeOpts := []pipeline.Option{pipeline.WithMetrics(s.metrics)}
	if o.tracer != nil {
		pipeOpts = append(pipeOpts, pipeline.WithTracerProvider(o.tracer))
	}
	s.pipeline = pipeline.New(engine, s.classifier, extractor, assembler, pipeline.Config{
		Limits:     imageproc.Limits{MaxBytes: cfg.Image.MaxBytes, MinBytes: cfg.Image.MinBytes},
		Preprocess: cfg.Image.Preprocess,
		Options: imageproc.Options{
			MaxSide:   cfg.Image.MaxSide,
			Grayscale: true,
			Contrast:  cfg.Image.Contrast,
			Sharpen:   cfg.Image.Sharpen,
		},
	}, logger, pipeOpts...)

	s.cache = o.cache
	if s.cache == nil {
		var err error
		if s.cache, err = cache.New(cfg.Cache, logger); err != nil {
			return nil, err
		}
	}

	s.fetcher = imageproc.NewFetcher(cfg.Image.FetchTimeout, cfg.Image.MaxBytes, logger,
		imageproc.WithInsecure(cfg.Image.AllowInsecure))
	batchOpts := []batch.Option{
		batch.WithMetrics(s.metrics),
		batch.WithFetcher(s.fetcher),
	}
	if s.cache != nil {
		batchOpts = append(batchOpts, batch.WithCache(s.cache))
	}

	if d := strings.TrimSpace(cfg.Store.Driver); d != "" && d != "none" {
		db, err := repository.Open(ctx, cfg.Store, logger)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.db = db
		s.records = repository.NewRecordRepository(db, logger)
		if err := s.records.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		if cfg.Batch.Archive {
			batchOpts = append(batchOpts, batch.WithArchiver(s.records))
		}
	}
	batchOpts = append(batchOpts, o.batch...)

	s.orchestrator = batch.New(s.pipeline, batch.ConfigFrom(cfg.Batch), logger, batchOpts...)

	logger.Info("core.service.ready",
		zap.String("engine", engine.Name()),
		zap.Bool("cache", s.cache != nil),
		zap.Bool("store", s.records != nil),
	)
	return s, nil
}

// Classify ranks invoice types for already recognized regions.
func (s *Service) Classify(regions []entity.TextRegion) []entity.InvoiceTypeCandidate {
	return s.classifier.ClassifyRegions(regions)
}

func (s *Service) ClassifyText(text string) []entity.InvoiceTypeCandidate {
	return s.classifier.Classify(text)
}

// Recognize runs one image through the pipeline, answering from the cache
// when the same bytes were recognized before.
func (s *Service) Recognize(ctx context.Context, data []byte) (*entity.InvoiceRecord, error) {
	return s.orchestrator.Recognize(ctx, data)
}

// RecognizeURL downloads an image and recognizes it.
func (s *Service) RecognizeURL(ctx context.Context, url string) (*entity.InvoiceRecord, error) {
	data, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return s.Recognize(ctx, data)
}

func (s *Service) RecognizeBatch(ctx context.Context, req batch.Request) (*entity.BatchResult, error) {
	return s.orchestrator.Run(ctx, req)
}

// SupportedTypes is the invoice type code table.
func (s *Service) SupportedTypes() []constants.InvoiceType {
	return constants.InvoiceTypes()
}

func (s *Service) BatchStatus(id string) (entity.BatchProgress, error) {
	return s.orchestrator.Status(id)
}

// CancelBatch stops a running batch. It reports false when the batch had
// already finished.
func (s *Service) CancelBatch(id string) (bool, error) {
	return s.orchestrator.Cancel(id)
}

// Records is the archive, nil when no store is configured.
func (s *Service) Records() repository.RecordRepository { return s.records }

func (s *Service) Metrics() *metrics.Metrics { return s.metrics }

func (s *Service) EngineName() string { return s.pipeline.EngineName() }

// Ping checks the store, when one is configured.
func (s *Service) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.Ping(ctx, 0)
}

func (s *Service) Close() error {
	var errs []error
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}
