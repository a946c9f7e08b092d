// Package pipeline turns one image into an assembled invoice record:
// decode, detect text, classify, extract fields, assemble.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/assemble"
	"github.com/joseph-ayodele/invoice-ocr/internal/classify"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
	"github.com/joseph-ayodele/invoice-ocr/internal/extract"
	"github.com/joseph-ayodele/invoice-ocr/internal/imageproc"
	"github.com/joseph-ayodele/invoice-ocr/internal/metrics"
	"github.com/joseph-ayodele/invoice-ocr/internal/ocr"
)

const tracerName = "github.com/joseph-ayodele/invoice-ocr/internal/pipeline"

// TransitionHook observes state changes of a single run.
type TransitionHook func(ctx context.Context, from, to constants.PipelineState)

// Config holds the image handling knobs.
type Config struct {
	Limits     imageproc.Limits
	Preprocess bool
	Options    imageproc.Options
}

// Pipeline is safe for concurrent use; each Run has its own state.
type Pipeline struct {
	engine     ocr.Engine
	classifier *classify.Classifier
	extractor  extract.FieldExtractor
	assembler  *assemble.Assembler
	cfg        Config
	tracer     trace.Tracer
	hook       TransitionHook
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

type Option func(*Pipeline)

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Pipeline) {
		if tp != nil {
			p.tracer = tp.Tracer(tracerName)
		}
	}
}

func WithTransitionHook(h TransitionHook) Option {
	return func(p *Pipeline) { p.hook = h }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func New(
	engine ocr.Engine,
	classifier *classify.Classifier,
	extractor extract.FieldExtractor,
	assembler *assemble.Assembler,
	cfg Config,
	logger *zap.Logger,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		engine:     engine,
		classifier: classifier,
		extractor:  extractor,
		assembler:  assembler,
		cfg:        cfg,
		tracer:     otel.GetTracerProvider().Tracer(tracerName),
		logger:     common.LoggerOrNop(logger),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// EngineName reports which backend recognizes text.
func (p *Pipeline) EngineName() string { return p.engine.Name() }

// Run decodes data and processes it. The engine is called exactly once.
func (p *Pipeline) Run(ctx context.Context, data []byte) (*entity.InvoiceRecord, error) {
	img, err := p.Decode(ctx, data)
	if err != nil {
		p.transition(ctx, constants.StatePending, constants.StateFailed)
		return nil, err
	}
	return p.Process(ctx, img)
}

// Decode validates, decodes and optionally preprocesses image bytes.
func (p *Pipeline) Decode(ctx context.Context, data []byte) (ocr.Image, error) {
	_, span := p.tracer.Start(ctx, "pipeline.decode")
	defer span.End()

	d, err := imageproc.Decode(data, p.cfg.Limits)
	if err != nil {
		fail(span, err)
		return ocr.Image{}, err
	}
	img := d.Image
	if p.cfg.Preprocess {
		img = imageproc.Preprocess(img, p.cfg.Options)
	}
	span.SetAttributes(
		attribute.String("image.format", d.Format),
		attribute.String("image.fingerprint", d.Fingerprint),
		attribute.Int("image.bytes", d.Bytes),
	)
	return ocr.Image{Pixels: img, Fingerprint: d.Fingerprint}, nil
}

// Process runs detection through assembly on an already decoded image.
func (p *Pipeline) Process(ctx context.Context, img ocr.Image) (*entity.InvoiceRecord, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "pipeline.process",
		trace.WithAttributes(attribute.String("image.fingerprint", img.Fingerprint)))
	defer span.End()

	log := p.logger.With(common.ContextFields(ctx)...)
	run := &run{p: p, ctx: ctx, state: constants.StatePending}

	run.to(constants.StateDetecting)
	regions, err := p.detect(ctx, img)
	if err != nil {
		run.fail(err)
		fail(span, err)
		log.Warn("pipeline.detect.failed", zap.String("code", common.CodeOf(err)), zap.Error(err))
		return nil, err
	}

	run.to(constants.StateClassifying)
	_, cspan := p.tracer.Start(ctx, "pipeline.classify")
	candidates := p.classifier.ClassifyRegions(regions)
	top := candidates[0]
	cspan.SetAttributes(attribute.String("invoice.type", top.Code), attribute.Float64("invoice.type_confidence", top.Confidence))
	cspan.End()

	run.to(constants.StateExtracting)
	_, espan := p.tracer.Start(ctx, "pipeline.extract")
	fields := p.extractor.ExtractFields(regions, top.Code)
	espan.SetAttributes(attribute.Int("invoice.fields", len(fields)))
	espan.End()

	_, aspan := p.tracer.Start(ctx, "pipeline.assemble")
	rec, err := p.assembler.Assemble(assemble.Input{
		Regions:     regions,
		Candidates:  candidates,
		Fields:      fields,
		Fingerprint: img.Fingerprint,
	})
	if err != nil {
		fail(aspan, err)
		aspan.End()
		run.fail(err)
		fail(span, err)
		return nil, err
	}
	aspan.SetAttributes(attribute.Float64("invoice.confidence", rec.OverallConfidence), attribute.Int("invoice.warnings", len(rec.Warnings)))
	aspan.End()
	run.to(constants.StateAssembled)

	log.Info("pipeline.run.ok",
		zap.String("fingerprint", img.Fingerprint),
		zap.String("type_code", rec.Type.Code),
		zap.Int("regions", len(regions)),
		zap.Int("fields", len(rec.Fields)),
		zap.Float64("confidence", rec.OverallConfidence),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return rec, nil
}

// detect calls the engine once. Zero regions is its own failure, never an
// unknown-type record.
func (p *Pipeline) detect(ctx context.Context, img ocr.Image) ([]entity.TextRegion, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.detect", trace.WithAttributes(attribute.String("engine", p.engine.Name())))
	defer span.End()

	start := time.Now()
	regions, err := p.engine.Recognize(ctx, img)
	if err == nil && ctx.Err() != nil {
		// late answer after the deadline
		err = ctx.Err()
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && common.CodeOf(err) != common.CodeTimeout {
			err = common.NewTimeoutError("engine exceeded the item deadline", err)
		}
		p.metrics.ObserveEngine(p.engine.Name(), common.CodeOf(err), time.Since(start))
		fail(span, err)
		return nil, err
	}
	p.metrics.ObserveEngine(p.engine.Name(), "ok", time.Since(start))
	span.SetAttributes(attribute.Int("regions", len(regions)))

	if len(regions) == 0 {
		err := common.NewAppError(common.CodeNoTextDetected, "engine found no text", nil)
		fail(span, err)
		return nil, err
	}
	return regions, nil
}

type run struct {
	p     *Pipeline
	ctx   context.Context
	state constants.PipelineState
}

func (r *run) to(next constants.PipelineState) {
	if r.state.Terminal() {
		return
	}
	r.p.transition(r.ctx, r.state, next)
	r.state = next
}

func (r *run) fail(err error) {
	if common.CodeOf(err) == common.CodeTimeout {
		r.to(constants.StateTimeout)
		return
	}
	r.to(constants.StateFailed)
}

func (p *Pipeline) transition(ctx context.Context, from, to constants.PipelineState) {
	trace.SpanFromContext(ctx).AddEvent("state", trace.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	))
	if p.hook != nil {
		p.hook(ctx, from, to)
	}
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, common.CodeOf(err))
}
