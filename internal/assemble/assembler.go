// Package assemble combines classification and extracted fields into a
// scored invoice record with warnings.
package assemble

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
	"github.com/joseph-ayodele/invoice-ocr/internal/fields"
)

// Config holds the weighting constants.
type Config struct {
	TypeWeight      float64
	FieldWeight     float64
	AmountTolerance float64
}

func DefaultConfig() Config {
	return Config{TypeWeight: 0.3, FieldWeight: 0.7, AmountTolerance: 0.01}
}

type Assembler struct {
	cfg    Config
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*Assembler)

func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAssembler(cfg Config, logger *zap.Logger, opts ...Option) *Assembler {
	a := &Assembler{cfg: cfg, now: time.Now, logger: common.LoggerOrNop(logger)}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Input is everything the assembler needs for one image.
type Input struct {
	Regions     []entity.TextRegion
	Candidates  []entity.InvoiceTypeCandidate
	Fields      map[constants.FieldName]entity.ExtractedField
	Fingerprint string
}

// Assemble builds the record. It fails only when there are no regions.
func (a *Assembler) Assemble(in Input) (*entity.InvoiceRecord, error) {
	if len(in.Regions) == 0 {
		return nil, common.NewInputError(common.CodeMalformedInput, "no text regions to assemble", nil)
	}

	top := entity.InvoiceTypeCandidate{
		Code: constants.UnknownInvoiceType.Code,
		Name: constants.UnknownInvoiceType.Name,
	}
	if len(in.Candidates) > 0 {
		top = in.Candidates[0]
	}

	flds := make(map[constants.FieldName]entity.ExtractedField, len(in.Fields))
	var sum float64
	for k, f := range in.Fields {
		flds[k] = f
		sum += f.Confidence
	}
	var mean float64
	if len(flds) > 0 {
		mean = sum / float64(len(flds))
	}
	overall := a.cfg.TypeWeight*top.Confidence + a.cfg.FieldWeight*mean

	rec := &entity.InvoiceRecord{
		Type:              top,
		Candidates:        in.Candidates,
		Fields:            flds,
		OverallConfidence: overall,
		Warnings:          a.warnings(top.Code, flds),
		Regions:           in.Regions,
		Fingerprint:       in.Fingerprint,
		ProcessedAt:       a.now().UTC(),
	}

	a.logger.Debug("assemble.record.ok",
		zap.String("type_code", top.Code),
		zap.Int("fields", len(flds)),
		zap.Int("warnings", len(rec.Warnings)),
		zap.Float64("overall_confidence", overall),
	)
	return rec, nil
}

func (a *Assembler) warnings(typeCode string, flds map[constants.FieldName]entity.ExtractedField) []entity.Warning {
	var out []entity.Warning
	if it, ok := constants.LookupInvoiceType(typeCode); ok {
		for _, name := range it.Required {
			if _, found := flds[name]; !found {
				out = append(out, entity.Warning{
					Code:    entity.WarningMissingField,
					Fields:  []constants.FieldName{name},
					Message: fmt.Sprintf("required field %s (%s) not found", name, constants.FieldLabels[name]),
				})
			}
		}
	}
	for _, v := range fields.Reconcile(flds, a.cfg.AmountTolerance) {
		out = append(out, entity.Warning{
			Code:    entity.WarningAmountMismatch,
			Fields:  v.Fields,
			Message: v.Message,
		})
	}
	return out
}
