package extract

import (
	"go.uber.org/zap"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
	"github.com/joseph-ayodele/invoice-ocr/internal/fields"
)

// Extractor locates the fields that apply to an invoice type using the
// field pattern library.
type Extractor struct {
	lib     *fields.Library
	penalty float64
	logger  *zap.Logger
}

var _ FieldExtractor = (*Extractor)(nil)

func NewExtractor(lib *fields.Library, cfg Config, logger *zap.Logger) *Extractor {
	if lib == nil {
		lib = fields.NewLibrary()
	}
	return &Extractor{lib: lib, penalty: clamp01(cfg.InvalidFieldPenalty), logger: common.LoggerOrNop(logger)}
}

// ExtractFields returns every applicable field that was located; fields
// with no match are omitted. Unknown type codes fall back to the unknown
// type's field set.
func (e *Extractor) ExtractFields(regions []entity.TextRegion, typeCode string) map[constants.FieldName]entity.ExtractedField {
	it, ok := constants.LookupInvoiceType(typeCode)
	if !ok {
		it = constants.UnknownInvoiceType
	}

	order := entity.ReadingOrder(regions)
	sources := make([]fields.Source, 0, len(order))
	for _, i := range order {
		sources = append(sources, fields.Source{
			Index:      i,
			Text:       fields.NormalizeText(regions[i].Text),
			Confidence: clamp01(regions[i].Confidence),
		})
	}

	out := make(map[constants.FieldName]entity.ExtractedField, len(it.Fields))
	for _, name := range it.Fields {
		c, found := e.lib.Best(name, sources)
		if !found {
			continue
		}
		conf := c.Confidence
		if !c.Valid {
			conf *= 1 - e.penalty
		}
		out[name] = entity.ExtractedField{
			Name:            name,
			RawValue:        c.Raw,
			NormalizedValue: c.Normalized,
			Confidence:      clamp01(conf),
			SourceRegions:   c.SourceRegions,
			Valid:           c.Valid,
		}
	}

	e.logger.Debug("extract.fields.ok",
		zap.String("type_code", it.Code),
		zap.Int("regions", len(regions)),
		zap.Int("located", len(out)),
	)
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
