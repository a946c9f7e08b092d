package extract

import (
	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

// FieldExtractor is the stage after classification: regions + type -> fields.
type FieldExtractor interface {
	ExtractFields(regions []entity.TextRegion, typeCode string) map[constants.FieldName]entity.ExtractedField
}

// Config holds extraction tunables.
type Config struct {
	// InvalidFieldPenalty scales down the confidence of a located value that
	// fails validation: conf * (1 - penalty).
	InvalidFieldPenalty float64
}

func DefaultConfig() Config {
	return Config{InvalidFieldPenalty: 0.5}
}
