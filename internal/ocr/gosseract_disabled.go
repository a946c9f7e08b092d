//go:build !gosseract

package ocr

import (
	"go.uber.org/zap"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
)

func newGosseractEngine(common.EngineConfig, *zap.Logger) (Engine, error) {
	return nil, common.NewAppError(common.CodeConfigError,
		"engine kind gosseract needs a build with -tags gosseract", common.ErrInvalidInput)
}
