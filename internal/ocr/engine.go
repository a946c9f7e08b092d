// Package ocr holds the recognition engines that turn a decoded image into
// text regions. Engines are chosen from configuration at construction.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

// Image is a decoded picture handed to an engine.
type Image struct {
	Pixels      image.Image
	Fingerprint string // sha256 hex of the original bytes
}

// Engine detects and recognizes text. Implementations must honor ctx and
// report failures as engine, timeout or input errors from package common.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img Image) ([]entity.TextRegion, error)
}

const (
	KindTesseract = "tesseract"
	KindHTTP      = "http"
	KindGosseract = "gosseract"
	KindFixture   = "fixture"
)

// NewEngine builds the engine named by cfg.Kind.
func NewEngine(cfg common.EngineConfig, logger *zap.Logger) (Engine, error) {
	logger = common.LoggerOrNop(logger)
	switch cfg.Kind {
	case KindTesseract, "":
		return NewTesseractEngine(TesseractConfig{
			Binary:      cfg.Tesseract,
			Lang:        cfg.Lang,
			TessdataDir: cfg.TessdataDir,
			PSM:         cfg.PSM,
			OEM:         cfg.OEM,
			WorkDir:     cfg.WorkDir,
		}, logger), nil
	case KindHTTP:
		return NewHTTPEngine(HTTPConfig{URL: cfg.URL, APIKey: cfg.APIKey, Timeout: cfg.Timeout}, logger), nil
	case KindGosseract:
		return newGosseractEngine(cfg, logger)
	case KindFixture:
		e, err := LoadFixtureEngine(cfg.FixturePath)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
	return nil, common.NewAppError(common.CodeConfigError, fmt.Sprintf("unknown engine kind %q", cfg.Kind), common.ErrInvalidInput)
}

// engineFailure maps a backend error into the shared taxonomy. Deadline
// expiry becomes a timeout and caller cancellation stays a context error.
func engineFailure(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return common.NewTimeoutError(op+" exceeded the item deadline", ctx.Err())
	case errors.Is(ctx.Err(), context.Canceled):
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
	if _, ok := common.AsAppError(err); ok {
		return err
	}
	return common.NewEngineError(op, err)
}
