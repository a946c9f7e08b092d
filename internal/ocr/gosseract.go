//go:build gosseract

package ocr

import (
	"bytes"
	"context"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

// GosseractEngine runs tesseract in-process through cgo.
type GosseractEngine struct {
	langs       []string
	tessdataDir string
	psm         int
	logger      *zap.Logger
}

func newGosseractEngine(cfg common.EngineConfig, logger *zap.Logger) (Engine, error) {
	lang := cfg.Lang
	if lang == "" {
		lang = "chi_sim+eng"
	}
	return &GosseractEngine{
		langs:       strings.Split(lang, "+"),
		tessdataDir: cfg.TessdataDir,
		psm:         cfg.PSM,
		logger:      logger,
	}, nil
}

func (e *GosseractEngine) Name() string { return KindGosseract }

type gosseractResult struct {
	regions []entity.TextRegion
	err     error
}

// Recognize runs the blocking client on its own goroutine so ctx can
// abandon it; the client is closed when the call returns either way.
func (e *GosseractEngine) Recognize(ctx context.Context, img Image) ([]entity.TextRegion, error) {
	if img.Pixels == nil {
		return nil, common.NewInputError(common.CodeDecodeError, "no pixels to recognize", nil)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img.Pixels, imaging.PNG); err != nil {
		return nil, common.NewEngineError("encode png", err)
	}

	done := make(chan gosseractResult, 1)
	go func() {
		regions, err := e.recognize(buf.Bytes())
		done <- gosseractResult{regions: regions, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, engineFailure(ctx, "gosseract", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return nil, engineFailure(ctx, "gosseract", res.err)
		}
		return res.regions, nil
	}
}

func (e *GosseractEngine) recognize(png []byte) ([]entity.TextRegion, error) {
	c := gosseract.NewClient()
	defer c.Close()

	if err := c.SetLanguage(e.langs...); err != nil {
		return nil, err
	}
	if e.tessdataDir != "" {
		if err := c.SetTessdataPrefix(e.tessdataDir); err != nil {
			return nil, err
		}
	}
	if e.psm > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(e.psm)); err != nil {
			return nil, err
		}
	}
	if err := c.SetImageFromBytes(png); err != nil {
		return nil, err
	}
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, err
	}

	out := make([]entity.TextRegion, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		out = append(out, entity.TextRegion{
			Text: text,
			BoundingBox: entity.BoxFromRect(float64(b.Box.Min.X), float64(b.Box.Min.Y),
				float64(b.Box.Dx()), float64(b.Box.Dy())),
			Confidence: b.Confidence / 100.0,
		})
	}
	return out, nil
}
