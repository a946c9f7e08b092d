package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

type TesseractConfig struct {
	Binary      string // binary name or absolute path; if empty -> "tesseract"
	Lang        string // default "chi_sim+eng"
	TessdataDir string
	PSM         int // e.g., 6 is good for uniform block of text
	OEM         int // 1 = LSTM; leave 0 to use default
	WorkDir     string
}

// TesseractEngine shells out to the tesseract CLI in TSV mode.
type TesseractEngine struct {
	cfg    TesseractConfig
	runner Runner
	logger *zap.Logger
}

type TesseractOption func(*TesseractEngine)

// WithRunner replaces the command runner, mainly for tests.
func WithRunner(r Runner) TesseractOption {
	return func(e *TesseractEngine) {
		if r != nil {
			e.runner = r
		}
	}
}

func NewTesseractEngine(cfg TesseractConfig, logger *zap.Logger, opts ...TesseractOption) *TesseractEngine {
	logger = common.LoggerOrNop(logger)
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "chi_sim+eng"
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	e := &TesseractEngine{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *TesseractEngine) Name() string { return KindTesseract }

func (e *TesseractEngine) Recognize(ctx context.Context, img Image) ([]entity.TextRegion, error) {
	start := time.Now()
	if img.Pixels == nil {
		return nil, common.NewInputError(common.CodeDecodeError, "no pixels to recognize", nil)
	}

	path, cleanup, err := e.writeInput(img)
	if err != nil {
		return nil, common.NewEngineError("stage image for tesseract", err)
	}
	defer cleanup()

	args := []string{path, "stdout", "-l", e.cfg.Lang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", fmt.Sprintf("%d", e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	// TSV output
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Binary, args...)
	if err != nil {
		return nil, engineFailure(ctx, "tesseract", fmt.Errorf("%w: %s", err, clip(strings.TrimSpace(string(errb)), 512)))
	}
	regions, err := ParseTSV(out)
	if err != nil {
		return nil, common.NewEngineError("parse tesseract tsv", err)
	}

	e.logger.Debug("ocr.tesseract.ok",
		zap.String("fingerprint", img.Fingerprint),
		zap.Int("regions", len(regions)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return regions, nil
}

// writeInput stores the image as PNG in the work dir; tesseract reads files.
func (e *TesseractEngine) writeInput(img Image) (string, func(), error) {
	if err := os.MkdirAll(e.cfg.WorkDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("mkdir work dir: %w", err)
	}
	prefix := "ocr-"
	if len(img.Fingerprint) >= 12 {
		prefix += img.Fingerprint[:12] + "-"
	}
	f, err := os.CreateTemp(e.cfg.WorkDir, prefix+"*.png")
	if err != nil {
		return "", nil, fmt.Errorf("create temp: %w", err)
	}
	path := f.Name()
	cleanup := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			e.logger.Warn("remove temp image failed", zap.String("path", path), zap.Error(err))
		}
	}
	if err := imaging.Encode(f, img.Pixels, imaging.PNG); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp: %w", err)
	}
	return path, cleanup, nil
}
