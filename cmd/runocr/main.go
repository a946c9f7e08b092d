package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/imageproc"
	"github.com/joseph-ayodele/invoice-ocr/internal/ocr"
)

// runocr prints the raw text regions the configured engine finds in one image.
func main() {
	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	if len(os.Args) != 2 {
		logger.Error("usage: runocr <image-file>")
		os.Exit(2)
	}
	path := os.Args[1]

	cfg, err := common.LoadConfig(os.Getenv("INVOICE_OCR_CONFIG"))
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	engine, err := ocr.NewEngine(cfg.Engine, logger)
	if err != nil {
		logger.Fatal("build engine", zap.Error(err))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Fatal("read image", zap.String("path", path), zap.Error(err))
	}
	dec, err := imageproc.Decode(data, imageproc.Limits{MaxBytes: cfg.Image.MaxBytes})
	if err != nil {
		logger.Fatal("decode image", zap.String("code", common.CodeOf(err)), zap.Error(err))
	}
	img := dec.Image
	if cfg.Image.Preprocess {
		img = imageproc.Preprocess(img, imageproc.Options{
			MaxSide:   cfg.Image.MaxSide,
			Grayscale: true,
			Contrast:  cfg.Image.Contrast,
			Sharpen:   cfg.Image.Sharpen,
		})
	}

	start := time.Now()
	regions, err := engine.Recognize(ctx, ocr.Image{Pixels: img, Fingerprint: dec.Fingerprint})
	dur := time.Since(start)
	if err != nil {
		logger.Fatal("text detection failed",
			zap.String("engine", engine.Name()),
			zap.String("code", common.CodeOf(err)),
			zap.Int64("duration_ms", dur.Milliseconds()),
			zap.Error(err),
		)
	}

	logger.Info("text detection OK",
		zap.String("engine", engine.Name()),
		zap.String("format", dec.Format),
		zap.Int("regions", len(regions)),
		zap.Int64("duration_ms", dur.Milliseconds()),
	)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(regions)
}
