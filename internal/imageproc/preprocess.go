package imageproc

import (
	"image"

	"github.com/disintegration/imaging"
)

// Options controls Preprocess. Zero values skip the matching step.
type Options struct {
	MaxSide   int
	Grayscale bool
	Contrast  float64 // percentage, -100..100
	Sharpen   float64 // gaussian sigma
}

// Preprocess downscales img so its longer side fits MaxSide, keeping the
// aspect ratio, then applies grayscale, contrast and sharpening. Images are
// never upscaled.
func Preprocess(img image.Image, opt Options) image.Image {
	b := img.Bounds()
	if opt.MaxSide > 0 && (b.Dx() > opt.MaxSide || b.Dy() > opt.MaxSide) {
		img = imaging.Fit(img, opt.MaxSide, opt.MaxSide, imaging.Lanczos)
	}
	if opt.Grayscale {
		img = imaging.Grayscale(img)
	}
	if opt.Contrast != 0 {
		img = imaging.AdjustContrast(img, opt.Contrast)
	}
	if opt.Sharpen > 0 {
		img = imaging.Sharpen(img, opt.Sharpen)
	}
	return img
}
