package ingest

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
)

// ScanOptions controls a directory walk.
type ScanOptions struct {
	SkipHidden  bool
	AllowedExts map[string]struct{} // nil -> constants.AllowedExtensions
	MaxFiles    int                 // 0 = unlimited
}

// ScanDirectory walks root and returns the accepted image files sorted by id.
// Unreadable entries are counted and logged, never fatal.
func ScanDirectory(ctx context.Context, root string, opts ScanOptions, logger *zap.Logger) ([]File, DirStats, error) {
	logger = common.LoggerOrNop(logger)
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, common.NewInputError(common.CodeMalformedBatch, "root path is required", nil)
	}

	var files []File
	var stats DirStats
	errLimit := errors.New("file limit reached")

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			stats.Failed++
			logger.Warn("ingest.scan.entry_failed", zap.String("path", path), zap.Error(walkErr))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path != root && opts.SkipHidden && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			stats.Skipped++
			return nil
		}
		if d.IsDir() {
			return nil
		}
		stats.Scanned++
		if !allowed(path, opts.AllowedExts) {
			stats.Skipped++
			return nil
		}
		info, err := d.Info()
		if err != nil {
			stats.Failed++
			logger.Warn("ingest.scan.stat_failed", zap.String("path", path), zap.Error(err))
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		if opts.MaxFiles > 0 && len(files) >= opts.MaxFiles {
			return errLimit
		}
		stats.Matched++
		files = append(files, File{ID: filepath.ToSlash(rel), Path: path, Size: info.Size()})
		return nil
	})
	if err != nil && !errors.Is(err, errLimit) {
		return nil, stats, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	logger.Info("ingest.scan.done",
		zap.String("root", root),
		zap.Uint32("scanned", stats.Scanned),
		zap.Uint32("matched", stats.Matched),
		zap.Uint32("skipped", stats.Skipped),
		zap.Uint32("failed", stats.Failed),
	)
	return files, stats, nil
}
