// Package ingest turns files on disk into batch items.
package ingest

import (
	"os"

	"github.com/rotisserie/eris"

	"github.com/joseph-ayodele/invoice-ocr/internal/batch"
)

// File is one discovered image. ID is the path relative to the scanned root,
// slash separated.
type File struct {
	ID   string
	Path string
	Size int64
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Skipped uint32
	Failed  uint32
}

// Items reads every file into a batch item, preserving order.
func Items(files []File) ([]batch.Item, error) {
	out := make([]batch.Item, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, eris.Wrapf(err, "read %s", f.Path)
		}
		out = append(out, batch.Item{ID: f.ID, Data: data})
	}
	return out, nil
}
