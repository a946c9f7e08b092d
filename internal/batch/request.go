package batch

import (
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
)

// Item is one image to recognize: inline bytes or a URL to fetch.
type Item struct {
	ID   string
	Data []byte
	URL  string
}

// Request describes a batch. Zero values fall back to the configuration.
type Request struct {
	BatchID         string
	Items           []Item
	ParallelCount   int
	ItemTimeout     time.Duration
	OverallDeadline time.Duration
}

// MaxItemIDLength bounds item ids; they are stored and exported verbatim.
const MaxItemIDLength = 256

// validate rejects structurally broken batches before anything runs.
func (o *Orchestrator) validate(req Request) error {
	v := common.NewValidator()
	v.Check(len(req.Items) > 0, "items", "must not be empty")
	v.Check(len(req.Items) <= o.cfg.MaxBatchSize, "items",
		fmt.Sprintf("has %d entries, limit is %d", len(req.Items), o.cfg.MaxBatchSize))
	v.Check(req.ItemTimeout >= 0, "item_timeout", "must not be negative")
	v.Check(req.OverallDeadline >= 0, "overall_deadline", "must not be negative")

	seen := make(map[string]int, len(req.Items))
	for i, it := range req.Items {
		field := fmt.Sprintf("items[%d]", i)
		v.Field(field+".id", it.ID, common.Required, common.MaxLength(MaxItemIDLength))
		if strings.TrimSpace(it.ID) == "" {
			continue
		}
		if j, dup := seen[it.ID]; dup {
			v.Check(false, field+".id", fmt.Sprintf("duplicates items[%d] (%q)", j, it.ID))
		}
		seen[it.ID] = i
		v.Check(len(it.Data) > 0 || it.URL != "", field, "needs image data or an image url")
	}
	return v.Err(common.CodeMalformedBatch)
}

// parallelism clamps the requested worker count into [1, MaxParallel];
// MaxParallel itself never exceeds constants.MaxParallelCount.
func (o *Orchestrator) parallelism(requested int) int {
	n := requested
	if n <= 0 {
		n = o.cfg.DefaultParallel
	}
	return max(constants.MinParallelCount, min(n, o.cfg.MaxParallel))
}
