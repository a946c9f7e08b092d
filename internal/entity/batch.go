package entity

import (
	"time"

	"github.com/joseph-ayodele/invoice-ocr/constants"
)

// ItemError describes why a batch item did not succeed.
type ItemError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BatchItem is the outcome for one input of a batch. Record is set iff
// Status is success; Error is set otherwise.
type BatchItem struct {
	ID       string               `json:"id"`
	Status   constants.ItemStatus `json:"status"`
	Record   *InvoiceRecord       `json:"record,omitempty"`
	Error    *ItemError           `json:"error,omitempty"`
	Duration time.Duration        `json:"duration"`
	CacheHit bool                 `json:"cache_hit"`
	Attempts int                  `json:"attempts"`
}

// BatchStats aggregates a finished batch.
type BatchStats struct {
	Total           int           `json:"total"`
	Succeeded       int           `json:"succeeded"`
	Failed          int           `json:"failed"`
	TimedOut        int           `json:"timed_out"`
	CacheHits       int           `json:"cache_hits"`
	SuccessRate     float64       `json:"success_rate"`
	TotalDuration   time.Duration `json:"total_duration"`
	AvgItemDuration time.Duration `json:"avg_item_duration"`
	MinItemDuration time.Duration `json:"min_item_duration"`
	MaxItemDuration time.Duration `json:"max_item_duration"`
	Throughput      float64       `json:"throughput"` // items per second
}

// BatchResult holds per-item outcomes in input order plus aggregates.
type BatchResult struct {
	BatchID    string               `json:"batch_id"`
	State      constants.BatchState `json:"state"`
	Items      []BatchItem          `json:"items"`
	Stats      BatchStats           `json:"stats"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
}

// BatchProgress is a point-in-time view of a batch for status queries.
type BatchProgress struct {
	BatchID    string               `json:"batch_id"`
	State      constants.BatchState `json:"state"`
	Total      int                  `json:"total"`
	Completed  int                  `json:"completed"`
	Succeeded  int                  `json:"succeeded"`
	Failed     int                  `json:"failed"`
	TimedOut   int                  `json:"timed_out"`
	Progress   float64              `json:"progress"` // completed/total
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at,omitzero"`
}
