package batch

import (
	"context"
	"sync"
	"time"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

// tracker owns the per-item outcomes of one batch. An item is finalized at
// most once; later outcomes for it are dropped.
type tracker struct {
	id     string
	cancel context.CancelFunc

	mu        sync.Mutex
	items     []entity.BatchItem
	final     []bool
	startedAt []time.Time
	completed int
	cancelled bool
	state     constants.BatchState
	started   time.Time
	finished  time.Time
}

func newTracker(id string, items []Item, now time.Time, cancel context.CancelFunc) *tracker {
	t := &tracker{
		id:        id,
		cancel:    cancel,
		items:     make([]entity.BatchItem, len(items)),
		final:     make([]bool, len(items)),
		startedAt: make([]time.Time, len(items)),
		state:     constants.BatchStateRunning,
		started:   now,
	}
	for i, it := range items {
		t.items[i].ID = it.ID
	}
	return t
}

func (t *tracker) begin(i int, now time.Time) {
	t.mu.Lock()
	t.startedAt[i] = now
	t.mu.Unlock()
}

// finalize records the outcome of item i and reports whether it was the
// first one.
func (t *tracker) finalize(i int, item entity.BatchItem) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.final[i] {
		return false
	}
	t.items[i] = item
	t.final[i] = true
	t.completed++
	return true
}

// finalizeRemaining closes every open item with status and code.
func (t *tracker) finalizeRemaining(now time.Time, status constants.ItemStatus, code, msg string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for i := range t.items {
		if t.final[i] {
			continue
		}
		var d time.Duration
		if !t.startedAt[i].IsZero() {
			d = now.Sub(t.startedAt[i])
		}
		t.items[i] = entity.BatchItem{
			ID:       t.items[i].ID,
			Status:   status,
			Error:    &entity.ItemError{Code: code, Message: msg},
			Duration: d,
		}
		t.final[i] = true
		t.completed++
		n++
	}
	return n
}

func (t *tracker) markCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != constants.BatchStateRunning {
		return false
	}
	t.cancelled = true
	return true
}

func (t *tracker) isCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// finish freezes the batch and returns its result.
func (t *tracker) finish(state constants.BatchState, now time.Time) *entity.BatchResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = state
	t.finished = now
	items := make([]entity.BatchItem, len(t.items))
	copy(items, t.items)
	return &entity.BatchResult{
		BatchID:    t.id,
		State:      state,
		Items:      items,
		Stats:      computeStats(items, now.Sub(t.started)),
		StartedAt:  t.started,
		FinishedAt: now,
	}
}

func (t *tracker) progress() entity.BatchProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := entity.BatchProgress{
		BatchID:    t.id,
		State:      t.state,
		Total:      len(t.items),
		Completed:  t.completed,
		StartedAt:  t.started,
		FinishedAt: t.finished,
	}
	for i, it := range t.items {
		if !t.final[i] {
			continue
		}
		switch it.Status {
		case constants.ItemStatusSuccess:
			p.Succeeded++
		case constants.ItemStatusTimeout:
			p.TimedOut++
		default:
			p.Failed++
		}
	}
	if p.Total > 0 {
		p.Progress = float64(p.Completed) / float64(p.Total)
	}
	return p
}

func (t *tracker) expired(now time.Time, retention time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state != constants.BatchStateRunning && now.Sub(t.finished) > retention
}

func computeStats(items []entity.BatchItem, total time.Duration) entity.BatchStats {
	s := entity.BatchStats{Total: len(items), TotalDuration: total}
	var sum time.Duration
	for i, it := range items {
		switch it.Status {
		case constants.ItemStatusSuccess:
			s.Succeeded++
		case constants.ItemStatusTimeout:
			s.TimedOut++
		default:
			s.Failed++
		}
		if it.CacheHit {
			s.CacheHits++
		}
		sum += it.Duration
		if i == 0 || it.Duration < s.MinItemDuration {
			s.MinItemDuration = it.Duration
		}
		if it.Duration > s.MaxItemDuration {
			s.MaxItemDuration = it.Duration
		}
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Succeeded) / float64(s.Total)
		s.AvgItemDuration = sum / time.Duration(s.Total)
	}
	if total > 0 {
		s.Throughput = float64(s.Total) / total.Seconds()
	}
	return s
}
