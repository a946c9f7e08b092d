package export

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
	"github.com/joseph-ayodele/invoice-ocr/internal/repository"
)

// BatchXLSX returns a workbook with one row per batch item, in input order,
// plus a summary sheet of the batch statistics.
func BatchXLSX(res *entity.BatchResult) ([]byte, error) {
	if res == nil {
		return nil, common.NewInputError(common.CodeMalformedInput, "nil batch result", nil)
	}
	w, err := newWorkbook()
	if err != nil {
		return nil, err
	}
	rows := make([]row, 0, len(res.Items))
	for _, it := range res.Items {
		r := row{id: it.ID, status: string(it.Status), record: it.Record}
		if it.Error != nil {
			r.errCode = it.Error.Code
		}
		rows = append(rows, r)
	}
	if err := w.writeItems(rows); err != nil {
		return nil, err
	}
	if err := w.writeSummary(res); err != nil {
		return nil, err
	}
	return w.bytes()
}

func (w *workbook) writeSummary(res *entity.BatchResult) error {
	if _, err := w.f.NewSheet(SummarySheet); err != nil {
		return err
	}
	s := res.Stats
	lines := [][]any{
		{"Batch ID", res.BatchID},
		{"State", string(res.State)},
		{"Started", res.StartedAt.UTC().Format(time.RFC3339)},
		{"Finished", res.FinishedAt.UTC().Format(time.RFC3339)},
		{"Total", s.Total},
		{"Succeeded", s.Succeeded},
		{"Failed", s.Failed},
		{"Timed Out", s.TimedOut},
		{"Cache Hits", s.CacheHits},
		{"Success Rate", round(s.SuccessRate)},
		{"Total Duration (ms)", s.TotalDuration.Milliseconds()},
		{"Avg Item Duration (ms)", s.AvgItemDuration.Milliseconds()},
		{"Throughput (items/s)", round(s.Throughput)},
	}
	for i, l := range lines {
		if err := w.writeRow(SummarySheet, i+1, l); err != nil {
			return err
		}
	}
	_ = w.f.SetColWidth(SummarySheet, "A", "A", 24)
	_ = w.f.SetColWidth(SummarySheet, "B", "B", 40)
	return nil
}

// Service exports archived records.
type Service struct {
	records repository.RecordRepository
	logger  *zap.Logger
}

func NewService(records repository.RecordRepository, logger *zap.Logger) *Service {
	return &Service{records: records, logger: common.LoggerOrNop(logger)}
}

// RecordsXLSX exports the archived records of one batch, or the most recent
// limit records when batchID is empty.
func (s *Service) RecordsXLSX(ctx context.Context, batchID string, limit int) ([]byte, error) {
	start := time.Now()

	var (
		recs []*repository.StoredRecord
		err  error
	)
	if batchID != "" {
		recs, err = s.records.ListByBatch(ctx, batchID)
	} else {
		recs, err = s.records.List(ctx, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	w, err := newWorkbook()
	if err != nil {
		return nil, err
	}
	rows := make([]row, 0, len(recs))
	for _, r := range recs {
		id := r.ItemID
		if id == "" {
			id = r.Fingerprint
		}
		rows = append(rows, row{id: id, status: "archived", record: r.Record})
	}
	if err := w.writeItems(rows); err != nil {
		return nil, err
	}
	out, err := w.bytes()
	if err != nil {
		return nil, err
	}

	s.logger.Info("export.records.ok",
		zap.String("batch_id", batchID),
		zap.Int("rows", len(rows)),
		zap.Int("bytes", len(out)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return out, nil
}
