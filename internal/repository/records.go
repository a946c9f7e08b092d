// Package repository archives assembled invoice records in SQLite or
// PostgreSQL.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

const (
	recordsTable = "invoice_records"
	// fixed width so archived_at sorts as text
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

var recordColumns = []string{"id", "fingerprint", "batch_id", "item_id", "type_code", "type_name", "confidence", "warnings", "record", "archived_at"}

// StoredRecord is an archived record with its provenance.
type StoredRecord struct {
	ID          string
	Fingerprint string
	BatchID     string
	ItemID      string
	Record      *entity.InvoiceRecord
	ArchivedAt  time.Time
}

type RecordRepository interface {
	Migrate(ctx context.Context) error
	Save(ctx context.Context, batchID, itemID string, rec *entity.InvoiceRecord) error
	GetByFingerprint(ctx context.Context, fingerprint string) (*StoredRecord, error)
	ListByBatch(ctx context.Context, batchID string) ([]*StoredRecord, error)
	List(ctx context.Context, limit int) ([]*StoredRecord, error)
}

type recordRepository struct {
	db     *DB
	now    func() time.Time
	logger *zap.Logger
}

func NewRecordRepository(db *DB, logger *zap.Logger) RecordRepository {
	return &recordRepository{db: db, now: time.Now, logger: common.LoggerOrNop(logger)}
}

func (r *recordRepository) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.dialect)
}

// Migrate creates the records table and its indexes when missing.
func (r *recordRepository) Migrate(ctx context.Context) error {
	floatType := "REAL"
	if r.db.dialect == dialect.Postgres {
		floatType = "DOUBLE PRECISION"
	}
	b := r.builder()
	stmts := []entsql.Querier{
		b.CreateTable(recordsTable).IfNotExists().
			Columns(
				entsql.Column("id").Type("TEXT").Attr("NOT NULL"),
				entsql.Column("fingerprint").Type("TEXT").Attr("NOT NULL"),
				entsql.Column("batch_id").Type("TEXT").Attr("NOT NULL"),
				entsql.Column("item_id").Type("TEXT").Attr("NOT NULL"),
				entsql.Column("type_code").Type("TEXT").Attr("NOT NULL"),
				entsql.Column("type_name").Type("TEXT").Attr("NOT NULL"),
				entsql.Column("confidence").Type(floatType).Attr("NOT NULL"),
				entsql.Column("warnings").Type("INTEGER").Attr("NOT NULL"),
				entsql.Column("record").Type("TEXT").Attr("NOT NULL"),
				entsql.Column("archived_at").Type("TEXT").Attr("NOT NULL"),
			).
			PrimaryKey("id"),
		b.CreateIndex("invoice_records_fingerprint_key").IfNotExists().Unique().
			Table(recordsTable).Columns("fingerprint"),
		b.CreateIndex("invoice_records_batch_id_idx").IfNotExists().
			Table(recordsTable).Columns("batch_id"),
	}
	for _, st := range stmts {
		q, args := st.Query()
		if err := r.db.drv.Exec(ctx, q, args, nil); err != nil {
			r.logger.Error("failed to migrate records table", zap.String("query", q), zap.Error(err))
			return fmt.Errorf("%w: migrate: %v", common.ErrDatabase, err)
		}
	}
	return nil
}

// Save archives rec. The first record for a fingerprint wins; later saves of
// the same image are ignored.
func (r *recordRepository) Save(ctx context.Context, batchID, itemID string, rec *entity.InvoiceRecord) error {
	if rec == nil || rec.Fingerprint == "" {
		return common.NewInputError(common.CodeMalformedInput, "record without fingerprint cannot be archived", nil)
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	q, args := r.builder().Insert(recordsTable).
		Columns(recordColumns...).
		Values(uuid.NewString(), rec.Fingerprint, batchID, itemID, rec.Type.Code, rec.Type.Name,
			rec.OverallConfidence, len(rec.Warnings), string(raw), r.now().UTC().Format(timeLayout)).
		OnConflict(entsql.ConflictColumns("fingerprint"), entsql.DoNothing()).
		Query()

	var res sql.Result
	if err := r.db.drv.Exec(ctx, q, args, &res); err != nil {
		r.logger.Error("failed to save record", zap.String("fingerprint", rec.Fingerprint), zap.Error(err))
		return fmt.Errorf("%w: save record: %v", common.ErrDatabase, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		r.logger.Debug("record already archived", zap.String("fingerprint", rec.Fingerprint))
	}
	return nil
}

func (r *recordRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*StoredRecord, error) {
	sel := r.builder().Select(recordColumns...).From(entsql.Table(recordsTable))
	sel.Where(entsql.EQ("fingerprint", fingerprint))
	out, err := r.query(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("record %s: %w", fingerprint, common.ErrNotFound)
	}
	return out[0], nil
}

func (r *recordRepository) ListByBatch(ctx context.Context, batchID string) ([]*StoredRecord, error) {
	sel := r.builder().Select(recordColumns...).From(entsql.Table(recordsTable))
	sel.Where(entsql.EQ("batch_id", batchID)).OrderBy("item_id")
	return r.query(ctx, sel)
}

// List returns the most recently archived records, newest first.
func (r *recordRepository) List(ctx context.Context, limit int) ([]*StoredRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	sel := r.builder().Select(recordColumns...).From(entsql.Table(recordsTable))
	sel.OrderBy(entsql.Desc("archived_at"), "id").Limit(limit)
	return r.query(ctx, sel)
}

func (r *recordRepository) query(ctx context.Context, sel *entsql.Selector) ([]*StoredRecord, error) {
	q, args := sel.Query()
	rows := &entsql.Rows{}
	if err := r.db.drv.Query(ctx, q, args, rows); err != nil {
		return nil, fmt.Errorf("%w: query records: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*StoredRecord
	for rows.Next() {
		var (
			s          StoredRecord
			typeCode   string
			typeName   string
			confidence float64
			warnings   int
			raw        string
			archivedAt string
		)
		if err := rows.Scan(&s.ID, &s.Fingerprint, &s.BatchID, &s.ItemID, &typeCode, &typeName,
			&confidence, &warnings, &raw, &archivedAt); err != nil {
			return nil, fmt.Errorf("%w: scan record: %v", common.ErrDatabase, err)
		}
		var rec entity.InvoiceRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", s.ID, err)
		}
		s.Record = &rec
		if t, err := time.Parse(timeLayout, archivedAt); err == nil {
			s.ArchivedAt = t
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate records: %v", common.ErrDatabase, err)
	}
	return out, nil
}
