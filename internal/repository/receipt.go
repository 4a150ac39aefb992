package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/receiptdu/receiptdu/internal/common"
	"github.com/receiptdu/receiptdu/internal/entity"
)

// ReceiptRepository is the content-addressed upsert store. Reprocessing the
// same image bytes updates the existing row instead of creating a new one.
type ReceiptRepository interface {
	Upsert(ctx context.Context, rec *entity.ReceiptRecord) (*entity.UpsertResult, error)
	List(ctx context.Context, limit int) ([]*entity.ReceiptSummary, error)
	GetByID(ctx context.Context, id int64) (*entity.ReceiptRecord, error)
}

type receiptRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewReceiptRepository(db *DB, logger *slog.Logger) ReceiptRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &receiptRepository{db: db, logger: logger}
}

const upsertSQL = `
INSERT INTO receipts (
  source_sha, source_path,
  merchant, receipt_date, total_amount, currency,
  ocr_text, ocr_json, du_json, meta_json
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT(source_sha) DO UPDATE SET
  source_path  = COALESCE(NULLIF(excluded.source_path, ''), receipts.source_path),
  merchant     = excluded.merchant,
  receipt_date = excluded.receipt_date,
  total_amount = excluded.total_amount,
  currency     = excluded.currency,
  ocr_text     = excluded.ocr_text,
  ocr_json     = excluded.ocr_json,
  du_json      = excluded.du_json,
  meta_json    = excluded.meta_json,
  updated_at   = CURRENT_TIMESTAMP
RETURNING id`

// Upsert performs the atomic insert-or-update keyed by the content digest.
// Whether the write inserted or updated is taken from a pre-write existence
// check inside the same transaction; the conflict clause remains the atomic
// backstop for duplicate digests.
func (r *receiptRepository) Upsert(ctx context.Context, rec *entity.ReceiptRecord) (*entity.UpsertResult, error) {
	if rec.SourceSHA == "" {
		return nil, common.NewAppError(common.CodeMissingDigest,
			"missing source_sha; the pipeline must set the content digest", nil)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var existing int64
	existed := true
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM receipts WHERE source_sha = $1`, rec.SourceSHA).Scan(&existing)
	if errors.Is(err, sql.ErrNoRows) {
		existed = false
	} else if err != nil {
		return nil, err
	}

	var id int64
	err = tx.QueryRowContext(ctx, upsertSQL,
		rec.SourceSHA,
		rec.SourcePath,
		rec.Merchant,
		rec.ReceiptDate,
		rec.TotalAmount,
		rec.Currency,
		rec.OCRText,
		rawOrNil(rec.OCRJSON),
		rawOrNil(rec.DUJSON),
		rawOrNil(rec.MetaJSON),
	).Scan(&id)
	if err != nil {
		r.logger.Error("receipts.upsert.failed", "source_sha", rec.SourceSHA, "error", err)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	res := &entity.UpsertResult{ID: id, Inserted: !existed}
	r.logger.Info("receipts.upsert.ok",
		"receipt_id", id, "source_sha", rec.SourceSHA, "outcome", res.Outcome())
	return res, nil
}

// List returns the most recent records' summary projection, newest first by
// identifier. No filtering, no aggregation.
func (r *receiptRepository) List(ctx context.Context, limit int) ([]*entity.ReceiptSummary, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, merchant, receipt_date, total_amount, currency
FROM receipts
ORDER BY id DESC
LIMIT $1`, limit)
	if err != nil {
		r.logger.Error("receipts.list.failed", "error", err)
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*entity.ReceiptSummary
	for rows.Next() {
		var (
			s        entity.ReceiptSummary
			merchant sql.NullString
			date     sql.NullString
			total    sql.NullFloat64
			currency sql.NullString
		)
		if err := rows.Scan(&s.ID, &merchant, &date, &total, &currency); err != nil {
			return nil, err
		}
		s.Merchant = strPtr(merchant)
		s.ReceiptDate = strPtr(date)
		s.TotalAmount = floatPtr(total)
		s.Currency = strPtr(currency)
		out = append(out, &s)
	}
	return out, rows.Err()
}

// GetByID reads a full record including the stored JSON blobs.
func (r *receiptRepository) GetByID(ctx context.Context, id int64) (*entity.ReceiptRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT
  id, source_sha, source_path,
  merchant, receipt_date, total_amount, currency,
  ocr_text, ocr_json, du_json, meta_json,
  CAST(created_at AS TEXT), CAST(updated_at AS TEXT)
FROM receipts
WHERE id = $1`, id)

	var (
		rec        entity.ReceiptRecord
		sourcePath sql.NullString
		merchant   sql.NullString
		date       sql.NullString
		total      sql.NullFloat64
		currency   sql.NullString
		ocrText    sql.NullString
		ocrJSON    sql.NullString
		duJSON     sql.NullString
		metaJSON   sql.NullString
	)
	err := row.Scan(
		&rec.ID, &rec.SourceSHA, &sourcePath,
		&merchant, &date, &total, &currency,
		&ocrText, &ocrJSON, &duJSON, &metaJSON,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError(common.CodeNotFound, "receipt not found", nil)
	}
	if err != nil {
		r.logger.Error("receipts.get.failed", "receipt_id", id, "error", err)
		return nil, err
	}

	rec.SourcePath = orEmpty(sourcePath)
	rec.Merchant = strPtr(merchant)
	rec.ReceiptDate = strPtr(date)
	rec.TotalAmount = floatPtr(total)
	rec.Currency = strPtr(currency)
	rec.OCRText = orEmpty(ocrText)
	if ocrJSON.Valid {
		rec.OCRJSON = []byte(ocrJSON.String)
	}
	if duJSON.Valid {
		rec.DUJSON = []byte(duJSON.String)
	}
	if metaJSON.Valid {
		rec.MetaJSON = []byte(metaJSON.String)
	}
	return &rec, nil
}

func rawOrNil(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func strPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func orEmpty(v sql.NullString) string {
	if !v.Valid {
		return ""
	}
	return v.String
}
