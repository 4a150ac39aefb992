package entity

import "encoding/json"

// ReceiptRecord is the flat persisted entity. SourceSHA is the content digest
// of the original image and the sole deduplication key.
type ReceiptRecord struct {
	ID          int64           `json:"id"`
	SourceSHA   string          `json:"source_sha"`
	SourcePath  string          `json:"source_path"`
	Merchant    *string         `json:"merchant"`
	ReceiptDate *string         `json:"receipt_date"`
	TotalAmount *float64        `json:"total_amount"`
	Currency    *string         `json:"currency"`
	OCRText     string          `json:"ocr_text"`
	OCRJSON     json.RawMessage `json:"ocr_json,omitempty"`
	DUJSON      json.RawMessage `json:"du_json,omitempty"`
	MetaJSON    json.RawMessage `json:"meta_json,omitempty"`
	CreatedAt   string          `json:"created_at,omitempty"`
	UpdatedAt   string          `json:"updated_at,omitempty"`
}

// ReceiptSummary is the listing projection (no raw JSON blobs).
type ReceiptSummary struct {
	ID          int64    `json:"id"`
	Merchant    *string  `json:"merchant"`
	ReceiptDate *string  `json:"receipt_date"`
	TotalAmount *float64 `json:"total_amount"`
	Currency    *string  `json:"currency"`
}

// UpsertResult reports the row identifier and whether the write inserted a new
// row or updated an existing one for the same digest.
type UpsertResult struct {
	ID       int64 `json:"receipt_id"`
	Inserted bool  `json:"inserted"`
}

func (r UpsertResult) Outcome() string {
	if r.Inserted {
		return "inserted"
	}
	return "updated"
}
