package models

import "time"

// Client identifies the customer a statement belongs to. Extraction may
// legitimately fail to find one, in which case both fields stay empty and a
// warning is attached to the extraction result instead of an error.
type Client struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Sale is the optional sale header of a statement. A statement with
// installments but no sale header yields a zero-valued Sale.
type Sale struct {
	Number string    `json:"number"`
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// Installment is one row recovered from the statement text. The pair
// (Code, DueDate) anchors the record: the paid date is re-derived through a
// second lookup keyed on the same pair. PaidDate is nil while the installment
// is unpaid; PaidAmount defaults to zero, never to a missing marker.
type Installment struct {
	Code           string     `json:"code"`
	DueDate        time.Time  `json:"due_date"`
	OriginalAmount float64    `json:"original_amount"`
	PaidDate       *time.Time `json:"paid_date"`
	PaidAmount     float64    `json:"paid_amount"`
}

// ExtractionResult is what the statement parser hands back. Warnings carry
// the non-fatal degradations (missing client, missing sale header, empty
// installment list) so the caller can surface them without aborting.
type ExtractionResult struct {
	Client       Client        `json:"client"`
	Sale         Sale          `json:"sale"`
	Installments []Installment `json:"installments"`
	Warnings     []string      `json:"warnings"`
}

// CorrectionStatus classifies how large a correction factor turned out.
// Blocked results are still returned; the status is advisory metadata.
type CorrectionStatus string

const (
	StatusOK      CorrectionStatus = "ok"
	StatusAlert   CorrectionStatus = "alert"
	StatusBlocked CorrectionStatus = "blocked"
)

// CorrectionResult is derived on demand and never persisted.
type CorrectionResult struct {
	CorrectedValue float64          `json:"corrected_value"`
	Factor         float64          `json:"factor"`
	VariationPct   float64          `json:"variation_pct"`
	Status         CorrectionStatus `json:"status"`
	MonthsUsed     int              `json:"months_used"`
	MissingMonths  int              `json:"missing_months"`
	Capped         bool             `json:"capped"`
}

// IndexObservation is one monthly value of a named economic index, as
// published by the remote source. Period uses the "2006-01" layout. The store
// is the sole writer of these rows.
type IndexObservation struct {
	IndexName string  `json:"index_name"`
	Period    string  `json:"period"`
	Value     float64 `json:"value"`
}

// DocumentSummary is the listing view of a persisted statement upload.
type DocumentSummary struct {
	ID               int64     `json:"id"`
	Filename         string    `json:"filename"`
	ClientCode       string    `json:"client_code"`
	ClientName       string    `json:"client_name"`
	SaleNumber       string    `json:"sale_number"`
	InstallmentCount int       `json:"installment_count"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

// DocumentDetail is a summary plus the installments in extraction order.
type DocumentDetail struct {
	DocumentSummary
	Sale         Sale          `json:"sale"`
	Installments []Installment `json:"installments"`
}

// InstallmentCorrection pairs an extracted installment with its correction
// result as one flat record, ordered as the installments were extracted.
// Error carries the per-record failure message when that single correction
// was rejected (for example a due date after the reference date); the rest of
// the batch is unaffected.
type InstallmentCorrection struct {
	Code           string     `json:"code"`
	DueDate        time.Time  `json:"due_date"`
	OriginalAmount float64    `json:"original_amount"`
	PaidDate       *time.Time `json:"paid_date"`
	PaidAmount     float64    `json:"paid_amount"`

	CorrectedValue float64          `json:"corrected_value"`
	Factor         float64          `json:"factor"`
	VariationPct   float64          `json:"variation_pct"`
	Status         CorrectionStatus `json:"status"`
	MonthsUsed     int              `json:"months_used"`
	MissingMonths  int              `json:"missing_months"`
	Capped         bool             `json:"capped"`

	Error string `json:"error,omitempty"`
}
