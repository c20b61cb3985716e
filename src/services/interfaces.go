package services

import (
	"errors"
	"io"
	"time"

	"github.com/username/corrigefolio/backend/src/models"
)

var (
	ErrParsingFailed     = errors.New("statement parsing failed")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrUnknownIndex      = errors.New("unknown index")
	ErrRemoteUnavailable = errors.New("index source unavailable")
)

// PeriodValue is one (month, value) pair returned by the remote series API.
type PeriodValue struct {
	Period string
	Value  float64
}

// IndexFetcher retrieves a window of monthly observations for one remote
// series. Implemented by the SGS client; faked in tests.
type IndexFetcher interface {
	FetchRange(seriesCode int, start, end time.Time) ([]PeriodValue, error)
}

// IndexService is the time-series store for the index catalog. It owns the
// persisted index_observations relation and is its sole writer; everything
// else reads through it.
type IndexService interface {
	AvailableIndices() map[string]string
	EnsureRange(indexName, startPeriod, endPeriod string) error
	GetValue(indexName, period string) (float64, bool)
	Observations(indexName, startPeriod, endPeriod string) ([]models.IndexObservation, error)
	ClearCache() error
}

// UploadOutcome is what a statement upload hands back to the caller: the
// persisted document id plus the extraction result with its warnings.
type UploadOutcome struct {
	DocumentID int64                   `json:"document_id"`
	Extraction models.ExtractionResult `json:"extraction"`
}

// StatementService defines the interface for the core statement workflow:
// upload and extract, query persisted documents, and run batch corrections.
type StatementService interface {
	ProcessUpload(fileReader io.Reader, filename string) (*UploadOutcome, error)
	GetDocuments() ([]models.DocumentSummary, error)
	GetDocument(id int64) (*models.DocumentDetail, error)
	CorrectDocument(id int64, referenceDate time.Time, indexNames []string, average bool) ([]models.InstallmentCorrection, error)
	InvalidateReports()
}

// ExportService renders a batch correction as a downloadable artifact.
type ExportService interface {
	WriteCSV(w io.Writer, records []models.InstallmentCorrection) error
	WriteXLSX(w io.Writer, records []models.InstallmentCorrection) error
}
