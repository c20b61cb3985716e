package services

import (
	"bytes"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/corrigefolio/backend/src/database"
	"github.com/username/corrigefolio/backend/src/logger"
	"github.com/username/corrigefolio/backend/src/models"
	"github.com/username/corrigefolio/backend/src/parsers"
	"github.com/username/corrigefolio/backend/src/processors"
	"github.com/username/corrigefolio/backend/src/security/validation"
)

const (
	ckDocumentCorrection = "res_correction_doc_%d_%s_%s_%t"

	storedDateFormat = "2006-01-02"
)

type statementServiceImpl struct {
	parser      *parsers.StatementParser
	correction  *processors.CorrectionProcessor
	reportCache *cache.Cache
}

func NewStatementService(
	parser *parsers.StatementParser,
	correction *processors.CorrectionProcessor,
	reportCache *cache.Cache,
) StatementService {
	return &statementServiceImpl{
		parser:      parser,
		correction:  correction,
		reportCache: reportCache,
	}
}

// ProcessUpload reads one uploaded statement (PDF or plain text), extracts
// its records and persists them. Extraction warnings ride along in the
// outcome; they are data for the operator, not errors.
func (s *statementServiceImpl) ProcessUpload(fileReader io.Reader, filename string) (*UploadOutcome, error) {
	overallStartTime := time.Now()
	logger.L.Info("ProcessUpload START", "filename", filename)

	data, err := io.ReadAll(fileReader)
	if err != nil {
		return nil, fmt.Errorf("%w: error reading upload: %v", ErrParsingFailed, err)
	}

	var text string
	if bytes.HasPrefix(data, []byte("%PDF")) {
		text, err = parsers.ExtractPDFText(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
		}
	} else {
		text = string(data)
	}
	text = validation.StripUnprintable(text)

	result := s.parser.Parse(text)

	docID, err := s.persistExtraction(filename, result)
	if err != nil {
		return nil, err
	}

	logger.L.Info("ProcessUpload END", "filename", filename, "documentID", docID,
		"installments", len(result.Installments), "duration", time.Since(overallStartTime))
	return &UploadOutcome{DocumentID: docID, Extraction: *result}, nil
}

func (s *statementServiceImpl) persistExtraction(filename string, result *models.ExtractionResult) (int64, error) {
	dbTx, err := database.DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	res, err := dbTx.Exec(
		`INSERT INTO documents (filename, client_code, client_name, sale_number, sale_date, sale_amount, warnings, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		filename,
		result.Client.Code,
		result.Client.Name,
		result.Sale.Number,
		storedDate(result.Sale.Date),
		result.Sale.Amount,
		strings.Join(result.Warnings, "\n"),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("error inserting document: %w", err)
	}
	docID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error resolving document id: %w", err)
	}

	stmt, err := dbTx.Prepare(
		`INSERT INTO installments (document_id, position, code, due_date, original_amount, paid_date, paid_amount)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("error preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for position, inst := range result.Installments {
		var paidDate interface{}
		if inst.PaidDate != nil {
			paidDate = inst.PaidDate.Format(storedDateFormat)
		}
		_, err := stmt.Exec(docID, position, inst.Code, storedDate(inst.DueDate), inst.OriginalAmount, paidDate, inst.PaidAmount)
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "unique constraint failed") {
				logger.L.Debug("Skipping duplicate installment on upload", "documentID", docID, "code", inst.Code)
				continue
			}
			return 0, fmt.Errorf("error inserting installment (code %s): %w", inst.Code, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing extraction: %w", err)
	}
	return docID, nil
}

func (s *statementServiceImpl) GetDocuments() ([]models.DocumentSummary, error) {
	rows, err := database.DB.Query(
		`SELECT d.id, d.filename, d.client_code, d.client_name, d.sale_number, d.uploaded_at,
		        (SELECT COUNT(*) FROM installments i WHERE i.document_id = d.id)
		 FROM documents d
		 ORDER BY d.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("error querying documents: %w", err)
	}
	defer rows.Close()

	var documents []models.DocumentSummary
	for rows.Next() {
		var doc models.DocumentSummary
		var uploadedAt string
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.ClientCode, &doc.ClientName, &doc.SaleNumber, &uploadedAt, &doc.InstallmentCount); err != nil {
			return nil, fmt.Errorf("error scanning document row: %w", err)
		}
		doc.UploadedAt, _ = time.Parse(time.RFC3339, uploadedAt)
		documents = append(documents, doc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over document rows: %w", err)
	}
	return documents, nil
}

func (s *statementServiceImpl) GetDocument(id int64) (*models.DocumentDetail, error) {
	var detail models.DocumentDetail
	var uploadedAt, saleDate string
	err := database.DB.QueryRow(
		`SELECT id, filename, client_code, client_name, sale_number, sale_date, sale_amount, uploaded_at
		 FROM documents WHERE id = ?`, id).
		Scan(&detail.ID, &detail.Filename, &detail.ClientCode, &detail.ClientName,
			&detail.SaleNumber, &saleDate, &detail.Sale.Amount, &uploadedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: id %d", ErrDocumentNotFound, id)
		}
		return nil, fmt.Errorf("error querying document %d: %w", id, err)
	}
	detail.Sale.Number = detail.SaleNumber
	detail.Sale.Date = parseStoredDate(saleDate)
	detail.UploadedAt, _ = time.Parse(time.RFC3339, uploadedAt)

	installments, err := s.fetchInstallments(id)
	if err != nil {
		return nil, err
	}
	detail.Installments = installments
	detail.InstallmentCount = len(installments)
	return &detail, nil
}

// CorrectDocument applies the calculator to every installment of a document
// in extraction order. A failure on one installment (an unpayable date
// range, say) is recorded on that row and the loop continues; only invalid
// request parameters fail the batch as a whole.
func (s *statementServiceImpl) CorrectDocument(id int64, referenceDate time.Time, indexNames []string, average bool) ([]models.InstallmentCorrection, error) {
	if err := s.correction.ValidateRequest(indexNames, average); err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf(ckDocumentCorrection, id, referenceDate.Format(storedDateFormat), strings.Join(indexNames, "+"), average)
	if cached, found := s.reportCache.Get(cacheKey); found {
		logger.L.Debug("Cache hit for document correction", "documentID", id)
		return cached.([]models.InstallmentCorrection), nil
	}

	installments, err := s.fetchInstallments(id)
	if err != nil {
		return nil, err
	}
	if len(installments) == 0 {
		if _, err := s.GetDocument(id); err != nil {
			return nil, err
		}
	}

	records := make([]models.InstallmentCorrection, 0, len(installments))
	for _, inst := range installments {
		record := models.InstallmentCorrection{
			Code:           inst.Code,
			DueDate:        inst.DueDate,
			OriginalAmount: inst.OriginalAmount,
			PaidDate:       inst.PaidDate,
			PaidAmount:     inst.PaidAmount,
		}

		result, err := s.correction.Process(inst.OriginalAmount, inst.DueDate, referenceDate, indexNames, average)
		if err != nil {
			record.Error = err.Error()
		} else {
			record.CorrectedValue = result.CorrectedValue
			record.Factor = result.Factor
			record.VariationPct = result.VariationPct
			record.Status = result.Status
			record.MonthsUsed = result.MonthsUsed
			record.MissingMonths = result.MissingMonths
			record.Capped = result.Capped
		}
		records = append(records, record)
	}

	s.reportCache.Set(cacheKey, records, cache.DefaultExpiration)
	return records, nil
}

// InvalidateReports drops every cached correction report. Called when the
// index cache is cleared, since any cached factor may now be stale.
func (s *statementServiceImpl) InvalidateReports() {
	s.reportCache.Flush()
	logger.L.Info("Invalidated all cached correction reports")
}

func (s *statementServiceImpl) fetchInstallments(documentID int64) ([]models.Installment, error) {
	rows, err := database.DB.Query(
		`SELECT code, due_date, original_amount, paid_date, paid_amount
		 FROM installments WHERE document_id = ?
		 ORDER BY position ASC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("error querying installments for document %d: %w", documentID, err)
	}
	defer rows.Close()

	var installments []models.Installment
	for rows.Next() {
		var inst models.Installment
		var dueDate string
		var paidDate sql.NullString
		if err := rows.Scan(&inst.Code, &dueDate, &inst.OriginalAmount, &paidDate, &inst.PaidAmount); err != nil {
			return nil, fmt.Errorf("error scanning installment row for document %d: %w", documentID, err)
		}
		inst.DueDate = parseStoredDate(dueDate)
		if paidDate.Valid && paidDate.String != "" {
			if t := parseStoredDate(paidDate.String); !t.IsZero() {
				inst.PaidDate = &t
			}
		}
		installments = append(installments, inst)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over installment rows for document %d: %w", documentID, err)
	}
	return installments, nil
}

func storedDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(storedDateFormat)
}

func parseStoredDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(storedDateFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
