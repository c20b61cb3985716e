package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/username/corrigefolio/backend/src/models"
	"github.com/username/corrigefolio/backend/src/security/validation"
	"github.com/username/corrigefolio/backend/src/utils"
	"github.com/xuri/excelize/v2"
)

var exportHeader = []string{
	"code", "due_date", "original_amount", "paid_date", "paid_amount",
	"corrected_value", "factor", "variation_pct", "status", "months_used",
	"missing_months", "capped", "error",
}

type exportServiceImpl struct{}

func NewExportService() ExportService {
	return &exportServiceImpl{}
}

func (s *exportServiceImpl) WriteCSV(w io.Writer, records []models.InstallmentCorrection) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return fmt.Errorf("error writing CSV header: %w", err)
	}
	for _, record := range records {
		if err := writer.Write(csvRow(record)); err != nil {
			return fmt.Errorf("error writing CSV row (code %s): %w", record.Code, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func (s *exportServiceImpl) WriteXLSX(w io.Writer, records []models.InstallmentCorrection) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := make([]interface{}, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("error writing XLSX header: %w", err)
	}

	for i, record := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("error resolving XLSX cell for row %d: %w", i+2, err)
		}
		row := []interface{}{
			validation.SanitizeForFormulaInjection(record.Code),
			dueDateString(record),
			record.OriginalAmount,
			paidDateString(record),
			record.PaidAmount,
			record.CorrectedValue,
			record.Factor,
			record.VariationPct,
			string(record.Status),
			record.MonthsUsed,
			record.MissingMonths,
			record.Capped,
			validation.SanitizeForFormulaInjection(record.Error),
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("error writing XLSX row (code %s): %w", record.Code, err)
		}
	}

	return f.Write(w)
}

func csvRow(record models.InstallmentCorrection) []string {
	return []string{
		validation.SanitizeForFormulaInjection(record.Code),
		dueDateString(record),
		strconv.FormatFloat(record.OriginalAmount, 'f', 2, 64),
		paidDateString(record),
		strconv.FormatFloat(record.PaidAmount, 'f', 2, 64),
		strconv.FormatFloat(record.CorrectedValue, 'f', 2, 64),
		strconv.FormatFloat(record.Factor, 'f', 6, 64),
		strconv.FormatFloat(record.VariationPct, 'f', 4, 64),
		string(record.Status),
		strconv.Itoa(record.MonthsUsed),
		strconv.Itoa(record.MissingMonths),
		strconv.FormatBool(record.Capped),
		validation.SanitizeForFormulaInjection(record.Error),
	}
}

func dueDateString(record models.InstallmentCorrection) string {
	if record.DueDate.IsZero() {
		return ""
	}
	return record.DueDate.Format(utils.DefaultDateFormat)
}

func paidDateString(record models.InstallmentCorrection) string {
	if record.PaidDate == nil {
		return ""
	}
	return record.PaidDate.Format(utils.DefaultDateFormat)
}
