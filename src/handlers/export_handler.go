package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/username/corrigefolio/backend/src/logger"
	"github.com/username/corrigefolio/backend/src/parsers"
	"github.com/username/corrigefolio/backend/src/services"
	"github.com/username/corrigefolio/backend/src/utils"
)

type ExportHandler struct {
	statementService services.StatementService
	exportService    services.ExportService
}

func NewExportHandler(statementService services.StatementService, exportService services.ExportService) *ExportHandler {
	return &ExportHandler{
		statementService: statementService,
		exportService:    exportService,
	}
}

// HandleExport runs a document correction and streams it as CSV or XLSX.
// Parameters mirror the batch correction endpoint, passed as query values:
// format, date (reference date), indices (comma separated), average.
func (h *ExportHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	id, err := documentIDFromPath(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	query := r.URL.Query()

	format := strings.ToLower(query.Get("format"))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		utils.SendJSONError(w, fmt.Sprintf("unsupported export format %q (expected csv or xlsx)", format), http.StatusBadRequest)
		return
	}

	referenceDate := parsers.ParseDate(query.Get("date"))
	if referenceDate.IsZero() {
		utils.SendJSONError(w, fmt.Sprintf("invalid reference date %q", query.Get("date")), http.StatusBadRequest)
		return
	}

	var indices []string
	for _, name := range strings.Split(query.Get("indices"), ",") {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			indices = append(indices, trimmed)
		}
	}
	average := query.Get("average") == "true"

	records, err := h.statementService.CorrectDocument(id, referenceDate, indices, average)
	if err != nil {
		if errors.Is(err, services.ErrDocumentNotFound) {
			utils.SendJSONError(w, "Document not found", http.StatusNotFound)
			return
		}
		sendCorrectionError(w, err)
		return
	}

	filename := fmt.Sprintf("correction_doc_%d_%s.%s", id, time.Now().Format("20060102"), format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		err = h.exportService.WriteCSV(w, records)
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		err = h.exportService.WriteXLSX(w, records)
	}
	if err != nil {
		// Headers are already sent; best we can do is log.
		logger.L.Error("Error writing export", "documentID", id, "format", format, "error", err)
		return
	}

	logger.L.Info("Document correction exported", "documentID", id, "format", format, "records", len(records))
}
