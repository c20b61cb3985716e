package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/username/corrigefolio/backend/src/logger"
	"github.com/username/corrigefolio/backend/src/parsers"
	"github.com/username/corrigefolio/backend/src/processors"
	"github.com/username/corrigefolio/backend/src/services"
	"github.com/username/corrigefolio/backend/src/utils"
)

type CorrectionHandler struct {
	statementService services.StatementService
	processor        *processors.CorrectionProcessor
}

func NewCorrectionHandler(statementService services.StatementService, processor *processors.CorrectionProcessor) *CorrectionHandler {
	return &CorrectionHandler{
		statementService: statementService,
		processor:        processor,
	}
}

// correctionParams is shared by the single and batch endpoints. Dates use the
// same tolerant formats the statement parser accepts.
type correctionParams struct {
	ReferenceDate string   `json:"reference_date"`
	Indices       []string `json:"indices"`
	Average       bool     `json:"average"`
}

// HandleSingleCorrection runs the calculator for one principal and date pair.
func (h *CorrectionHandler) HandleSingleCorrection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount     float64 `json:"amount"`
		OriginDate string  `json:"origin_date"`
		correctionParams
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Amount <= 0 {
		utils.SendJSONError(w, "amount must be positive", http.StatusBadRequest)
		return
	}

	originDate := parsers.ParseDate(req.OriginDate)
	if originDate.IsZero() {
		utils.SendJSONError(w, fmt.Sprintf("invalid origin_date %q", req.OriginDate), http.StatusBadRequest)
		return
	}
	referenceDate := parsers.ParseDate(req.ReferenceDate)
	if referenceDate.IsZero() {
		utils.SendJSONError(w, fmt.Sprintf("invalid reference_date %q", req.ReferenceDate), http.StatusBadRequest)
		return
	}

	result, err := h.processor.Process(req.Amount, originDate, referenceDate, req.Indices, req.Average)
	if err != nil {
		sendCorrectionError(w, err)
		return
	}

	logger.L.Info("Single correction computed",
		"amount", req.Amount,
		"indices", req.Indices,
		"factor", result.Factor,
		"status", result.Status)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		logger.L.Error("Error generating JSON response for correction", "error", err)
	}
}

// HandleDocumentCorrection applies the calculator to every installment of a
// persisted document, in extraction order.
func (h *CorrectionHandler) HandleDocumentCorrection(w http.ResponseWriter, r *http.Request) {
	id, err := documentIDFromPath(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req correctionParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	referenceDate := parsers.ParseDate(req.ReferenceDate)
	if referenceDate.IsZero() {
		utils.SendJSONError(w, fmt.Sprintf("invalid reference_date %q", req.ReferenceDate), http.StatusBadRequest)
		return
	}

	records, err := h.statementService.CorrectDocument(id, referenceDate, req.Indices, req.Average)
	if err != nil {
		if errors.Is(err, services.ErrDocumentNotFound) {
			utils.SendJSONError(w, "Document not found", http.StatusNotFound)
			return
		}
		sendCorrectionError(w, err)
		return
	}

	logger.L.Info("Document correction computed", "documentID", id, "indices", req.Indices, "records", len(records))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(records); err != nil {
		logger.L.Error("Error generating JSON response for document correction", "documentID", id, "error", err)
	}
}

// sendCorrectionError maps calculator errors onto HTTP statuses. Bad inputs
// are the caller's fault; missing index data means the remote source could
// not be reached and the persisted cache has no coverage.
func sendCorrectionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, processors.ErrInvalidDateRange),
		errors.Is(err, processors.ErrNoIndices),
		errors.Is(err, processors.ErrInsufficientIndices),
		errors.Is(err, processors.ErrUnknownIndex):
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, processors.ErrNoIndexData):
		utils.SendJSONError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		logger.L.Error("Correction failed", "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error computing correction: %v", err), http.StatusInternalServerError)
	}
}
