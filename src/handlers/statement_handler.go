package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/username/corrigefolio/backend/src/config"
	"github.com/username/corrigefolio/backend/src/logger"
	"github.com/username/corrigefolio/backend/src/security/validation"
	"github.com/username/corrigefolio/backend/src/services"
	"github.com/username/corrigefolio/backend/src/utils"
)

type StatementHandler struct {
	statementService services.StatementService
}

func NewStatementHandler(service services.StatementService) *StatementHandler {
	return &StatementHandler{
		statementService: service,
	}
}

func (h *StatementHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		logger.L.Warn("Failed to parse multipart form or request too large", "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		logger.L.Warn("Failed to retrieve file from request", "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > config.Cfg.MaxUploadSizeBytes {
		logger.L.Warn("Uploaded file header reports size too large", "fileSize", fileHeader.Size, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("File too large, max %d MB", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	clientContentType := fileHeader.Header.Get("Content-Type")
	if err := validation.ValidateClientContentType(clientContentType); err != nil {
		logger.L.Warn("Invalid client-declared file type", "contentType", clientContentType, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	detectedContentType, err := validation.ValidateFileContentByMagicBytes(file)
	if err != nil {
		logger.L.Warn("Server-side file content validation failed", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	logger.L.Info("Processing statement upload", "filename", fileHeader.Filename, "clientType", clientContentType, "detectedType", detectedContentType)

	outcome, err := h.statementService.ProcessUpload(file, fileHeader.Filename)
	if err != nil {
		if errors.Is(err, services.ErrParsingFailed) {
			logger.L.Warn("Statement upload failed to parse", "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, fmt.Sprintf("Error parsing statement: %v", err), http.StatusBadRequest)
			return
		}
		logger.L.Error("Error processing statement upload", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error processing file: %v", err), http.StatusInternalServerError)
		return
	}

	logger.L.Info("Statement upload processed",
		"filename", fileHeader.Filename,
		"documentID", outcome.DocumentID,
		"installments", len(outcome.Extraction.Installments),
		"warnings", len(outcome.Extraction.Warnings))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(outcome); err != nil {
		logger.L.Error("Error generating JSON response for upload outcome", "error", err)
	}
}

func (h *StatementHandler) HandleGetDocuments(w http.ResponseWriter, r *http.Request) {
	documents, err := h.statementService.GetDocuments()
	if err != nil {
		logger.L.Error("Error retrieving documents", "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving documents: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(documents); err != nil {
		logger.L.Error("Error generating JSON response for document list", "error", err)
	}
}

func (h *StatementHandler) HandleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := documentIDFromPath(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	detail, err := h.statementService.GetDocument(id)
	if err != nil {
		if errors.Is(err, services.ErrDocumentNotFound) {
			utils.SendJSONError(w, "Document not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Error retrieving document", "documentID", id, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving document %d: %v", id, err), http.StatusInternalServerError)
		return
	}

	currentETag, etagErr := utils.GenerateETag(detail)
	if etagErr != nil {
		logger.L.Error("Failed to generate ETag for document detail", "documentID", id, "error", etagErr)
	}

	w.Header().Set("Cache-Control", "no-cache, private")

	if etagErr == nil && currentETag != "" {
		quotedETag := fmt.Sprintf("\"%s\"", currentETag)
		w.Header().Set("ETag", quotedETag)
		clientETag := r.Header.Get("If-None-Match")
		for _, cETag := range strings.Split(clientETag, ",") {
			if strings.TrimSpace(cETag) == quotedETag {
				logger.L.Debug("ETag match for document detail", "documentID", id, "etag", currentETag)
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(detail); err != nil {
		logger.L.Error("Error generating JSON response for document detail", "documentID", id, "error", err)
	}
}

func documentIDFromPath(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid document id %q", idStr)
	}
	return id, nil
}
