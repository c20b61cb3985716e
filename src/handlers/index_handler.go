package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/username/corrigefolio/backend/src/logger"
	"github.com/username/corrigefolio/backend/src/services"
	"github.com/username/corrigefolio/backend/src/utils"
)

type IndexHandler struct {
	indexService     services.IndexService
	statementService services.StatementService
}

func NewIndexHandler(indexService services.IndexService, statementService services.StatementService) *IndexHandler {
	return &IndexHandler{
		indexService:     indexService,
		statementService: statementService,
	}
}

// HandleGetIndices returns the supported index catalog.
func (h *IndexHandler) HandleGetIndices(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.indexService.AvailableIndices()); err != nil {
		logger.L.Error("Error generating JSON response for index catalog", "error", err)
	}
}

// HandleGetObservations returns the monthly values of one index for an
// inclusive period range, fetching missing months from the remote source.
func (h *IndexHandler) HandleGetObservations(w http.ResponseWriter, r *http.Request) {
	indexName := r.PathValue("name")

	from, err := periodParam(r, "from")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := periodParam(r, "to")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if from > to {
		utils.SendJSONError(w, fmt.Sprintf("'from' period %s is after 'to' period %s", from, to), http.StatusBadRequest)
		return
	}

	observations, err := h.indexService.Observations(indexName, from, to)
	if err != nil {
		if errors.Is(err, services.ErrUnknownIndex) {
			utils.SendJSONError(w, fmt.Sprintf("Unknown index %q", indexName), http.StatusNotFound)
			return
		}
		logger.L.Error("Error retrieving index observations", "index", indexName, "from", from, "to", to, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving observations for %s: %v", indexName, err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(observations); err != nil {
		logger.L.Error("Error generating JSON response for index observations", "index", indexName, "error", err)
	}
}

// HandleClearCache drops every persisted observation. Cached correction
// reports are derived from those observations, so they are flushed too.
func (h *IndexHandler) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.indexService.ClearCache(); err != nil {
		logger.L.Error("Error clearing index cache", "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error clearing index cache: %v", err), http.StatusInternalServerError)
		return
	}
	h.statementService.InvalidateReports()

	logger.L.Info("Index cache cleared")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "index cache cleared"})
}

func periodParam(r *http.Request, key string) (string, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return "", fmt.Errorf("missing %q query parameter (expected YYYY-MM)", key)
	}
	if _, err := time.Parse(utils.PeriodFormat, value); err != nil {
		return "", fmt.Errorf("invalid %q period %q (expected YYYY-MM)", key, value)
	}
	return value, nil
}
