package services

import (
	"database/sql"
	"fmt"

	"github.com/patrickmn/go-cache"
	"github.com/username/corrigefolio/backend/src/database"
	"github.com/username/corrigefolio/backend/src/logger"
	"github.com/username/corrigefolio/backend/src/models"
	"github.com/username/corrigefolio/backend/src/utils"
)

type indexInfo struct {
	DisplayName string
	SeriesCode  int
}

// indexCatalog is the closed catalog of supported indices, each mapped to
// its SGS series identifier.
var indexCatalog = map[string]indexInfo{
	"IGP-M": {DisplayName: "IGP-M (FGV)", SeriesCode: 189},
	"IPCA":  {DisplayName: "IPCA (IBGE)", SeriesCode: 433},
	"INPC":  {DisplayName: "INPC (IBGE)", SeriesCode: 188},
}

type indexServiceImpl struct {
	fetcher  IndexFetcher
	memCache *cache.Cache
}

func NewIndexService(fetcher IndexFetcher, memCache *cache.Cache) IndexService {
	return &indexServiceImpl{
		fetcher:  fetcher,
		memCache: memCache,
	}
}

func (s *indexServiceImpl) AvailableIndices() map[string]string {
	indices := make(map[string]string, len(indexCatalog))
	for name, info := range indexCatalog {
		indices[name] = info.DisplayName
	}
	return indices
}

// EnsureRange fills the persisted cache for [startPeriod, endPeriod]. Closed
// months already cached are never re-fetched; the current (open) month is
// always treated as missing so its provisional value gets overwritten. One
// remote call covers the minimal window from the earliest to the latest
// missing month. On remote failure the cache is left as-is and the error is
// reported upward as a degradation, not a fatality.
func (s *indexServiceImpl) EnsureRange(indexName, startPeriod, endPeriod string) error {
	info, ok := indexCatalog[indexName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownIndex, indexName)
	}

	periods := utils.PeriodRange(startPeriod, endPeriod)
	if len(periods) == 0 {
		return nil
	}

	cached, err := s.cachedPeriods(indexName, startPeriod, endPeriod)
	if err != nil {
		return fmt.Errorf("error reading cached periods for %s: %w", indexName, err)
	}

	currentPeriod := utils.CurrentPeriod()
	var missing []string
	for _, period := range periods {
		if !cached[period] || period == currentPeriod {
			missing = append(missing, period)
		}
	}
	if len(missing) == 0 {
		logger.L.Debug("Index cache hit for full range", "index", indexName, "from", startPeriod, "to", endPeriod)
		return nil
	}

	windowStart, err := utils.PeriodTime(missing[0])
	if err != nil {
		return fmt.Errorf("invalid period %q: %w", missing[0], err)
	}
	windowEnd, err := utils.PeriodTime(missing[len(missing)-1])
	if err != nil {
		return fmt.Errorf("invalid period %q: %w", missing[len(missing)-1], err)
	}
	// Last day of the window's final month.
	windowEnd = windowEnd.AddDate(0, 1, -1)

	logger.L.Info("Index cache gap detected, fetching from remote source",
		"index", indexName, "missingMonths", len(missing), "from", missing[0], "to", missing[len(missing)-1])

	values, err := s.fetcher.FetchRange(info.SeriesCode, windowStart, windowEnd)
	if err != nil {
		logger.L.Warn("Remote index fetch failed, degrading to cached data", "index", indexName, "error", err)
		return fmt.Errorf("%w: %s: %v", ErrRemoteUnavailable, indexName, err)
	}

	if err := s.storeObservations(indexName, values); err != nil {
		return fmt.Errorf("error persisting observations for %s: %w", indexName, err)
	}
	return nil
}

// GetValue answers a point lookup. Reads never trigger remote calls; call
// EnsureRange for the enclosing window first.
func (s *indexServiceImpl) GetValue(indexName, period string) (float64, bool) {
	key := observationCacheKey(indexName, period)
	if cached, found := s.memCache.Get(key); found {
		return cached.(float64), true
	}

	var value float64
	err := database.DB.QueryRow(
		`SELECT value FROM index_observations WHERE index_name = ? AND period = ?`,
		indexName, period).Scan(&value)
	if err != nil {
		if err != sql.ErrNoRows {
			logger.L.Error("Error querying index observation", "index", indexName, "period", period, "error", err)
		}
		return 0, false
	}

	s.memCache.Set(key, value, cache.DefaultExpiration)
	return value, true
}

// Observations serves a range query, refreshing gaps first. A remote failure
// degrades to whatever is cached rather than failing the query.
func (s *indexServiceImpl) Observations(indexName, startPeriod, endPeriod string) ([]models.IndexObservation, error) {
	if _, ok := indexCatalog[indexName]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIndex, indexName)
	}

	if err := s.EnsureRange(indexName, startPeriod, endPeriod); err != nil {
		logger.L.Warn("Serving index observations from possibly stale cache", "index", indexName, "error", err)
	}

	rows, err := database.DB.Query(
		`SELECT index_name, period, value FROM index_observations
		 WHERE index_name = ? AND period >= ? AND period <= ?
		 ORDER BY period ASC`,
		indexName, startPeriod, endPeriod)
	if err != nil {
		return nil, fmt.Errorf("error querying observations for %s: %w", indexName, err)
	}
	defer rows.Close()

	var observations []models.IndexObservation
	for rows.Next() {
		var obs models.IndexObservation
		if err := rows.Scan(&obs.IndexName, &obs.Period, &obs.Value); err != nil {
			return nil, fmt.Errorf("error scanning observation row for %s: %w", indexName, err)
		}
		observations = append(observations, obs)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over observation rows for %s: %w", indexName, err)
	}
	return observations, nil
}

// ClearCache wipes the persisted relation and the in-memory layer, forcing a
// full re-fetch on the next correction.
func (s *indexServiceImpl) ClearCache() error {
	if _, err := database.DB.Exec(`DELETE FROM index_observations`); err != nil {
		return fmt.Errorf("error clearing index cache: %w", err)
	}
	s.memCache.Flush()
	logger.L.Info("Index cache cleared")
	return nil
}

func (s *indexServiceImpl) cachedPeriods(indexName, startPeriod, endPeriod string) (map[string]bool, error) {
	rows, err := database.DB.Query(
		`SELECT period FROM index_observations WHERE index_name = ? AND period >= ? AND period <= ?`,
		indexName, startPeriod, endPeriod)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cached := make(map[string]bool)
	for rows.Next() {
		var period string
		if err := rows.Scan(&period); err != nil {
			return nil, err
		}
		cached[period] = true
	}
	return cached, rows.Err()
}

// storeObservations upserts fetched values. Writes are idempotent per
// (index_name, period), so re-fetching the open month simply overwrites it.
func (s *indexServiceImpl) storeObservations(indexName string, values []PeriodValue) error {
	dbTx, err := database.DB.Begin()
	if err != nil {
		return fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.Prepare(`INSERT INTO index_observations (index_name, period, value, fetched_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(index_name, period) DO UPDATE SET value = excluded.value, fetched_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return fmt.Errorf("error preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	for _, pv := range values {
		if _, err := stmt.Exec(indexName, pv.Period, pv.Value); err != nil {
			return fmt.Errorf("error upserting observation (%s, %s): %w", indexName, pv.Period, err)
		}
		s.memCache.Set(observationCacheKey(indexName, pv.Period), pv.Value, cache.DefaultExpiration)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("error committing observations: %w", err)
	}
	logger.L.Info("Index observations persisted", "index", indexName, "count", len(values))
	return nil
}

func observationCacheKey(indexName, period string) string {
	return fmt.Sprintf("obs_%s_%s", indexName, period)
}
