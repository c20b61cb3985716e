package processors

import (
	"errors"
	"time"

	"github.com/username/corrigefolio/backend/src/logger"
	"github.com/username/corrigefolio/backend/src/models"
	"github.com/username/corrigefolio/backend/src/utils"
)

const (
	// maxCorrectionMonths caps how many monthly variations are compounded.
	// Spans beyond it use only the most recent months and mark the result
	// as capped.
	maxCorrectionMonths = 60

	alertFactor = 2.5
	blockFactor = 3.0
)

var (
	ErrInvalidDateRange    = errors.New("reference date precedes origin date")
	ErrNoIndices           = errors.New("at least one index is required")
	ErrInsufficientIndices = errors.New("average mode requires at least two indices")
	ErrUnknownIndex        = errors.New("unknown index")
	ErrNoIndexData         = errors.New("no index data available for the requested period")
)

// IndexSource is the slice of the index store the calculator needs.
type IndexSource interface {
	AvailableIndices() map[string]string
	EnsureRange(indexName, startPeriod, endPeriod string) error
	GetValue(indexName, period string) (float64, bool)
}

// CorrectionProcessor compounds monthly index variations between two dates
// into a correction factor and classifies the outcome.
type CorrectionProcessor struct {
	indices IndexSource
}

func NewCorrectionProcessor(indices IndexSource) *CorrectionProcessor {
	return &CorrectionProcessor{indices: indices}
}

// ValidateRequest performs the input checks that must fail before any remote
// or cache access: an empty index list, average mode with a single index, or
// a name outside the catalog.
func (p *CorrectionProcessor) ValidateRequest(indexNames []string, average bool) error {
	if len(indexNames) == 0 {
		return ErrNoIndices
	}
	if average && len(indexNames) < 2 {
		return ErrInsufficientIndices
	}
	available := p.indices.AvailableIndices()
	for _, name := range indexNames {
		if _, ok := available[name]; !ok {
			return ErrUnknownIndex
		}
	}
	return nil
}

// Process corrects principal from originDate to referenceDate. One index
// name selects single-index mode; two or more select average mode, where
// each month's variation is the arithmetic mean across the indices that have
// a value for that month. Months with no value anywhere contribute a neutral
// factor of 1 and are counted, not fatal; only a window with no data at all
// fails. Blocked results are returned, not suppressed.
func (p *CorrectionProcessor) Process(principal float64, originDate, referenceDate time.Time, indexNames []string, average bool) (models.CorrectionResult, error) {
	if referenceDate.Before(originDate) {
		return models.CorrectionResult{}, ErrInvalidDateRange
	}
	if err := p.ValidateRequest(indexNames, average); err != nil {
		return models.CorrectionResult{}, err
	}
	averageMode := average || len(indexNames) >= 2

	periods := utils.PeriodsBetween(originDate, referenceDate)
	capped := false
	if len(periods) > maxCorrectionMonths {
		periods = periods[len(periods)-maxCorrectionMonths:]
		capped = true
	}

	if len(periods) > 0 {
		ensured := make(map[string]bool, len(indexNames))
		for _, name := range indexNames {
			if ensured[name] {
				continue
			}
			ensured[name] = true
			if err := p.indices.EnsureRange(name, periods[0], periods[len(periods)-1]); err != nil {
				// A stale cache beats no answer; GetValue will surface
				// whatever is actually there.
				logger.L.Warn("Index refresh degraded, computing from cached data", "index", name, "error", err)
			}
		}
	}

	factor := 1.0
	missing := 0
	applied := 0
	for _, period := range periods {
		variation, ok := p.monthlyVariation(indexNames, period, averageMode)
		if !ok {
			missing++
			continue
		}
		factor *= 1 + variation/100
		applied++
	}

	if applied == 0 && len(periods) > 0 {
		return models.CorrectionResult{}, ErrNoIndexData
	}

	result := models.CorrectionResult{
		CorrectedValue: utils.RoundFloat(principal*factor, 2),
		Factor:         factor,
		VariationPct:   (factor - 1) * 100,
		Status:         classify(factor),
		MonthsUsed:     len(periods),
		MissingMonths:  missing,
		Capped:         capped,
	}

	if result.Status != models.StatusOK {
		logger.L.Warn("Correction factor above advisory threshold",
			"factor", factor, "status", result.Status, "monthsUsed", result.MonthsUsed)
	}
	return result, nil
}

// monthlyVariation resolves one month's variation. In average mode, indices
// missing that month are excluded from the mean, not treated as zero.
func (p *CorrectionProcessor) monthlyVariation(indexNames []string, period string, averageMode bool) (float64, bool) {
	if !averageMode {
		return p.indices.GetValue(indexNames[0], period)
	}

	sum := 0.0
	count := 0
	for _, name := range indexNames {
		if value, ok := p.indices.GetValue(name, period); ok {
			sum += value
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

func classify(factor float64) models.CorrectionStatus {
	switch {
	case factor >= blockFactor:
		return models.StatusBlocked
	case factor >= alertFactor:
		return models.StatusAlert
	default:
		return models.StatusOK
	}
}
