package processors

import (
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/corrigefolio/backend/src/logger"
	"github.com/username/corrigefolio/backend/src/models"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

// fakeIndexSource serves canned monthly variations without touching the
// database or the remote API.
type fakeIndexSource struct {
	values      map[string]map[string]float64
	ensureErr   error
	ensureCalls int
}

func newFakeIndexSource() *fakeIndexSource {
	return &fakeIndexSource{values: map[string]map[string]float64{}}
}

func (f *fakeIndexSource) set(indexName, period string, value float64) {
	if f.values[indexName] == nil {
		f.values[indexName] = map[string]float64{}
	}
	f.values[indexName][period] = value
}

func (f *fakeIndexSource) AvailableIndices() map[string]string {
	return map[string]string{"IGP-M": "IGP-M (FGV)", "IPCA": "IPCA (IBGE)", "INPC": "INPC (IBGE)"}
}

func (f *fakeIndexSource) EnsureRange(indexName, startPeriod, endPeriod string) error {
	f.ensureCalls++
	return f.ensureErr
}

func (f *fakeIndexSource) GetValue(indexName, period string) (float64, bool) {
	value, ok := f.values[indexName][period]
	return value, ok
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func TestProcessSameMonthIsIdentity(t *testing.T) {
	p := NewCorrectionProcessor(newFakeIndexSource())

	result, err := p.Process(1000, day(2023, time.May, 10), day(2023, time.May, 25), []string{"IGP-M"}, false)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, result.Factor, 1e-12)
	assert.InDelta(t, 1000.0, result.CorrectedValue, 1e-9)
	assert.Equal(t, 0, result.MonthsUsed)
	assert.Equal(t, models.StatusOK, result.Status)
}

func TestProcessSingleIndexCompounds(t *testing.T) {
	source := newFakeIndexSource()
	source.set("IGP-M", "2023-02", 1.0)
	source.set("IGP-M", "2023-03", 2.0)
	p := NewCorrectionProcessor(source)

	result, err := p.Process(1000, day(2023, time.January, 15), day(2023, time.March, 15), []string{"IGP-M"}, false)
	require.NoError(t, err)

	expectedFactor := 1.01 * 1.02
	assert.InDelta(t, expectedFactor, result.Factor, 1e-12)
	assert.InDelta(t, 1000*expectedFactor, result.CorrectedValue, 0.005)
	assert.InDelta(t, (expectedFactor-1)*100, result.VariationPct, 1e-9)
	assert.Equal(t, 2, result.MonthsUsed)
	assert.Equal(t, 0, result.MissingMonths)
	assert.False(t, result.Capped)
}

func TestProcessInvalidDateRange(t *testing.T) {
	p := NewCorrectionProcessor(newFakeIndexSource())

	_, err := p.Process(1000, day(2023, time.May, 10), day(2023, time.April, 10), []string{"IGP-M"}, false)
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}

func TestValidateRequest(t *testing.T) {
	p := NewCorrectionProcessor(newFakeIndexSource())

	assert.ErrorIs(t, p.ValidateRequest(nil, false), ErrNoIndices)
	assert.ErrorIs(t, p.ValidateRequest([]string{"IGP-M"}, true), ErrInsufficientIndices)
	assert.ErrorIs(t, p.ValidateRequest([]string{"SELIC"}, false), ErrUnknownIndex)
	assert.NoError(t, p.ValidateRequest([]string{"IGP-M"}, false))
	assert.NoError(t, p.ValidateRequest([]string{"IGP-M", "IPCA"}, true))
}

func TestProcessMissingMonthIsNeutral(t *testing.T) {
	source := newFakeIndexSource()
	source.set("IGP-M", "2023-02", 1.0)
	// 2023-03 deliberately absent.
	source.set("IGP-M", "2023-04", 2.0)
	p := NewCorrectionProcessor(source)

	result, err := p.Process(1000, day(2023, time.January, 15), day(2023, time.April, 15), []string{"IGP-M"}, false)
	require.NoError(t, err)

	assert.InDelta(t, 1.01*1.02, result.Factor, 1e-12)
	assert.Equal(t, 3, result.MonthsUsed)
	assert.Equal(t, 1, result.MissingMonths)
}

func TestProcessNoDataAtAll(t *testing.T) {
	p := NewCorrectionProcessor(newFakeIndexSource())

	_, err := p.Process(1000, day(2023, time.January, 15), day(2023, time.April, 15), []string{"IGP-M"}, false)
	assert.ErrorIs(t, err, ErrNoIndexData)
}

func TestProcessAverageMode(t *testing.T) {
	source := newFakeIndexSource()
	source.set("IGP-M", "2023-02", 1.0)
	source.set("IPCA", "2023-02", 3.0)
	p := NewCorrectionProcessor(source)

	result, err := p.Process(1000, day(2023, time.January, 15), day(2023, time.February, 15), []string{"IGP-M", "IPCA"}, true)
	require.NoError(t, err)
	assert.InDelta(t, 1.02, result.Factor, 1e-12, "mean of 1.0 and 3.0 is 2.0 percent")
}

func TestProcessAverageSkipsIndexMissingTheMonth(t *testing.T) {
	source := newFakeIndexSource()
	source.set("IGP-M", "2023-02", 1.0)
	// IPCA has no value for 2023-02; the mean covers IGP-M alone.
	p := NewCorrectionProcessor(source)

	result, err := p.Process(1000, day(2023, time.January, 15), day(2023, time.February, 15), []string{"IGP-M", "IPCA"}, true)
	require.NoError(t, err)
	assert.InDelta(t, 1.01, result.Factor, 1e-12)
	assert.Equal(t, 0, result.MissingMonths)
}

func TestProcessTwoIndicesImpliesAverage(t *testing.T) {
	source := newFakeIndexSource()
	source.set("IGP-M", "2023-02", 1.0)
	source.set("IPCA", "2023-02", 3.0)
	p := NewCorrectionProcessor(source)

	// average flag unset, but two names still select average mode.
	result, err := p.Process(1000, day(2023, time.January, 15), day(2023, time.February, 15), []string{"IGP-M", "IPCA"}, false)
	require.NoError(t, err)
	assert.InDelta(t, 1.02, result.Factor, 1e-12)
}

func TestProcessRepeatedIndexEqualsSingle(t *testing.T) {
	source := newFakeIndexSource()
	source.set("IGP-M", "2023-02", 1.5)
	p := NewCorrectionProcessor(source)

	single, err := p.Process(1000, day(2023, time.January, 15), day(2023, time.February, 15), []string{"IGP-M"}, false)
	require.NoError(t, err)

	repeated, err := p.Process(1000, day(2023, time.January, 15), day(2023, time.February, 15), []string{"IGP-M", "IGP-M"}, false)
	require.NoError(t, err)

	assert.InDelta(t, single.Factor, repeated.Factor, 1e-12)
}

func TestProcessStatusThresholds(t *testing.T) {
	testCases := []struct {
		variation float64
		expected  string
	}{
		{149.9, "ok"},
		{150.0, "alert"},
		{199.9, "alert"},
		{200.0, "blocked"},
		{250.0, "blocked"},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("variation_%.1f", tc.variation), func(t *testing.T) {
			source := newFakeIndexSource()
			source.set("IGP-M", "2023-02", tc.variation)
			p := NewCorrectionProcessor(source)

			result, err := p.Process(1000, day(2023, time.January, 15), day(2023, time.February, 15), []string{"IGP-M"}, false)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, string(result.Status))
		})
	}
}

func TestProcessBlockedResultIsStillReturned(t *testing.T) {
	source := newFakeIndexSource()
	source.set("IGP-M", "2023-02", 250.0)
	p := NewCorrectionProcessor(source)

	result, err := p.Process(100, day(2023, time.January, 15), day(2023, time.February, 15), []string{"IGP-M"}, false)
	require.NoError(t, err)
	assert.InDelta(t, 350.0, result.CorrectedValue, 1e-9)
	assert.Equal(t, "blocked", string(result.Status))
}

func TestProcessCapsAtSixtyMonths(t *testing.T) {
	source := newFakeIndexSource()
	// Only the final month carries data; earlier months in the capped
	// window count as missing.
	source.set("IGP-M", "2020-01", 0.5)
	p := NewCorrectionProcessor(source)

	result, err := p.Process(1000, day(2010, time.January, 15), day(2020, time.January, 15), []string{"IGP-M"}, false)
	require.NoError(t, err)

	assert.True(t, result.Capped)
	assert.Equal(t, 60, result.MonthsUsed)
	assert.Equal(t, 59, result.MissingMonths)
	assert.InDelta(t, 1.005, result.Factor, 1e-12)
}

func TestProcessFactorMonotonicInReferenceDate(t *testing.T) {
	source := newFakeIndexSource()
	for month := time.February; month <= time.December; month++ {
		source.set("IGP-M", day(2023, month, 1).Format("2006-01"), float64(month)*0.1)
	}
	p := NewCorrectionProcessor(source)

	origin := day(2023, time.January, 15)
	previous := 0.0
	for month := time.February; month <= time.December; month++ {
		result, err := p.Process(1000, origin, day(2023, month, 15), []string{"IGP-M"}, false)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, result.Factor, previous)
		previous = result.Factor
	}
}

func TestProcessDegradedRefreshStillComputes(t *testing.T) {
	source := newFakeIndexSource()
	source.set("IGP-M", "2023-02", 1.0)
	source.ensureErr = errors.New("remote source down")
	p := NewCorrectionProcessor(source)

	result, err := p.Process(1000, day(2023, time.January, 15), day(2023, time.February, 15), []string{"IGP-M"}, false)
	require.NoError(t, err)
	assert.InDelta(t, 1.01, result.Factor, 1e-12)
}

func TestProcessEnsuresEachIndexOnce(t *testing.T) {
	source := newFakeIndexSource()
	source.set("IGP-M", "2023-02", 1.0)
	source.set("IPCA", "2023-02", 1.0)
	p := NewCorrectionProcessor(source)

	_, err := p.Process(1000, day(2023, time.January, 15), day(2023, time.February, 15), []string{"IGP-M", "IPCA", "IGP-M"}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, source.ensureCalls)
}
