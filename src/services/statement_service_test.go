package services

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/corrigefolio/backend/src/database"
	"github.com/username/corrigefolio/backend/src/logger"
	"github.com/username/corrigefolio/backend/src/parsers"
	"github.com/username/corrigefolio/backend/src/processors"
)

const testStatementText = `Cliente: 4452 - Maria Aparecida Silva
Venda: 1021  15/03/2021  3.000,00

A.1/3   15/04/2021   1.000,00
A.2/3   15/05/2021   1.000,00
A.3/3   15/09/2021   1.000,00

A.1/3   15/04/2021   1.020,00   20/04/2021
`

// fakeVariations satisfies the calculator's index source without a remote.
type fakeVariations struct {
	values      map[string]float64
	ensureCalls int
}

func (f *fakeVariations) AvailableIndices() map[string]string {
	return map[string]string{"IGP-M": "IGP-M (FGV)", "IPCA": "IPCA (IBGE)", "INPC": "INPC (IBGE)"}
}

func (f *fakeVariations) EnsureRange(indexName, startPeriod, endPeriod string) error {
	f.ensureCalls++
	return nil
}

func (f *fakeVariations) GetValue(indexName, period string) (float64, bool) {
	value, ok := f.values[period]
	return value, ok
}

func newTestStatementService(t *testing.T, variations *fakeVariations) StatementService {
	t.Helper()
	logger.InitLogger("error")
	database.InitDB(filepath.Join(t.TempDir(), "corrigefolio_test.db"))

	processor := processors.NewCorrectionProcessor(variations)
	return NewStatementService(parsers.NewStatementParser(), processor, cache.New(cache.NoExpiration, 0))
}

func TestProcessUploadPersistsExtraction(t *testing.T) {
	svc := newTestStatementService(t, &fakeVariations{})

	outcome, err := svc.ProcessUpload(strings.NewReader(testStatementText), "statement.txt")
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Positive(t, outcome.DocumentID)
	assert.Equal(t, "4452", outcome.Extraction.Client.Code)
	assert.Len(t, outcome.Extraction.Installments, 3)
	assert.Empty(t, outcome.Extraction.Warnings)

	documents, err := svc.GetDocuments()
	require.NoError(t, err)
	require.Len(t, documents, 1)
	assert.Equal(t, "statement.txt", documents[0].Filename)
	assert.Equal(t, "Maria Aparecida Silva", documents[0].ClientName)
	assert.Equal(t, 3, documents[0].InstallmentCount)
	assert.False(t, documents[0].UploadedAt.IsZero())
}

func TestGetDocumentRoundTrip(t *testing.T) {
	svc := newTestStatementService(t, &fakeVariations{})

	outcome, err := svc.ProcessUpload(strings.NewReader(testStatementText), "statement.txt")
	require.NoError(t, err)

	detail, err := svc.GetDocument(outcome.DocumentID)
	require.NoError(t, err)

	assert.Equal(t, "1021", detail.Sale.Number)
	assert.Equal(t, time.Date(2021, time.March, 15, 0, 0, 0, 0, time.UTC), detail.Sale.Date)
	assert.InDelta(t, 3000.0, detail.Sale.Amount, 1e-9)

	require.Len(t, detail.Installments, 3)
	first := detail.Installments[0]
	assert.Equal(t, "A.1/3", first.Code)
	assert.Equal(t, time.Date(2021, time.April, 15, 0, 0, 0, 0, time.UTC), first.DueDate)
	require.NotNil(t, first.PaidDate)
	assert.Equal(t, time.Date(2021, time.April, 20, 0, 0, 0, 0, time.UTC), *first.PaidDate)
	assert.InDelta(t, 1020.0, first.PaidAmount, 1e-9)

	assert.Nil(t, detail.Installments[1].PaidDate)
}

func TestGetDocumentNotFound(t *testing.T) {
	svc := newTestStatementService(t, &fakeVariations{})
	_, err := svc.GetDocument(42)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestCorrectDocument(t *testing.T) {
	variations := &fakeVariations{values: map[string]float64{
		"2021-05": 1.0,
		"2021-06": 2.0,
	}}
	svc := newTestStatementService(t, variations)

	outcome, err := svc.ProcessUpload(strings.NewReader(testStatementText), "statement.txt")
	require.NoError(t, err)

	reference := time.Date(2021, time.June, 15, 0, 0, 0, 0, time.UTC)
	records, err := svc.CorrectDocument(outcome.DocumentID, reference, []string{"IGP-M"}, false)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Due 15/04/2021 corrected to 15/06/2021 spans May and June.
	first := records[0]
	assert.Equal(t, "A.1/3", first.Code)
	assert.Empty(t, first.Error)
	assert.InDelta(t, 1.01*1.02, first.Factor, 1e-12)
	assert.InDelta(t, 1000*1.01*1.02, first.CorrectedValue, 0.005)
	assert.Equal(t, 2, first.MonthsUsed)

	// Due 15/05/2021 spans June only.
	second := records[1]
	assert.Empty(t, second.Error)
	assert.InDelta(t, 1.02, second.Factor, 1e-12)

	// Due 15/09/2021 is after the reference date; the failure stays on the
	// record and the batch succeeds.
	third := records[2]
	assert.NotEmpty(t, third.Error)
	assert.Zero(t, third.CorrectedValue)
}

func TestCorrectDocumentUsesReportCache(t *testing.T) {
	variations := &fakeVariations{values: map[string]float64{"2021-05": 1.0, "2021-06": 2.0}}
	svc := newTestStatementService(t, variations)

	outcome, err := svc.ProcessUpload(strings.NewReader(testStatementText), "statement.txt")
	require.NoError(t, err)

	reference := time.Date(2021, time.June, 15, 0, 0, 0, 0, time.UTC)
	first, err := svc.CorrectDocument(outcome.DocumentID, reference, []string{"IGP-M"}, false)
	require.NoError(t, err)
	callsAfterFirst := variations.ensureCalls

	second, err := svc.CorrectDocument(outcome.DocumentID, reference, []string{"IGP-M"}, false)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, callsAfterFirst, variations.ensureCalls, "cached report must not recompute")

	svc.InvalidateReports()
	_, err = svc.CorrectDocument(outcome.DocumentID, reference, []string{"IGP-M"}, false)
	require.NoError(t, err)
	assert.Greater(t, variations.ensureCalls, callsAfterFirst)
}

func TestCorrectDocumentUnknownDocument(t *testing.T) {
	svc := newTestStatementService(t, &fakeVariations{})

	_, err := svc.CorrectDocument(42, time.Now(), []string{"IGP-M"}, false)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestCorrectDocumentRejectsBadParameters(t *testing.T) {
	svc := newTestStatementService(t, &fakeVariations{})

	_, err := svc.CorrectDocument(1, time.Now(), nil, false)
	assert.ErrorIs(t, err, processors.ErrNoIndices)

	_, err = svc.CorrectDocument(1, time.Now(), []string{"IGP-M"}, true)
	assert.ErrorIs(t, err, processors.ErrInsufficientIndices)
}
