package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"github.com/username/corrigefolio/backend/src/logger"
	"github.com/username/corrigefolio/backend/src/models"
	"github.com/username/corrigefolio/backend/src/utils"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// sgsClientImpl fetches monthly series windows from the Banco Central SGS
// API. Requests are throttled so a burst of cache misses does not hammer the
// public endpoint.
type sgsClientImpl struct {
	httpClient http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// NewSGSClient creates the remote fetcher. The HTTP client carries a cookie
// jar and a hard timeout; on timeout the store degrades to cached data.
func NewSGSClient(baseURL string, timeout, minInterval time.Duration) IndexFetcher {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}

	return &sgsClientImpl{
		httpClient: http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// FetchRange queries one series for [start, end]. The response is untrusted:
// malformed or out-of-range entries are discarded per-entry instead of
// failing the whole fetch.
func (c *sgsClientImpl) FetchRange(seriesCode int, start, end time.Time) ([]PeriodValue, error) {
	if err := c.limiter.Wait(context.Background()); err != nil {
		return nil, fmt.Errorf("rate limiter interrupted: %w", err)
	}

	fetchURL := fmt.Sprintf("%s/dados/serie/bcdata.sgs.%d/dados?formato=json&dataInicial=%s&dataFinal=%s",
		c.baseURL, seriesCode, start.Format(utils.DefaultDateFormat), end.Format(utils.DefaultDateFormat))

	req, err := http.NewRequest(http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "corrigefolio-backend/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call SGS API for series %d: %w", seriesCode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("SGS API returned non-OK status %d for series %d. Body: %s", resp.StatusCode, seriesCode, string(bodyBytes))
	}

	var raw []models.SGSObservation
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode SGS response for series %d: %w", seriesCode, err)
	}

	startPeriod := utils.PeriodOf(start)
	endPeriod := utils.PeriodOf(end)

	values := make([]PeriodValue, 0, len(raw))
	for _, obs := range raw {
		obsDate, err := time.Parse(utils.DefaultDateFormat, obs.Date)
		if err != nil {
			logger.L.Warn("Discarding SGS entry with malformed date", "series", seriesCode, "date", obs.Date)
			continue
		}
		value, err := strconv.ParseFloat(strings.ReplaceAll(obs.Value, ",", "."), 64)
		if err != nil {
			logger.L.Warn("Discarding SGS entry with malformed value", "series", seriesCode, "date", obs.Date, "value", obs.Value)
			continue
		}
		period := utils.PeriodOf(obsDate)
		if period < startPeriod || period > endPeriod {
			logger.L.Warn("Discarding out-of-range SGS entry", "series", seriesCode, "period", period)
			continue
		}
		values = append(values, PeriodValue{Period: period, Value: value})
	}

	logger.L.Info("SGS fetch complete", "series", seriesCode, "from", startPeriod, "to", endPeriod, "observations", len(values))
	return values, nil
}
