package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tenchu0314/kabu-predictor/internal/contracts"
	"github.com/tenchu0314/kabu-predictor/pkg/httputil"
)

// Fetcher downloads daily OHLCV bars from a Stooq-style CSV endpoint and
// refreshes the on-disk cache. Requests are rate limited by the shared HTTP
// client so the whole universe can be refreshed without tripping the source.
type Fetcher struct {
	client  *httputil.Client
	cache   *Cache
	baseURL string
	log     zerolog.Logger
}

func NewFetcher(client *httputil.Client, cache *Cache, baseURL string, log zerolog.Logger) *Fetcher {
	return &Fetcher{
		client:  client,
		cache:   cache,
		baseURL: baseURL,
		log:     log.With().Str("component", "fetcher").Logger(),
	}
}

// FetchAll refreshes every ticker's cache entry. Failures are per-instrument:
// logged, counted, and skipped.
func (f *Fetcher) FetchAll(ctx context.Context, tickers []string, from, to time.Time) (int, error) {
	fetched := 0
	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return fetched, err
		}
		panel, err := f.Fetch(ctx, ticker, from, to)
		if err != nil {
			f.log.Warn().Err(err).Str("ticker", ticker).Msg("fetch failed")
			continue
		}
		if err := f.cache.Save(panel); err != nil {
			f.log.Error().Err(err).Str("ticker", ticker).Msg("cache write failed")
			continue
		}
		fetched++
	}

	f.log.Info().Int("fetched", fetched).Int("requested", len(tickers)).Msg("refresh complete")
	return fetched, nil
}

// Fetch downloads one instrument's daily bars for a date range.
func (f *Fetcher) Fetch(ctx context.Context, ticker string, from, to time.Time) (*contracts.FeaturePanel, error) {
	endpoint, err := f.buildURL(ticker, from, to)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", ticker, resp.StatusCode)
	}
	return parseQuoteCSV(ticker, resp.Body)
}

func (f *Fetcher) buildURL(ticker string, from, to time.Time) (string, error) {
	u, err := url.Parse(f.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	q := u.Query()
	q.Set("s", strings.ToLower(strings.Replace(ticker, ".T", ".jp", 1)))
	q.Set("d1", from.Format("20060102"))
	q.Set("d2", to.Format("20060102"))
	q.Set("i", "d")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// parseQuoteCSV reads a Date,Open,High,Low,Close,Volume response body into a
// panel. Rows with invalid dates or closes are dropped.
func parseQuoteCSV(ticker string, body io.Reader) (*contracts.FeaturePanel, error) {
	r := csv.NewReader(body)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse quotes for %s: %w", ticker, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("quotes for %s: %w: empty response", ticker, contracts.ErrInsufficientData)
	}

	var dates []time.Time
	series := map[string][]float64{
		contracts.ColOpen:   nil,
		contracts.ColHigh:   nil,
		contracts.ColLow:    nil,
		contracts.ColClose:  nil,
		contracts.ColVolume: nil,
	}

	for _, row := range rows[1:] {
		if len(row) < 6 {
			continue
		}
		date, err := time.Parse(dateLayout, row[0])
		if err != nil {
			continue
		}
		closePrice, err := strconv.ParseFloat(row[4], 64)
		if err != nil || closePrice <= 0 {
			continue
		}

		dates = append(dates, date)
		series[contracts.ColOpen] = append(series[contracts.ColOpen], parseCell(row[1]))
		series[contracts.ColHigh] = append(series[contracts.ColHigh], parseCell(row[2]))
		series[contracts.ColLow] = append(series[contracts.ColLow], parseCell(row[3]))
		series[contracts.ColClose] = append(series[contracts.ColClose], closePrice)
		series[contracts.ColVolume] = append(series[contracts.ColVolume], parseCell(row[5]))
	}

	if len(dates) == 0 {
		return nil, fmt.Errorf("quotes for %s: %w: no valid rows", ticker, contracts.ErrInsufficientData)
	}

	panel := contracts.NewFeaturePanel(ticker, dates)
	for col, values := range series {
		if err := panel.AddColumn(col, values); err != nil {
			return nil, err
		}
	}
	if err := panel.Validate(); err != nil {
		return nil, fmt.Errorf("quotes for %s: %w", ticker, err)
	}
	return panel, nil
}
