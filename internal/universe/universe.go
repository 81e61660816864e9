package universe

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/tenchu0314/kabu-predictor/pkg/httputil"
)

// Stock is one listed instrument from the exchange's listing page.
type Stock struct {
	Code      string
	Name      string
	Market    string
	MarketCap int64 // yen
}

// Ticker returns the quote-source symbol for the stock.
func (s Stock) Ticker() string {
	return s.Code + ".T"
}

// Builder maintains the tradable universe: it scrapes the exchange listing
// page, keeps stocks above the market-cap floor, and persists the result so
// later runs work offline.
type Builder struct {
	client  *httputil.Client
	listURL string
	floor   int64
	path    string
	log     zerolog.Logger
}

func NewBuilder(client *httputil.Client, listURL string, floor int64, dir string, log zerolog.Logger) *Builder {
	return &Builder{
		client:  client,
		listURL: listURL,
		floor:   floor,
		path:    filepath.Join(dir, "universe.csv"),
		log:     log.With().Str("component", "universe").Logger(),
	}
}

// Refresh scrapes the listing page, applies the market-cap filter and writes
// the universe file. On scrape failure it falls back to the previously saved
// universe when one exists.
func (b *Builder) Refresh(ctx context.Context) ([]Stock, error) {
	stocks, err := b.scrape(ctx)
	if err != nil {
		b.log.Warn().Err(err).Msg("listing scrape failed, trying saved universe")
		if saved, loadErr := b.Load(); loadErr == nil {
			return saved, nil
		}
		return nil, err
	}

	filtered := b.filter(stocks)
	if err := b.save(filtered); err != nil {
		return nil, err
	}

	b.log.Info().
		Int("listed", len(stocks)).
		Int("selected", len(filtered)).
		Int64("floor", b.floor).
		Msg("universe refreshed")
	return filtered, nil
}

func (b *Builder) scrape(ctx context.Context) ([]Stock, error) {
	resp, err := b.client.Get(ctx, b.listURL)
	if err != nil {
		return nil, fmt.Errorf("fetch listing page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing page: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}
	return parseListing(doc), nil
}

var codePattern = regexp.MustCompile(`^[0-9][0-9A-Z][0-9][0-9A-Z]$`)

// parseListing extracts stocks from the listing tables: any row whose first
// cell looks like a securities code. Cells are code, name, market segment,
// and optionally market cap.
func parseListing(doc *goquery.Document) []Stock {
	var stocks []Stock
	seen := make(map[string]bool)

	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}
		code := strings.TrimSpace(cells.Eq(0).Text())
		if !codePattern.MatchString(code) || seen[code] {
			return
		}

		stock := Stock{
			Code:   code,
			Name:   strings.TrimSpace(cells.Eq(1).Text()),
			Market: strings.TrimSpace(cells.Eq(2).Text()),
		}
		if cells.Length() > 3 {
			stock.MarketCap = parseYen(cells.Eq(3).Text())
		}
		seen[code] = true
		stocks = append(stocks, stock)
	})
	return stocks
}

var nonDigit = regexp.MustCompile(`[^0-9]`)

func parseYen(s string) int64 {
	digits := nonDigit.ReplaceAllString(s, "")
	if digits == "" {
		return 0
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// filter keeps stocks at or above the market-cap floor. Stocks with an
// unknown market cap are kept: the floor is a liquidity screen, not a
// data-completeness one.
func (b *Builder) filter(stocks []Stock) []Stock {
	var kept []Stock
	for _, s := range stocks {
		if s.MarketCap == 0 || s.MarketCap >= b.floor {
			kept = append(kept, s)
		}
	}
	return kept
}

func (b *Builder) save(stocks []Stock) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("create universe dir: %w", err)
	}
	f, err := os.Create(b.path)
	if err != nil {
		return fmt.Errorf("create universe file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"code", "name", "market", "market_cap"}); err != nil {
		return err
	}
	for _, s := range stocks {
		if err := w.Write([]string{s.Code, s.Name, s.Market, strconv.FormatInt(s.MarketCap, 10)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Load reads the persisted universe file.
func (b *Builder) Load() ([]Stock, error) {
	f, err := os.Open(b.path)
	if err != nil {
		return nil, fmt.Errorf("open universe file: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read universe file: %w", err)
	}

	var stocks []Stock
	for i, row := range rows {
		if i == 0 || len(row) < 4 {
			continue
		}
		mcap, _ := strconv.ParseInt(row[3], 10, 64)
		stocks = append(stocks, Stock{Code: row[0], Name: row[1], Market: row[2], MarketCap: mcap})
	}
	if len(stocks) == 0 {
		return nil, fmt.Errorf("universe file %s has no stocks", b.path)
	}
	return stocks, nil
}
