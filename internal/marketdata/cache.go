package marketdata

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tenchu0314/kabu-predictor/internal/contracts"
)

const dateLayout = "2006-01-02"

var csvHeader = []string{"date", "open", "high", "low", "close", "volume"}

// Cache stores one OHLCV CSV per instrument under a directory. Files are the
// contract with the data-acquisition side: fetchers append to them, loaders
// turn them into panels.
type Cache struct {
	dir string
	log zerolog.Logger
}

func NewCache(dir string, log zerolog.Logger) *Cache {
	return &Cache{
		dir: dir,
		log: log.With().Str("component", "cache").Logger(),
	}
}

func (c *Cache) path(ticker string) string {
	return filepath.Join(c.dir, strings.ReplaceAll(ticker, string(os.PathSeparator), "_")+".csv")
}

// Save writes a panel's OHLCV columns as CSV, replacing any previous file.
func (c *Cache) Save(panel *contracts.FeaturePanel) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	f, err := os.Create(c.path(panel.Ticker))
	if err != nil {
		return fmt.Errorf("create cache file for %s: %w", panel.Ticker, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for i := 0; i < panel.Len(); i++ {
		row := []string{panel.Dates[i].Format(dateLayout)}
		for _, col := range csvHeader[1:] {
			values, ok := panel.Data[col]
			if !ok || math.IsNaN(values[i]) {
				row = append(row, "")
				continue
			}
			row = append(row, strconv.FormatFloat(values[i], 'f', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Load reads one instrument's cached panel. Rows with unparsable dates are
// rejected; empty numeric cells load as NaN.
func (c *Cache) Load(ticker string) (*contracts.FeaturePanel, error) {
	f, err := os.Open(c.path(ticker))
	if err != nil {
		return nil, fmt.Errorf("open cache for %s: %w", ticker, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read cache for %s: %w", ticker, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("cache for %s: %w: no data rows", ticker, contracts.ErrInsufficientData)
	}

	var dates []time.Time
	columns := make(map[string][]float64, len(csvHeader)-1)
	for _, col := range csvHeader[1:] {
		columns[col] = nil
	}

	for lineNo, row := range rows[1:] {
		if len(row) != len(csvHeader) {
			return nil, fmt.Errorf("cache for %s: row %d has %d fields", ticker, lineNo+2, len(row))
		}
		date, err := time.Parse(dateLayout, row[0])
		if err != nil {
			return nil, fmt.Errorf("cache for %s: row %d: %w", ticker, lineNo+2, err)
		}
		dates = append(dates, date)
		for i, col := range csvHeader[1:] {
			columns[col] = append(columns[col], parseCell(row[i+1]))
		}
	}

	panel := contracts.NewFeaturePanel(ticker, dates)
	for _, col := range csvHeader[1:] {
		if err := panel.AddColumn(col, columns[col]); err != nil {
			return nil, err
		}
	}
	if err := panel.Validate(); err != nil {
		return nil, err
	}
	return panel, nil
}

// LoadAll loads every cached instrument. Corrupt files are logged and
// skipped so one bad cache entry cannot block a run.
func (c *Cache) LoadAll() (map[string]*contracts.FeaturePanel, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("read cache dir: %w", err)
	}

	panels := make(map[string]*contracts.FeaturePanel)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		ticker := strings.TrimSuffix(entry.Name(), ".csv")
		panel, err := c.Load(ticker)
		if err != nil {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("cache entry skipped")
			continue
		}
		panels[ticker] = panel
	}

	c.log.Info().Int("instruments", len(panels)).Str("dir", c.dir).Msg("cache loaded")
	return panels, nil
}

func parseCell(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
