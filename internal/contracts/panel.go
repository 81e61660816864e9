package contracts

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Raw price columns. Present in every panel, excluded from model input.
const (
	ColOpen   = "open"
	ColHigh   = "high"
	ColLow    = "low"
	ColClose  = "close"
	ColVolume = "volume"
)

// Calendar columns treated as categorical and excluded from model input.
const (
	ColDayOfWeek = "day_of_week"
	ColMonth     = "month"
)

const (
	targetPrefix       = "target_"
	futureReturnPrefix = "future_return_"
)

// TargetColumn returns the binary label column name for a horizon.
func TargetColumn(horizon int) string {
	return fmt.Sprintf("%s%dd", targetPrefix, horizon)
}

// FutureReturnColumn returns the signed forward-return column name for a horizon.
func FutureReturnColumn(horizon int) string {
	return fmt.Sprintf("%s%dd", futureReturnPrefix, horizon)
}

// FeaturePanel is a per-instrument, date-indexed matrix of numeric columns:
// OHLCV, computed indicators, and (after label generation) target columns.
// Dates are strictly increasing and unique; every column has exactly one value
// per date, NaN where undefined.
type FeaturePanel struct {
	Ticker  string
	Dates   []time.Time
	Columns []string // column order, as added
	Data    map[string][]float64
}

// NewFeaturePanel creates an empty panel over the given date index.
func NewFeaturePanel(ticker string, dates []time.Time) *FeaturePanel {
	return &FeaturePanel{
		Ticker: ticker,
		Dates:  dates,
		Data:   make(map[string][]float64),
	}
}

// Len returns the number of rows (dates).
func (p *FeaturePanel) Len() int {
	return len(p.Dates)
}

// AddColumn adds or replaces a column. The value slice length must match the
// date index.
func (p *FeaturePanel) AddColumn(name string, values []float64) error {
	if len(values) != len(p.Dates) {
		return fmt.Errorf("column %s: %d values for %d dates", name, len(values), len(p.Dates))
	}
	if _, exists := p.Data[name]; !exists {
		p.Columns = append(p.Columns, name)
	}
	p.Data[name] = values
	return nil
}

// Column returns a column by name.
func (p *FeaturePanel) Column(name string) ([]float64, error) {
	values, ok := p.Data[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}
	return values, nil
}

// HasColumn reports whether the panel contains a column.
func (p *FeaturePanel) HasColumn(name string) bool {
	_, ok := p.Data[name]
	return ok
}

// FeatureColumns returns the model-input column names in panel order,
// excluding raw OHLCV, calendar categoricals, and label columns.
func (p *FeaturePanel) FeatureColumns() []string {
	var features []string
	for _, name := range p.Columns {
		if isExcludedColumn(name) {
			continue
		}
		features = append(features, name)
	}
	return features
}

func isExcludedColumn(name string) bool {
	if strings.HasPrefix(name, targetPrefix) || strings.HasPrefix(name, futureReturnPrefix) {
		return true
	}
	switch name {
	case ColOpen, ColHigh, ColLow, ColClose, ColVolume, ColDayOfWeek, ColMonth:
		return true
	}
	return false
}

// RowVector extracts one row restricted to the given columns, in that order.
// Missing columns yield NaN.
func (p *FeaturePanel) RowVector(columns []string, row int) []float64 {
	vector := make([]float64, len(columns))
	for i, name := range columns {
		values, ok := p.Data[name]
		if !ok {
			vector[i] = math.NaN()
			continue
		}
		vector[i] = values[row]
	}
	return vector
}

// Validate checks the panel invariants: non-empty strictly increasing unique
// dates and consistent column lengths.
func (p *FeaturePanel) Validate() error {
	if len(p.Dates) == 0 {
		return fmt.Errorf("panel %s: %w: no dates", p.Ticker, ErrInsufficientData)
	}
	for i := 1; i < len(p.Dates); i++ {
		if !p.Dates[i].After(p.Dates[i-1]) {
			return fmt.Errorf("panel %s: dates not strictly increasing at index %d", p.Ticker, i)
		}
	}
	for name, values := range p.Data {
		if len(values) != len(p.Dates) {
			return fmt.Errorf("panel %s: column %s has %d values for %d dates", p.Ticker, name, len(values), len(p.Dates))
		}
	}
	return nil
}
