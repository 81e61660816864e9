package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tenchu0314/kabu-predictor/internal/contracts"
)

const dirLayout = "2006-01-02"

// Writer renders one ranking run into a dated output directory: a plain-text
// summary of the top picks, the full snapshot as JSON, and every score as CSV.
type Writer struct {
	dir  string
	topN int
	log  zerolog.Logger
}

func NewWriter(dir string, topN int, log zerolog.Logger) *Writer {
	return &Writer{
		dir:  dir,
		topN: topN,
		log:  log.With().Str("component", "report").Logger(),
	}
}

// Write produces the report files for one run and returns the directory they
// were written to.
func (w *Writer) Write(asOf time.Time, records []contracts.ScoreRecord) (string, error) {
	dir := filepath.Join(w.dir, asOf.Format(dirLayout))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	if err := w.writeSummary(filepath.Join(dir, "report.txt"), asOf, records); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(dir, "rankings.json"), records); err != nil {
		return "", err
	}
	if err := writeCSV(filepath.Join(dir, "all_scores.csv"), records); err != nil {
		return "", err
	}

	w.log.Info().Str("dir", dir).Int("records", len(records)).Msg("report written")
	return dir, nil
}

func (w *Writer) writeSummary(path string, asOf time.Time, records []contracts.ScoreRecord) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Daily ranking  %s\n", asOf.Format(dirLayout))
	fmt.Fprintf(&b, "Scored instruments: %d\n\n", len(records))

	n := w.topN
	if n <= 0 || n > len(records) {
		n = len(records)
	}

	horizons := horizonsOf(records)
	fmt.Fprintf(&b, "%-4s %-10s %-20s %9s %6s %6s %6s", "Rank", "Ticker", "Name", "Composite", "Pred", "Fund", "Risk")
	for _, h := range horizons {
		fmt.Fprintf(&b, " %7s", fmt.Sprintf("P(%dd)", h))
	}
	b.WriteString("\n")

	for _, rec := range records[:n] {
		name := rec.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(&b, "%-4d %-10s %-20s %9.4f %6.3f %6.3f %6.3f",
			rec.Rank, rec.Ticker, truncate(name, 20), rec.CompositeScore,
			rec.WeightedScore, rec.FundamentalScore, rec.RiskAdjustedScore)
		for _, h := range horizons {
			if p, ok := rec.Probabilities[h]; ok {
				fmt.Fprintf(&b, " %7.3f", p)
			} else {
				fmt.Fprintf(&b, " %7s", "-")
			}
		}
		if rec.OverheatPenalty > 0 {
			fmt.Fprintf(&b, "  overheat %.2f", rec.OverheatPenalty)
		}
		b.WriteString("\n")
	}

	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func writeJSON(path string, records []contracts.ScoreRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode rankings: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func writeCSV(path string, records []contracts.ScoreRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create scores file: %w", err)
	}
	defer f.Close()

	horizons := horizonsOf(records)
	header := []string{"rank", "ticker", "code", "name", "composite_score",
		"weighted_score", "fundamental_score", "risk_adjusted_score", "overheat_penalty"}
	for _, h := range horizons {
		header = append(header, fmt.Sprintf("prob_%dd", h))
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{
			strconv.Itoa(rec.Rank),
			rec.Ticker,
			rec.Code,
			rec.Name,
			formatFloat(rec.CompositeScore),
			formatFloat(rec.WeightedScore),
			formatFloat(rec.FundamentalScore),
			formatFloat(rec.RiskAdjustedScore),
			formatFloat(rec.OverheatPenalty),
		}
		for _, h := range horizons {
			if p, ok := rec.Probabilities[h]; ok {
				row = append(row, formatFloat(p))
			} else {
				row = append(row, "")
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// horizonsOf collects every horizon seen across the records, sorted, so the
// report columns stay stable even when some instruments miss a model.
func horizonsOf(records []contracts.ScoreRecord) []int {
	seen := make(map[int]bool)
	for _, rec := range records {
		for h := range rec.Probabilities {
			seen[h] = true
		}
	}
	horizons := make([]int, 0, len(seen))
	for h := range seen {
		horizons = append(horizons, h)
	}
	sort.Ints(horizons)
	return horizons
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
