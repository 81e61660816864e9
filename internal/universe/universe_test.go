package universe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/tenchu0314/kabu-predictor/pkg/httputil"
)

const listingHTML = `
<html><body>
<table>
<tr><th>コード</th><th>銘柄名</th><th>市場</th><th>時価総額</th></tr>
<tr><td>7203</td><td>トヨタ自動車</td><td>プライム</td><td>45,000,000,000,000</td></tr>
<tr><td>6758</td><td>ソニーグループ</td><td>プライム</td><td>15,000,000,000,000</td></tr>
<tr><td>9984</td><td>ソフトバンクグループ</td><td>プライム</td><td>50,000,000,000</td></tr>
<tr><td>285A</td><td>キオクシア</td><td>プライム</td><td></td></tr>
<tr><td>not-a-code</td><td>junk</td><td>junk</td><td>junk</td></tr>
</table>
</body></html>`

func TestParseListing(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listingHTML))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}

	stocks := parseListing(doc)
	if len(stocks) != 4 {
		t.Fatalf("parsed %d stocks, want 4", len(stocks))
	}
	if stocks[0].Code != "7203" || stocks[0].Name != "トヨタ自動車" {
		t.Errorf("first stock = %+v", stocks[0])
	}
	if stocks[0].MarketCap != 45_000_000_000_000 {
		t.Errorf("market cap = %d, want 45 trillion", stocks[0].MarketCap)
	}
	if stocks[0].Ticker() != "7203.T" {
		t.Errorf("ticker = %s, want 7203.T", stocks[0].Ticker())
	}
	// Alphanumeric codes are valid.
	if stocks[3].Code != "285A" {
		t.Errorf("alphanumeric code parsed as %s", stocks[3].Code)
	}
}

func TestRefresh_FiltersAndPersists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingHTML))
	}))
	defer server.Close()

	dir := t.TempDir()
	builder := NewBuilder(httputil.New(0, zerolog.Nop()), server.URL, 100_000_000_000, dir, zerolog.Nop())

	stocks, err := builder.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	// 9984 (50B yen) is under the 100B floor; 285A (unknown cap) is kept.
	if len(stocks) != 3 {
		t.Fatalf("universe size = %d, want 3", len(stocks))
	}
	for _, s := range stocks {
		if s.Code == "9984" {
			t.Error("stock under the market-cap floor survived the filter")
		}
	}

	// Saved universe loads back identically.
	loaded, err := builder.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != len(stocks) {
		t.Errorf("loaded %d stocks, want %d", len(loaded), len(stocks))
	}
}

func TestRefresh_FallsBackToSavedUniverse(t *testing.T) {
	dir := t.TempDir()

	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingHTML))
	}))
	builder := NewBuilder(httputil.New(0, zerolog.Nop()).DisableRetry(), up.URL, 0, dir, zerolog.Nop())
	if _, err := builder.Refresh(context.Background()); err != nil {
		t.Fatalf("seed Refresh: %v", err)
	}
	up.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer down.Close()

	failing := NewBuilder(httputil.New(0, zerolog.Nop()).DisableRetry(), down.URL, 0, dir, zerolog.Nop())
	stocks, err := failing.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh with fallback: %v", err)
	}
	if len(stocks) != 4 {
		t.Errorf("fallback universe size = %d, want 4", len(stocks))
	}
}
