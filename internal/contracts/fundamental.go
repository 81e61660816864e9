package contracts

// FundamentalRatios holds normalized fundamental ratios for one instrument.
// Every field is optional: nil means the upstream provider had no value, and
// the scorer skips that ratio rather than guessing.
type FundamentalRatios struct {
	Ticker string `json:"ticker"`

	// Valuation
	PERTrailing   *float64 `json:"per_trailing,omitempty"`
	PERForward    *float64 `json:"per_forward,omitempty"`
	PBR           *float64 `json:"pbr,omitempty"`
	DividendYield *float64 `json:"dividend_yield,omitempty"`

	// Profitability
	ROE             *float64 `json:"roe,omitempty"`
	ROA             *float64 `json:"roa,omitempty"`
	OperatingMargin *float64 `json:"operating_margin,omitempty"`
	ProfitMargin    *float64 `json:"profit_margin,omitempty"`

	// Growth
	RevenueGrowth  *float64 `json:"revenue_growth,omitempty"`
	EarningsGrowth *float64 `json:"earnings_growth,omitempty"`

	// Balance sheet
	DebtToEquity *float64 `json:"debt_to_equity,omitempty"`
	CurrentRatio *float64 `json:"current_ratio,omitempty"`
	EquityRatio  *float64 `json:"equity_ratio,omitempty"`

	// Cash flow
	FCFMargin    *float64 `json:"fcf_margin,omitempty"`
	NetCashRatio *float64 `json:"net_cash_ratio,omitempty"`

	// Risk
	Beta *float64 `json:"beta,omitempty"`
}

// Float returns a pointer to v, for building ratio records.
func Float(v float64) *float64 {
	return &v
}
