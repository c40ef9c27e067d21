package simulate

import (
	"github.com/shopspring/decimal"

	"lpsim/internal/model"
)

// Strategy names carried on results.
const (
	StrategyHistorical = "historical_average"
	StrategyExact      = "exact_block_delta"
)

// Result is the outcome of either simulator. Decimals encode as JSON strings.
type Result struct {
	Strategy         string          `json:"strategy"`
	Pool             model.Pool      `json:"pool"`
	Range            TickRange       `json:"range"`
	Holdings         Holdings        `json:"holdings"`
	UserLiquidity    decimal.Decimal `json:"user_liquidity"`
	CalculationPrice PriceChoice     `json:"calculation_price"`

	Fees24h decimal.Decimal `json:"fees_24h"`
	Monthly decimal.Decimal `json:"monthly"`
	Yearly  decimal.Decimal `json:"yearly"`
	FeeAPR  decimal.Decimal `json:"fee_apr"`

	Diagnostics *HistoricalDiagnostics `json:"diagnostics,omitempty"`
	Meta        *ExactMeta             `json:"meta,omitempty"`
	Warnings    []Warning              `json:"warnings"`
}

// ExactMeta describes the two blocks an exact result was computed between.
type ExactMeta struct {
	BlockA        uint64          `json:"block_a"`
	BlockB        uint64          `json:"block_b"`
	TimestampA    int64           `json:"timestamp_a"`
	TimestampB    int64           `json:"timestamp_b"`
	SecondsDelta  int64           `json:"seconds_delta"`
	DeltaInside0  string          `json:"delta_inside0_x128"`
	DeltaInside1  string          `json:"delta_inside1_x128"`
	FeesToken0    decimal.Decimal `json:"fees_token0"`
	FeesToken1    decimal.Decimal `json:"fees_token1"`
	FeesPeriodUSD decimal.Decimal `json:"fees_period_usd"`
}
