package model

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// HourlyFee is the pool-wide fee income of one hour, in USD.
type HourlyFee struct {
	Hour    time.Time
	FeesUSD decimal.Decimal
}

// HourlyTick is the pool tick recorded by the most recent block of an hour.
// Liquidity is nil when the hour carries no recorded in-range liquidity.
type HourlyTick struct {
	Hour      time.Time
	Tick      int32
	Liquidity *big.Int
}
