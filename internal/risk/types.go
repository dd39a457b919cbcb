package risk

import (
	"errors"
	"math"
	"time"
)

// Alert codes.
const (
	CodeMaxNotional    = "MAX_NOTIONAL"
	CodeMaxOpenOrders  = "MAX_OPEN_ORDERS"
	CodeMaxDailyTrades = "MAX_DAILY_TRADES"
)

// Config defines risk thresholds. A zero limit disables that check.
type Config struct {
	MaxNotional    float64 `json:"max_notional"`     // per-symbol |net qty| * mark price
	MaxOpenOrders  int     `json:"max_open_orders"`  // per symbol
	MaxDailyTrades int     `json:"max_daily_trades"` // across symbols
}

// ErrInvalidConfig is returned for negative or non-finite limits.
var ErrInvalidConfig = errors.New("invalid risk config")

// Validate rejects limits no check could apply.
func (c Config) Validate() error {
	if c.MaxNotional < 0 || math.IsNaN(c.MaxNotional) || math.IsInf(c.MaxNotional, 0) || c.MaxOpenOrders < 0 || c.MaxDailyTrades < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() Config {
	return Config{
		MaxNotional:    100000,
		MaxOpenOrders:  20,
		MaxDailyTrades: 1000,
	}
}

// Metrics tracks current risk status.
type Metrics struct {
	Day           time.Time          `json:"day"`
	DailyTrades   int                `json:"daily_trades"`
	DailyNotional float64            `json:"daily_notional"`
	Exposure      map[string]float64 `json:"exposure"`
	OpenOrders    map[string]int     `json:"open_orders"`
	ActiveAlerts  []string           `json:"active_alerts"`
}
