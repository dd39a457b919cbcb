package events

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidPayload marks payload values that no consumer can apply.
var ErrInvalidPayload = errors.New("invalid payload")

// NormalizeSymbol returns the canonical upper-case form used as a map key
// by every consumer.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Side of an order or fill.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns SELL for BUY and BUY for SELL.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		return ""
	}
}

// OrderStatus normalizes order lifecycle states.
type OrderStatus string

const (
	StatusNew      OrderStatus = "NEW"
	StatusPartial  OrderStatus = "PARTIALLY_FILLED"
	StatusFilled   OrderStatus = "FILLED"
	StatusCanceled OrderStatus = "CANCELED"
	StatusRejected OrderStatus = "REJECTED"
	StatusExpired  OrderStatus = "EXPIRED"
)

// Terminal reports whether no further updates are expected for the order.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// Log levels and alert severities.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"

	SeverityWarn     = "WARN"
	SeverityCritical = "CRITICAL"
)

// TickData is a market data snapshot for one symbol.
type TickData struct {
	Symbol    string    `json:"symbol"`
	LastPrice float64   `json:"last_price"`
	BidPrice  float64   `json:"bid_price,omitempty"`
	AskPrice  float64   `json:"ask_price,omitempty"`
	Volume    float64   `json:"volume,omitempty"`
	Time      time.Time `json:"ts"`
}

// SymbolState is the aggregated view of a traded symbol kept by the gateway.
type SymbolState struct {
	Symbol    string    `json:"symbol"`
	LastPrice float64   `json:"last_price"`
	BidPrice  float64   `json:"bid_price,omitempty"`
	AskPrice  float64   `json:"ask_price,omitempty"`
	Volume24h float64   `json:"volume_24h,omitempty"`
	Time      time.Time `json:"ts"`
}

// OrderRequest asks the gateway to place a new order.
type OrderRequest struct {
	Symbol        string         `json:"symbol"`
	Side          Side           `json:"side"`
	Qty           float64        `json:"qty"`
	Price         float64        `json:"price"`
	Type          string         `json:"type"` // LIMIT or MARKET
	ClientOrderID string         `json:"client_order_id,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// CancelRequest asks the gateway to cancel an existing order.
type CancelRequest struct {
	OrderID       string `json:"order_id"`
	Symbol        string `json:"symbol,omitempty"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

// OrderData describes an order lifecycle change.
type OrderData struct {
	OrderID       string      `json:"order_id"`
	ClientOrderID string      `json:"client_order_id,omitempty"`
	Symbol        string      `json:"symbol"`
	Side          Side        `json:"side"`
	Qty           float64     `json:"qty"`
	FilledQty     float64     `json:"filled_qty"`
	Price         float64     `json:"price"`
	Status        OrderStatus `json:"status"`
	Time          time.Time   `json:"ts"`
}

// TradeData is an executed fill.
type TradeData struct {
	TradeID string    `json:"trade_id"`
	OrderID string    `json:"order_id"`
	Symbol  string    `json:"symbol"`
	Side    Side      `json:"side"`
	Qty     float64   `json:"qty"`
	Price   float64   `json:"price"`
	Fee     float64   `json:"fee"`
	Time    time.Time `json:"ts"`
}

// LogData is a structured log line routed to the log sink.
type LogData struct {
	Msg    string         `json:"msg"`
	Level  string         `json:"level"`
	Source string         `json:"source,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
	Time   time.Time      `json:"ts"`
}

// RiskAlertData is routed to the alert sink.
type RiskAlertData struct {
	Msg      string    `json:"msg"`
	Severity string    `json:"severity"`
	Code     string    `json:"code,omitempty"`
	Source   string    `json:"source,omitempty"`
	Time     time.Time `json:"ts"`
}

// TimerData accompanies a timer tick.
type TimerData struct {
	Time time.Time `json:"ts"`
	Seq  uint64    `json:"seq"`
}

// Validate rejects fills that would corrupt position or exposure state.
func (d TradeData) Validate() error {
	if NormalizeSymbol(d.Symbol) == "" {
		return fmt.Errorf("%w: trade symbol required", ErrInvalidPayload)
	}
	if d.Side != SideBuy && d.Side != SideSell {
		return fmt.Errorf("%w: trade side %q", ErrInvalidPayload, d.Side)
	}
	if !positive(d.Qty) || !positive(d.Price) {
		return fmt.Errorf("%w: trade qty %v price %v", ErrInvalidPayload, d.Qty, d.Price)
	}
	if math.IsNaN(d.Fee) || math.IsInf(d.Fee, 0) {
		return fmt.Errorf("%w: trade fee %v", ErrInvalidPayload, d.Fee)
	}
	return nil
}

// Validate checks the fields an order update is keyed and counted by.
func (d OrderData) Validate() error {
	if d.OrderID == "" {
		return fmt.Errorf("%w: order id required", ErrInvalidPayload)
	}
	if NormalizeSymbol(d.Symbol) == "" {
		return fmt.Errorf("%w: order symbol required", ErrInvalidPayload)
	}
	if d.Qty < 0 || d.FilledQty < 0 || d.Price < 0 ||
		math.IsNaN(d.Qty) || math.IsNaN(d.FilledQty) || math.IsNaN(d.Price) {
		return fmt.Errorf("%w: order qty %v filled %v price %v", ErrInvalidPayload, d.Qty, d.FilledQty, d.Price)
	}
	return nil
}

// positive is false for zero, negatives, NaN and Inf.
func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
