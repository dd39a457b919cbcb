package strategy

import "trading-engine/internal/events"

// Strategy is a pluggable decision maker. It reacts to price updates and
// may request actions by returning intents.
type Strategy interface {
	// ID returns the unique instance ID
	ID() string
	// Name returns the human-readable name
	Name() string
	// OnTick processes a new price update
	OnTick(tick events.TickData) ([]events.Intent, error)
}

// OrderAware strategies also see order lifecycle changes.
type OrderAware interface {
	OnOrder(o events.OrderData) ([]events.Intent, error)
}

// TradeAware strategies also see fills.
type TradeAware interface {
	OnTrade(t events.TradeData) ([]events.Intent, error)
}

// TimerAware strategies receive the periodic timer tick.
type TimerAware interface {
	OnTimer(t events.TimerData) ([]events.Intent, error)
}

// Info describes a registered strategy.
type Info struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Paused bool   `json:"paused"`
}
