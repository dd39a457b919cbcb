package bus

import (
	"context"
	"log"

	"trading-engine/internal/events"
)

// PriceConsumer reacts to price_update events.
type PriceConsumer interface {
	OnPriceUpdate(e events.Event)
}

// OrderConsumer reacts to order_update events.
type OrderConsumer interface {
	OnOrderUpdate(e events.Event)
}

// TradeConsumer reacts to trade_fill events.
type TradeConsumer interface {
	OnTradeFill(e events.Event)
}

// TimerConsumer receives the periodic timer_tick.
type TimerConsumer interface {
	OnTimerTick(e events.Event)
}

// Gateway is what intents need from the venue-facing collaborator.
type Gateway interface {
	SendOrder(ctx context.Context, req events.OrderRequest) (string, error)
	CancelOrder(ctx context.Context, req events.CancelRequest) error
}

// LogSink receives log events.
type LogSink interface {
	Log(d events.LogData)
}

// AlertSink receives risk-alert events.
type AlertSink interface {
	Alert(d events.RiskAlertData)
}

// Registry is the consumer set bound into an EventEngine. Strategy, Risk and
// Position may implement any subset of the consumer interfaces; capabilities
// are discovered once when the routing table is built.
type Registry struct {
	Gateway  Gateway
	Strategy any
	Risk     any
	Position any

	Logs   LogSink
	Alerts AlertSink
}

// stdSink prints through the standard logger when no sink is registered.
type stdSink struct{}

func (stdSink) Log(d events.LogData) {
	log.Printf("[LOG] %s", d.Msg)
}

func (stdSink) Alert(d events.RiskAlertData) {
	log.Printf("[RISK] %s", d.Msg)
}
