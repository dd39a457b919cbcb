package events

import (
	"errors"
	"fmt"
	"time"
)

// EventType enumerates the facts that travel over the bus.
type EventType string

const (
	EventPriceUpdate EventType = "price_update"
	EventOrderUpdate EventType = "order_update"
	EventTradeFill   EventType = "trade_fill"
	EventLog         EventType = "log"
	EventRiskAlert   EventType = "risk_alert"
	EventTimerTick   EventType = "timer_tick"
)

// EventTypes lists every known event type in dispatch-table order.
var EventTypes = []EventType{
	EventPriceUpdate,
	EventOrderUpdate,
	EventTradeFill,
	EventLog,
	EventRiskAlert,
	EventTimerTick,
}

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

var ErrPayloadMismatch = errors.New("payload does not match event type")

// Payload is implemented only by the payload variants in this package.
type Payload interface {
	eventType() EventType
}

func (TickData) eventType() EventType      { return EventPriceUpdate }
func (OrderData) eventType() EventType     { return EventOrderUpdate }
func (TradeData) eventType() EventType     { return EventTradeFill }
func (LogData) eventType() EventType       { return EventLog }
func (RiskAlertData) eventType() EventType { return EventRiskAlert }
func (TimerData) eventType() EventType     { return EventTimerTick }

// Event is an immutable fact published on the bus.
type Event struct {
	Type EventType `json:"type"`
	Time time.Time `json:"ts"`
	Data Payload   `json:"data"`
}

// New builds an event after checking that the payload variant matches t.
func New(t EventType, data Payload) (Event, error) {
	if data == nil {
		return Event{}, fmt.Errorf("%w: nil payload for %s", ErrPayloadMismatch, t)
	}
	if data.eventType() != t {
		return Event{}, fmt.Errorf("%w: %T for %s", ErrPayloadMismatch, data, t)
	}
	return Event{Type: t, Time: time.Now(), Data: data}, nil
}

// Of builds an event whose type is derived from the payload variant.
func Of(data Payload) Event {
	return Event{Type: data.eventType(), Time: time.Now(), Data: data}
}

func NewTickEvent(d TickData) Event           { return Of(d) }
func NewOrderEvent(d OrderData) Event         { return Of(d) }
func NewTradeEvent(d TradeData) Event         { return Of(d) }
func NewLogEvent(d LogData) Event             { return Of(d) }
func NewRiskAlertEvent(d RiskAlertData) Event { return Of(d) }
func NewTimerEvent(d TimerData) Event         { return Of(d) }

// Tick returns the price update payload when e is a price_update event.
func (e Event) Tick() (TickData, bool) {
	if e.Type != EventPriceUpdate {
		return TickData{}, false
	}
	d, ok := e.Data.(TickData)
	return d, ok
}

// Order returns the order payload when e is an order_update event.
func (e Event) Order() (OrderData, bool) {
	if e.Type != EventOrderUpdate {
		return OrderData{}, false
	}
	d, ok := e.Data.(OrderData)
	return d, ok
}

// Trade returns the fill payload when e is a trade_fill event.
func (e Event) Trade() (TradeData, bool) {
	if e.Type != EventTradeFill {
		return TradeData{}, false
	}
	d, ok := e.Data.(TradeData)
	return d, ok
}

// Log returns the log payload when e is a log event.
func (e Event) Log() (LogData, bool) {
	if e.Type != EventLog {
		return LogData{}, false
	}
	d, ok := e.Data.(LogData)
	return d, ok
}

// RiskAlert returns the alert payload when e is a risk_alert event.
func (e Event) RiskAlert() (RiskAlertData, bool) {
	if e.Type != EventRiskAlert {
		return RiskAlertData{}, false
	}
	d, ok := e.Data.(RiskAlertData)
	return d, ok
}

// Timer returns the timer payload when e is a timer_tick event.
func (e Event) Timer() (TimerData, bool) {
	if e.Type != EventTimerTick {
		return TimerData{}, false
	}
	d, ok := e.Data.(TimerData)
	return d, ok
}

// IntentType enumerates actions that callers may request.
type IntentType string

const (
	IntentPlaceOrder  IntentType = "place_order"
	IntentCancelOrder IntentType = "cancel_order"
	IntentLog         IntentType = "log"
)

// Intent is a requested action. Unlike an Event it is executed synchronously
// by the caller and never queued.
type Intent struct {
	Type IntentType
	Data any
}

func PlaceOrder(req OrderRequest) Intent   { return Intent{Type: IntentPlaceOrder, Data: req} }
func CancelOrder(req CancelRequest) Intent { return Intent{Type: IntentCancelOrder, Data: req} }
func LogIntent(d LogData) Intent           { return Intent{Type: IntentLog, Data: d} }
