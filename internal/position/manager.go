// Package position tracks open orders and net positions from the order and
// fill events flowing over the bus.
package position

import (
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"trading-engine/internal/events"
	"trading-engine/pkg/i18n"
)

const qtyEpsilon = 1e-12

// Position is the net exposure in one symbol. Qty is signed: positive long,
// negative short.
type Position struct {
	Symbol      string    `json:"symbol"`
	Qty         float64   `json:"qty"`
	AvgPrice    float64   `json:"avg_price"`
	RealizedPnL float64   `json:"realized_pnl"`
	Fees        float64   `json:"fees"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Manager keeps an in-memory view of positions and open orders.
type Manager struct {
	mu        sync.RWMutex
	positions map[string]Position
	open      map[string]events.OrderData
	realized  float64
}

func NewManager() *Manager {
	return &Manager{
		positions: make(map[string]Position),
		open:      make(map[string]events.OrderData),
	}
}

// OnOrderUpdate records live orders and forgets terminal ones.
func (m *Manager) OnOrderUpdate(e events.Event) {
	o, ok := e.Order()
	if !ok || o.OrderID == "" {
		return
	}
	o.Symbol = events.NormalizeSymbol(o.Symbol)
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.Status.Terminal() {
		delete(m.open, o.OrderID)
		return
	}
	m.open[o.OrderID] = o
}

// OnTradeFill applies the fill to the symbol's position.
func (m *Manager) OnTradeFill(e events.Event) {
	t, ok := e.Trade()
	if !ok {
		return
	}
	m.RecordFill(t.Symbol, t.Side, t.Qty, t.Price, t.Fee)
}

// RecordFill adjusts the position for one fill and returns the new state.
// Fills against the current direction realize PnL on the closing quantity
// at the running average price. Fills with a non-positive qty or price are
// ignored and the current position is returned unchanged.
func (m *Manager) RecordFill(symbol string, side events.Side, qty, price, fee float64) Position {
	symbol = events.NormalizeSymbol(symbol)
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.positions[symbol]
	p.Symbol = symbol
	if err := (events.TradeData{Symbol: symbol, Side: side, Qty: qty, Price: price, Fee: fee}).Validate(); err != nil {
		log.Printf(i18n.Get("FillIgnored"), symbol, err)
		return p
	}

	signed := qty
	switch side {
	case events.SideBuy:
	case events.SideSell:
		signed = -qty
	default:
		return p
	}

	oldQty := p.Qty
	switch {
	case oldQty == 0 || sameSign(oldQty, signed):
		newQty := oldQty + signed
		p.AvgPrice = (p.AvgPrice*math.Abs(oldQty) + price*qty) / math.Abs(newQty)
		p.Qty = newQty
		log.Printf(i18n.Get("PositionOpened"), symbol, side, qty, price)

	default:
		closing := math.Min(math.Abs(oldQty), qty)
		pnl := closing * (price - p.AvgPrice)
		if oldQty < 0 {
			pnl = -pnl
		}
		p.RealizedPnL += pnl
		m.realized += pnl
		log.Printf(i18n.Get("RealizedPnL"), pnl, symbol, side, closing, price)

		p.Qty = oldQty + signed
		switch {
		case math.Abs(p.Qty) < qtyEpsilon:
			p.Qty = 0
			p.AvgPrice = 0
			log.Printf(i18n.Get("PositionClosed"), symbol)
		case !sameSign(p.Qty, oldQty):
			// Flipped through flat: the remainder opens at the fill price.
			p.AvgPrice = price
		}
	}

	p.Fees += fee
	p.UpdatedAt = time.Now()
	m.positions[symbol] = p
	return p
}

// Position returns the latest snapshot for a symbol.
func (m *Manager) Position(symbol string) Position {
	symbol = events.NormalizeSymbol(symbol)
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := m.positions[symbol]
	p.Symbol = symbol
	return p
}

// Positions returns a snapshot of all non-flat positions ordered by symbol.
func (m *Manager) Positions() []Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]Position, 0, len(m.positions))
	for _, p := range m.positions {
		if p.Qty != 0 {
			res = append(res, p)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Symbol < res[j].Symbol })
	return res
}

// OpenOrders returns live orders ordered by time.
func (m *Manager) OpenOrders() []events.OrderData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]events.OrderData, 0, len(m.open))
	for _, o := range m.open {
		res = append(res, o)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Time.Equal(res[j].Time) {
			return res[i].OrderID < res[j].OrderID
		}
		return res[i].Time.Before(res[j].Time)
	})
	return res
}

// RealizedPnL returns total realized PnL across symbols.
func (m *Manager) RealizedPnL() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.realized
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}
