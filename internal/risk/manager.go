// Package risk reviews order flow, fills and prices against simple thresholds
// and raises risk-alert events when one is breached.
package risk

import (
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"trading-engine/internal/events"
	"trading-engine/pkg/i18n"
)

const source = "risk"

// Manager keeps the running exposure picture. Each breach is alerted once
// and re-armed after it clears.
type Manager struct {
	mu      sync.Mutex
	config  Config
	publish func(events.Event) error
	now     func() time.Time

	day           time.Time
	dailyTrades   int
	dailyNotional float64
	netQty        map[string]float64
	mark          map[string]float64
	open          map[string]events.OrderData
	active        map[string]bool // symbol|code
}

// NewManager creates a manager publishing alerts through publish.
func NewManager(cfg Config, publish func(events.Event) error) *Manager {
	m := &Manager{
		config:  cfg,
		publish: publish,
		now:     time.Now,
		netQty:  make(map[string]float64),
		mark:    make(map[string]float64),
		open:    make(map[string]events.OrderData),
		active:  make(map[string]bool),
	}
	m.day = dayOf(m.now())
	return m
}

// GetConfig returns a copy of current config.
func (m *Manager) GetConfig() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// UpdateConfig swaps thresholds. Existing breaches are re-evaluated on the
// next event for their symbol.
func (m *Manager) UpdateConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = cfg
	log.Printf(i18n.Get("RiskConfigUpdated"), cfg)
	return nil
}

func (m *Manager) OnPriceUpdate(e events.Event) {
	t, ok := e.Tick()
	if !ok || t.LastPrice <= 0 {
		return
	}
	sym := events.NormalizeSymbol(t.Symbol)
	var out []events.Event
	m.mu.Lock()
	m.mark[sym] = t.LastPrice
	out = m.reviewNotional(sym, out)
	m.mu.Unlock()
	m.emit(out)
}

func (m *Manager) OnOrderUpdate(e events.Event) {
	o, ok := e.Order()
	if !ok || o.OrderID == "" {
		return
	}
	o.Symbol = events.NormalizeSymbol(o.Symbol)
	var out []events.Event
	m.mu.Lock()
	if o.Status.Terminal() {
		delete(m.open, o.OrderID)
	} else {
		m.open[o.OrderID] = o
	}
	out = m.reviewOpenOrders(o.Symbol, out)
	m.mu.Unlock()
	m.emit(out)
}

func (m *Manager) OnTradeFill(e events.Event) {
	t, ok := e.Trade()
	if !ok || t.Validate() != nil {
		return
	}
	sym := events.NormalizeSymbol(t.Symbol)
	var out []events.Event
	m.mu.Lock()
	m.rollDay(m.now())
	m.dailyTrades++
	m.dailyNotional += t.Qty * t.Price
	switch t.Side {
	case events.SideBuy:
		m.netQty[sym] += t.Qty
	case events.SideSell:
		m.netQty[sym] -= t.Qty
	}
	m.mark[sym] = t.Price

	out = m.reviewNotional(sym, out)
	if lim := m.config.MaxDailyTrades; lim > 0 {
		out = m.check("*", CodeMaxDailyTrades, events.SeverityWarn, m.dailyTrades > lim,
			fmt.Sprintf("daily trades %d exceed %d", m.dailyTrades, lim), out)
	}
	m.mu.Unlock()
	m.emit(out)
}

// OnTimerTick rolls the daily counters when the tick crosses midnight.
func (m *Manager) OnTimerTick(e events.Event) {
	now := m.now()
	if t, ok := e.Timer(); ok && !t.Time.IsZero() {
		now = t.Time
	}
	m.mu.Lock()
	m.rollDay(now)
	m.mu.Unlock()
}

// GetMetrics returns a snapshot of the current risk state.
func (m *Manager) GetMetrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := Metrics{
		Day:           m.day,
		DailyTrades:   m.dailyTrades,
		DailyNotional: m.dailyNotional,
		Exposure:      make(map[string]float64, len(m.netQty)),
		OpenOrders:    make(map[string]int),
	}
	for sym, q := range m.netQty {
		if q != 0 {
			res.Exposure[sym] = math.Abs(q) * m.mark[sym]
		}
	}
	for _, o := range m.open {
		res.OpenOrders[o.Symbol]++
	}
	for k := range m.active {
		res.ActiveAlerts = append(res.ActiveAlerts, k)
	}
	sort.Strings(res.ActiveAlerts)
	return res
}

// ResetDailyMetrics clears the daily counters and daily-scoped alerts.
func (m *Manager) ResetDailyMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetDailyLocked(dayOf(m.now()))
}

func (m *Manager) rollDay(now time.Time) {
	if d := dayOf(now); d.After(m.day) {
		m.resetDailyLocked(d)
	}
}

func (m *Manager) resetDailyLocked(day time.Time) {
	log.Printf(i18n.Get("RiskDailyReset"), m.dailyTrades, m.dailyNotional)
	m.day = day
	m.dailyTrades = 0
	m.dailyNotional = 0
	delete(m.active, key("*", CodeMaxDailyTrades))
}

func (m *Manager) reviewNotional(symbol string, out []events.Event) []events.Event {
	lim := m.config.MaxNotional
	if lim <= 0 {
		return out
	}
	exposure := math.Abs(m.netQty[symbol]) * m.mark[symbol]
	return m.check(symbol, CodeMaxNotional, events.SeverityCritical, exposure > lim,
		fmt.Sprintf("%s notional %.2f exceeds %.2f", symbol, exposure, lim), out)
}

func (m *Manager) reviewOpenOrders(symbol string, out []events.Event) []events.Event {
	lim := m.config.MaxOpenOrders
	if lim <= 0 {
		return out
	}
	n := 0
	for _, o := range m.open {
		if o.Symbol == symbol {
			n++
		}
	}
	return m.check(symbol, CodeMaxOpenOrders, events.SeverityWarn, n > lim,
		fmt.Sprintf("%s has %d open orders, limit %d", symbol, n, lim), out)
}

// check raises an alert on the rising edge of a breach and re-arms on clear.
func (m *Manager) check(symbol, code, severity string, breached bool, msg string, out []events.Event) []events.Event {
	k := key(symbol, code)
	switch {
	case breached && !m.active[k]:
		m.active[k] = true
		log.Printf(i18n.Get("RiskLimitBreached"), msg)
		return append(out, events.NewRiskAlertEvent(events.RiskAlertData{
			Msg:      msg,
			Severity: severity,
			Code:     code,
			Source:   source,
			Time:     m.now(),
		}))
	case !breached && m.active[k]:
		delete(m.active, k)
		log.Printf(i18n.Get("RiskLimitCleared"), k)
	}
	return out
}

func (m *Manager) emit(out []events.Event) {
	if m.publish == nil {
		return
	}
	for _, e := range out {
		if err := m.publish(e); err != nil {
			log.Printf(i18n.Get("PublishRejected"), e.Type, err)
		}
	}
}

func key(symbol, code string) string { return symbol + "|" + code }

func dayOf(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}
