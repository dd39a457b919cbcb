package api

import (
	"context"
	"sync"

	"trading-engine/internal/engine"
	"trading-engine/internal/events"
	"trading-engine/internal/position"
	"trading-engine/internal/risk"
	"trading-engine/internal/strategy"
)

type fakeEngine struct {
	mu sync.Mutex

	running    bool
	published  []events.Event
	intents    []events.Intent
	sent       []events.OrderRequest
	canceled   []events.CancelRequest
	symbols    map[string]events.SymbolState
	positions  []position.Position
	strategies map[string]*strategy.Info
	riskConfig risk.Config
	riskResets int

	orderID    string
	publishErr error
	intentErr  error
	orderErr   error
	cancelErr  error
}

var _ engine.Service = (*fakeEngine)(nil)

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		running:    true,
		orderID:    "ord-1",
		riskConfig: risk.DefaultConfig(),
		symbols: map[string]events.SymbolState{
			"BTCUSDT": {Symbol: "BTCUSDT", LastPrice: 50000},
		},
		strategies: map[string]*strategy.Info{
			"grid": {ID: "grid", Name: "Grid"},
		},
	}
}

func (f *fakeEngine) setRunning(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = v
}

func (f *fakeEngine) Publish(t events.EventType, payload events.Payload) error {
	ev, err := events.New(t, payload)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, ev)
	return nil
}

func (f *fakeEngine) HandleIntent(_ context.Context, t events.IntentType, payload any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents = append(f.intents, events.Intent{Type: t, Data: payload})
	if f.intentErr != nil {
		return "", f.intentErr
	}
	if t == events.IntentPlaceOrder {
		return f.orderID, nil
	}
	return "", nil
}

func (f *fakeEngine) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeEngine) SendOrder(_ context.Context, req events.OrderRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.orderErr != nil {
		return "", f.orderErr
	}
	f.sent = append(f.sent, req)
	return f.orderID, nil
}

func (f *fakeEngine) CancelOrder(_ context.Context, req events.CancelRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.canceled = append(f.canceled, req)
	return nil
}

func (f *fakeEngine) Status() engine.SystemStatus {
	return engine.SystemStatus{Mode: "PAPER", Venue: "paper", Symbols: []string{"BTCUSDT"}}
}

func (f *fakeEngine) Symbol(symbol string) (events.SymbolState, bool) {
	s, ok := f.symbols[symbol]
	return s, ok
}

func (f *fakeEngine) Positions() []position.Position { return f.positions }
func (f *fakeEngine) OpenOrders() []events.OrderData { return nil }
func (f *fakeEngine) RiskMetrics() risk.Metrics       { return risk.Metrics{DailyTrades: 3} }

func (f *fakeEngine) RiskConfig() risk.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.riskConfig
}

func (f *fakeEngine) UpdateRiskConfig(cfg risk.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.riskConfig = cfg
	return nil
}

func (f *fakeEngine) ResetRiskDaily() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.riskResets++
}

func (f *fakeEngine) Strategies() []strategy.Info {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]strategy.Info, 0, len(f.strategies))
	for _, s := range f.strategies {
		out = append(out, *s)
	}
	return out
}

func (f *fakeEngine) PauseStrategy(id string) error  { return f.setPaused(id, true) }
func (f *fakeEngine) ResumeStrategy(id string) error { return f.setPaused(id, false) }

func (f *fakeEngine) setPaused(id string, paused bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.strategies[id]
	if !ok {
		return strategy.ErrStrategyNotFound
	}
	s.Paused = paused
	return nil
}
