package strategy

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-engine/internal/events"
)

type intentLog struct {
	mu  sync.Mutex
	got []events.Intent
	err error
}

func (l *intentLog) handle(_ context.Context, in events.Intent) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.got = append(l.got, in)
	return "id", l.err
}

// thresholdStrategy buys once the price goes above a level.
type thresholdStrategy struct {
	id     string
	level  float64
	ticks  int
	orders int
	trades int
	timers int
	err    error
}

func (s *thresholdStrategy) ID() string   { return s.id }
func (s *thresholdStrategy) Name() string { return "threshold_" + s.id }

func (s *thresholdStrategy) OnTick(t events.TickData) ([]events.Intent, error) {
	s.ticks++
	if s.err != nil {
		return nil, s.err
	}
	if t.LastPrice <= s.level {
		return nil, nil
	}
	return []events.Intent{events.PlaceOrder(events.OrderRequest{Symbol: t.Symbol, Side: events.SideBuy, Qty: 1})}, nil
}

func (s *thresholdStrategy) OnOrder(events.OrderData) ([]events.Intent, error) {
	s.orders++
	return nil, nil
}

func (s *thresholdStrategy) OnTrade(t events.TradeData) ([]events.Intent, error) {
	s.trades++
	return []events.Intent{events.LogIntent(events.LogData{Msg: "filled " + t.Symbol})}, nil
}

func (s *thresholdStrategy) OnTimer(events.TimerData) ([]events.Intent, error) {
	s.timers++
	return nil, nil
}

// tickOnly implements only the required interface.
type tickOnly struct{ ticks int }

func (s *tickOnly) ID() string   { return "tick-only" }
func (s *tickOnly) Name() string { return "tick_only" }

func (s *tickOnly) OnTick(events.TickData) ([]events.Intent, error) {
	s.ticks++
	return nil, nil
}

func TestPriceUpdateExecutesIntents(t *testing.T) {
	l := &intentLog{}
	e := NewEngine(l.handle)
	s := &thresholdStrategy{id: "a", level: 100}
	require.NoError(t, e.Add(s))

	e.OnPriceUpdate(events.NewTickEvent(events.TickData{Symbol: "BTCUSDT", LastPrice: 90}))
	e.OnPriceUpdate(events.NewTickEvent(events.TickData{Symbol: "BTCUSDT", LastPrice: 110}))

	assert.Equal(t, 2, s.ticks)
	require.Len(t, l.got, 1)
	assert.Equal(t, events.IntentPlaceOrder, l.got[0].Type)
	req := l.got[0].Data.(events.OrderRequest)
	assert.Equal(t, "BTCUSDT", req.Symbol)
}

func TestOptionalCapabilities(t *testing.T) {
	l := &intentLog{}
	e := NewEngine(l.handle)
	full := &thresholdStrategy{id: "full"}
	basic := &tickOnly{}
	require.NoError(t, e.Add(full))
	require.NoError(t, e.Add(basic))

	e.OnOrderUpdate(events.NewOrderEvent(events.OrderData{OrderID: "1"}))
	e.OnTradeFill(events.NewTradeEvent(events.TradeData{Symbol: "ETHUSDT"}))
	e.OnTimerTick(events.NewTimerEvent(events.TimerData{Seq: 1}))

	assert.Equal(t, 1, full.orders)
	assert.Equal(t, 1, full.trades)
	assert.Equal(t, 1, full.timers)
	assert.Zero(t, basic.ticks)

	require.Len(t, l.got, 1)
	assert.Equal(t, events.IntentLog, l.got[0].Type)
}

func TestPauseResume(t *testing.T) {
	e := NewEngine(nil)
	s := &thresholdStrategy{id: "a"}
	require.NoError(t, e.Add(s))

	require.NoError(t, e.PauseStrategy("a"))
	assert.True(t, e.List()[0].Paused)
	e.OnPriceUpdate(events.NewTickEvent(events.TickData{Symbol: "BTCUSDT", LastPrice: 1}))
	assert.Zero(t, s.ticks)

	require.NoError(t, e.ResumeStrategy("a"))
	e.OnPriceUpdate(events.NewTickEvent(events.TickData{Symbol: "BTCUSDT", LastPrice: 1}))
	assert.Equal(t, 1, s.ticks)

	assert.ErrorIs(t, e.PauseStrategy("missing"), ErrStrategyNotFound)
	assert.ErrorIs(t, e.ResumeStrategy("missing"), ErrStrategyNotFound)
}

func TestAddRejectsDuplicates(t *testing.T) {
	e := NewEngine(nil)
	require.NoError(t, e.Add(&thresholdStrategy{id: "a"}))
	assert.ErrorIs(t, e.Add(&thresholdStrategy{id: "a"}), ErrDuplicateStrategy)
	assert.Len(t, e.List(), 1)
}

func TestStrategyAndIntentErrorsDoNotStopOthers(t *testing.T) {
	l := &intentLog{err: errors.New("venue down")}
	e := NewEngine(l.handle)
	bad := &thresholdStrategy{id: "bad", err: errors.New("boom")}
	good := &thresholdStrategy{id: "good", level: 0}
	require.NoError(t, e.Add(bad))
	require.NoError(t, e.Add(good))

	e.OnPriceUpdate(events.NewTickEvent(events.TickData{Symbol: "BTCUSDT", LastPrice: 5}))

	assert.Equal(t, 1, bad.ticks)
	assert.Equal(t, 1, good.ticks)
	assert.Len(t, l.got, 1)
}
