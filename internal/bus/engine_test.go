package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-engine/internal/events"
)

// recorder collects "consumer:event" entries in call order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(name string, e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name+":"+string(e.Type))
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) count(entry string) int {
	n := 0
	for _, c := range r.snapshot() {
		if c == entry {
			n++
		}
	}
	return n
}

type fakeGateway struct {
	rec      *recorder
	id       string
	err      error
	canceled []events.CancelRequest
	mu       sync.Mutex
}

func (g *fakeGateway) OnPriceUpdate(e events.Event) { g.rec.add("gateway", e) }

func (g *fakeGateway) SendOrder(_ context.Context, req events.OrderRequest) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.id, nil
}

func (g *fakeGateway) CancelOrder(_ context.Context, req events.CancelRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.canceled = append(g.canceled, req)
	return g.err
}

// fullConsumer implements every capability.
type fullConsumer struct {
	name string
	rec  *recorder
}

func (c *fullConsumer) OnPriceUpdate(e events.Event) { c.rec.add(c.name, e) }
func (c *fullConsumer) OnOrderUpdate(e events.Event) { c.rec.add(c.name, e) }
func (c *fullConsumer) OnTradeFill(e events.Event)   { c.rec.add(c.name, e) }
func (c *fullConsumer) OnTimerTick(e events.Event)   { c.rec.add(c.name, e) }

type positionConsumer struct{ rec *recorder }

func (p *positionConsumer) OnOrderUpdate(e events.Event) { p.rec.add("position", e) }
func (p *positionConsumer) OnTradeFill(e events.Event)   { p.rec.add("position", e) }

type sinkRecorder struct {
	rec    *recorder
	logs   []events.LogData
	alerts []events.RiskAlertData
	mu     sync.Mutex
}

func (s *sinkRecorder) Log(d events.LogData) {
	s.mu.Lock()
	s.logs = append(s.logs, d)
	s.mu.Unlock()
	s.rec.add("log", events.NewLogEvent(d))
}

func (s *sinkRecorder) Alert(d events.RiskAlertData) {
	s.mu.Lock()
	s.alerts = append(s.alerts, d)
	s.mu.Unlock()
	s.rec.add("alert", events.NewRiskAlertEvent(d))
}

func newTestRegistry(rec *recorder) (*Registry, *fakeGateway) {
	gw := &fakeGateway{rec: rec, id: "ord-1"}
	sink := &sinkRecorder{rec: rec}
	return &Registry{
		Gateway:  gw,
		Strategy: &fullConsumer{name: "strategy", rec: rec},
		Risk:     &fullConsumer{name: "risk", rec: rec},
		Position: &positionConsumer{rec: rec},
		Logs:     sink,
		Alerts:   sink,
	}, gw
}

// quietConfig keeps the timer out of the way of dispatch assertions.
func quietConfig() Config {
	cfg := DefaultConfig()
	cfg.TimerInterval = time.Hour
	return cfg
}

func tick(sym string, price float64) events.Event {
	return events.NewTickEvent(events.TickData{Symbol: sym, LastPrice: price, Time: time.Now()})
}

func TestDispatchOrderPerEventType(t *testing.T) {
	tests := []struct {
		name  string
		event events.Event
		want  []string
	}{
		{
			name:  "price update",
			event: tick("BTCUSDT", 100),
			want:  []string{"gateway:price_update", "strategy:price_update", "risk:price_update"},
		},
		{
			name:  "order update",
			event: events.NewOrderEvent(events.OrderData{OrderID: "1", Status: events.StatusNew}),
			want:  []string{"position:order_update", "strategy:order_update", "risk:order_update"},
		},
		{
			name:  "trade fill",
			event: events.NewTradeEvent(events.TradeData{TradeID: "t1", Qty: 1}),
			want:  []string{"position:trade_fill", "strategy:trade_fill", "risk:trade_fill"},
		},
		{
			name:  "log",
			event: events.NewLogEvent(events.LogData{Msg: "hello"}),
			want:  []string{"log:log"},
		},
		{
			name:  "risk alert",
			event: events.NewRiskAlertEvent(events.RiskAlertData{Msg: "limit"}),
			want:  []string{"alert:risk_alert"},
		},
		{
			name:  "timer tick",
			event: events.NewTimerEvent(events.TimerData{Time: time.Now(), Seq: 1}),
			want:  []string{"strategy:timer_tick", "risk:timer_tick"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			reg, _ := newTestRegistry(rec)
			eng := New(quietConfig(), reg)

			require.NoError(t, eng.Publish(tt.event))
			eng.Start()
			defer eng.Stop()

			require.Eventually(t, func() bool {
				return eng.Metrics().GetSnapshot().Dispatched == 1
			}, time.Second, 5*time.Millisecond)
			assert.Equal(t, tt.want, rec.snapshot())
		})
	}
}

func TestFIFOAcrossEvents(t *testing.T) {
	rec := &recorder{}
	eng := New(quietConfig(), &Registry{Strategy: &fullConsumer{name: "strategy", rec: rec}})

	const n = 200
	var want []string
	for i := 0; i < n; i++ {
		var e events.Event
		switch i % 3 {
		case 0:
			e = tick(fmt.Sprintf("S%d", i), float64(i))
		case 1:
			e = events.NewOrderEvent(events.OrderData{OrderID: fmt.Sprint(i)})
		default:
			e = events.NewTradeEvent(events.TradeData{TradeID: fmt.Sprint(i)})
		}
		want = append(want, "strategy:"+string(e.Type))
		require.NoError(t, eng.Publish(e))
	}

	eng.Start()
	defer eng.Stop()

	require.Eventually(t, func() bool { return len(rec.snapshot()) == n }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, want, rec.snapshot())
}

func TestFIFOConcurrentProducers(t *testing.T) {
	var mu sync.Mutex
	seen := map[string][]float64{}
	obs := func(e events.Event) {
		if d, ok := e.Tick(); ok {
			mu.Lock()
			seen[d.Symbol] = append(seen[d.Symbol], d.LastPrice)
			mu.Unlock()
		}
	}
	eng := New(quietConfig(), &Registry{}, WithObserver(obs))
	eng.Start()
	defer eng.Stop()

	const producers, perProducer = 4, 100
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, eng.Publish(tick(sym, float64(i))))
			}
		}(fmt.Sprintf("P%d", p))
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		total := 0
		for _, prices := range seen {
			total += len(prices)
		}
		return total == producers*perProducer
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for sym, prices := range seen {
		require.Len(t, prices, perProducer, sym)
		for i, p := range prices {
			assert.Equal(t, float64(i), p, "%s out of order", sym)
		}
	}
}

func TestStartStopIdempotent(t *testing.T) {
	rec := &recorder{}
	cfg := DefaultConfig()
	cfg.TimerInterval = 40 * time.Millisecond
	eng := New(cfg, &Registry{Strategy: &fullConsumer{name: "strategy", rec: rec}})

	eng.Start()
	eng.Start()
	assert.True(t, eng.Running())

	time.Sleep(3 * cfg.TimerInterval)
	eng.Stop()
	eng.Stop()
	assert.False(t, eng.Running())

	// A second worker/timer pair would roughly double the tick count.
	ticks := rec.count("strategy:timer_tick")
	assert.GreaterOrEqual(t, ticks, 2)
	assert.LessOrEqual(t, ticks, 4)

	// Restart after stop works.
	eng.Start()
	assert.True(t, eng.Running())
	eng.Stop()
}

func TestTimerCadence(t *testing.T) {
	rec := &recorder{}
	cfg := DefaultConfig()
	cfg.TimerInterval = 100 * time.Millisecond
	eng := New(cfg, &Registry{
		Strategy: &fullConsumer{name: "strategy", rec: rec},
		Risk:     &fullConsumer{name: "risk", rec: rec},
	})

	eng.Start()
	time.Sleep(3 * cfg.TimerInterval)
	eng.Stop()

	ticks := rec.count("strategy:timer_tick")
	assert.GreaterOrEqual(t, ticks, 2)
	assert.LessOrEqual(t, ticks, 4)
	assert.Equal(t, ticks, rec.count("risk:timer_tick"))
}

func TestTimerSequenceIncreases(t *testing.T) {
	var mu sync.Mutex
	var seqs []uint64
	cfg := DefaultConfig()
	cfg.TimerInterval = 10 * time.Millisecond
	eng := New(cfg, &Registry{}, WithObserver(func(e events.Event) {
		if d, ok := e.Timer(); ok {
			mu.Lock()
			seqs = append(seqs, d.Seq)
			mu.Unlock()
		}
	}))

	eng.Start()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seqs) >= 3
	}, time.Second, 5*time.Millisecond)
	eng.Stop()

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(seqs); i++ {
		assert.Greater(t, seqs[i], seqs[i-1])
	}
}

func TestDropWhenUnconfigured(t *testing.T) {
	eng := New(quietConfig(), nil)
	assert.False(t, eng.Configured())

	assert.NotPanics(t, func() {
		require.NoError(t, eng.Publish(tick("BTCUSDT", 1)))
		require.NoError(t, eng.Publish(events.NewLogEvent(events.LogData{Msg: "x"})))
	})

	eng.Start()
	defer eng.Stop()

	require.Eventually(t, func() bool {
		return eng.Metrics().GetSnapshot().DroppedUnconfigured == 2
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, eng.Metrics().GetSnapshot().Dispatched)
	assert.Nil(t, eng.Routes())
}

func TestNoDispatchAfterStop(t *testing.T) {
	rec := &recorder{}
	reg, _ := newTestRegistry(rec)
	eng := New(quietConfig(), reg)

	eng.Start()
	eng.Stop()

	for i := 0; i < 10; i++ {
		require.NoError(t, eng.Publish(tick("BTCUSDT", float64(i))))
	}
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, rec.snapshot())
	assert.Equal(t, 10, eng.Len())
}

func TestStopLetsRunningHandlerFinish(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var finished bool

	slow := &slowConsumer{entered: entered, release: release, done: &finished}
	eng := New(quietConfig(), &Registry{Strategy: slow})
	eng.Start()
	require.NoError(t, eng.Publish(tick("BTCUSDT", 1)))
	<-entered

	stopped := make(chan struct{})
	go func() {
		eng.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a handler was running")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	<-stopped
	assert.True(t, finished)
	assert.False(t, eng.Running())
}

type slowConsumer struct {
	entered chan struct{}
	release chan struct{}
	done    *bool
}

func (s *slowConsumer) OnPriceUpdate(events.Event) {
	close(s.entered)
	<-s.release
	*s.done = true
}

type panicConsumer struct{}

func (panicConsumer) OnPriceUpdate(events.Event) { panic("boom") }

func TestHandlerPanicIsolated(t *testing.T) {
	rec := &recorder{}
	eng := New(quietConfig(), &Registry{
		Strategy: panicConsumer{},
		Risk:     &fullConsumer{name: "risk", rec: rec},
	})
	eng.Start()
	defer eng.Stop()

	require.NoError(t, eng.Publish(tick("BTCUSDT", 1)))
	require.NoError(t, eng.Publish(tick("BTCUSDT", 2)))

	require.Eventually(t, func() bool { return rec.count("risk:price_update") == 2 }, time.Second, 5*time.Millisecond)
	snap := eng.Metrics().GetSnapshot()
	assert.Equal(t, uint64(2), snap.HandlerFailures)
	assert.True(t, eng.Running())
}

// republisher publishes a log event from inside its price handler.
type republisher struct{ eng *EventEngine }

func (r *republisher) OnPriceUpdate(e events.Event) {
	d, _ := e.Tick()
	_ = r.eng.Publish(events.NewLogEvent(events.LogData{Msg: "saw " + d.Symbol}))
}

func TestReentrantPublish(t *testing.T) {
	rec := &recorder{}
	sink := &sinkRecorder{rec: rec}
	rp := &republisher{}
	eng := New(quietConfig(), &Registry{Strategy: rp, Logs: sink})
	rp.eng = eng

	eng.Start()
	defer eng.Stop()
	require.NoError(t, eng.Publish(tick("ETHUSDT", 1)))

	require.Eventually(t, func() bool { return rec.count("log:log") == 1 }, time.Second, 5*time.Millisecond)
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, "saw ETHUSDT", sink.logs[0].Msg)
}

func TestConfigureOrdering(t *testing.T) {
	rec := &recorder{}
	reg, _ := newTestRegistry(rec)

	t.Run("nil registry", func(t *testing.T) {
		eng := New(quietConfig(), nil)
		assert.ErrorIs(t, eng.Configure(nil), ErrNilRegistry)
	})

	t.Run("once", func(t *testing.T) {
		eng := New(quietConfig(), nil)
		require.NoError(t, eng.Configure(reg))
		assert.True(t, eng.Configured())
		assert.ErrorIs(t, eng.Configure(reg), ErrAlreadyConfigured)
	})

	t.Run("injected at construction", func(t *testing.T) {
		eng := New(quietConfig(), reg)
		assert.ErrorIs(t, eng.Configure(reg), ErrAlreadyConfigured)
	})

	t.Run("while running", func(t *testing.T) {
		eng := New(quietConfig(), nil)
		eng.Start()
		defer eng.Stop()
		assert.ErrorIs(t, eng.Configure(reg), ErrRunning)
	})
}

func TestRoutesReflectCapabilities(t *testing.T) {
	eng := New(quietConfig(), &Registry{
		Strategy: &fullConsumer{name: "strategy", rec: &recorder{}},
		Position: &positionConsumer{rec: &recorder{}},
	})

	routes := eng.Routes()
	assert.Equal(t, []string{"strategy"}, routes[events.EventPriceUpdate])
	assert.Equal(t, []string{"position", "strategy"}, routes[events.EventOrderUpdate])
	assert.Equal(t, []string{"strategy"}, routes[events.EventTimerTick])
	assert.Equal(t, []string{"log"}, routes[events.EventLog])
	assert.Equal(t, []string{"alert"}, routes[events.EventRiskAlert])
}

func TestPublishRejectWhenFull(t *testing.T) {
	cfg := quietConfig()
	cfg.QueueSize = 2
	eng := New(cfg, nil)

	require.NoError(t, eng.Publish(tick("A", 1)))
	require.NoError(t, eng.Publish(tick("B", 2)))
	err := eng.Publish(tick("C", 3))
	assert.ErrorIs(t, err, ErrQueueFull)

	snap := eng.Metrics().GetSnapshot()
	assert.Equal(t, uint64(1), snap.Rejected)
	assert.Equal(t, uint64(2), snap.Published)
	assert.Equal(t, 2, snap.QueueDepth)
}

func TestPublishDropOldest(t *testing.T) {
	cfg := quietConfig()
	cfg.QueueSize = 2
	cfg.Overflow = OverflowDropOldest

	var mu sync.Mutex
	var got []string
	eng := New(cfg, &Registry{}, WithObserver(func(e events.Event) {
		d, _ := e.Tick()
		mu.Lock()
		got = append(got, d.Symbol)
		mu.Unlock()
	}))

	for _, s := range []string{"A", "B", "C"} {
		require.NoError(t, eng.Publish(tick(s, 1)))
	}
	assert.Equal(t, uint64(1), eng.Metrics().GetSnapshot().OverflowDropped)

	eng.Start()
	defer eng.Stop()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"B", "C"}, got)
}

func TestPublishBlockWaitsForRoom(t *testing.T) {
	cfg := quietConfig()
	cfg.QueueSize = 1
	cfg.Overflow = OverflowBlock
	eng := New(cfg, &Registry{})

	require.NoError(t, eng.Publish(tick("A", 1)))

	done := make(chan error, 1)
	go func() { done <- eng.Publish(tick("B", 2)) }()

	select {
	case <-done:
		t.Fatal("Publish returned while the queue was full")
	case <-time.After(30 * time.Millisecond):
	}

	eng.Start()
	defer eng.Stop()
	require.NoError(t, <-done)
}

func TestParseOverflowPolicy(t *testing.T) {
	tests := []struct {
		in   string
		want OverflowPolicy
		err  bool
	}{
		{"", OverflowReject, false},
		{"block", OverflowBlock, false},
		{" Drop_Oldest ", OverflowDropOldest, false},
		{"reject", OverflowReject, false},
		{"spill", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOverflowPolicy(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	eng := New(Config{}, nil)
	cfg := eng.Config()
	assert.Equal(t, DefaultTimerInterval, cfg.TimerInterval)
	assert.Equal(t, DefaultQueueSize, cfg.QueueSize)
	assert.Equal(t, OverflowReject, cfg.Overflow)
}

func TestHandleIntent(t *testing.T) {
	t.Run("unconfigured", func(t *testing.T) {
		eng := New(quietConfig(), nil)
		for _, in := range []events.Intent{
			events.PlaceOrder(events.OrderRequest{Symbol: "BTCUSDT"}),
			events.CancelOrder(events.CancelRequest{OrderID: "1"}),
			events.LogIntent(events.LogData{Msg: "x"}),
		} {
			id, err := eng.HandleIntent(context.Background(), in)
			assert.Empty(t, id)
			assert.ErrorIs(t, err, ErrNotConfigured)
		}
		assert.Zero(t, eng.Len())
	})

	t.Run("place order returns id synchronously", func(t *testing.T) {
		reg, _ := newTestRegistry(&recorder{})
		eng := New(quietConfig(), reg)

		id, err := eng.HandleIntent(context.Background(), events.PlaceOrder(events.OrderRequest{
			Symbol: "BTCUSDT", Side: events.SideBuy, Qty: 1, Price: 100, Type: "LIMIT",
		}))
		require.NoError(t, err)
		assert.Equal(t, "ord-1", id)
		assert.Zero(t, eng.Len())
		assert.Equal(t, uint64(1), eng.Metrics().GetSnapshot().OrdersSent)
	})

	t.Run("place order failure", func(t *testing.T) {
		reg, gw := newTestRegistry(&recorder{})
		gw.err = errors.New("venue down")
		eng := New(quietConfig(), reg)

		id, err := eng.HandleIntent(context.Background(), events.PlaceOrder(events.OrderRequest{Symbol: "BTCUSDT"}))
		assert.Empty(t, id)
		assert.EqualError(t, err, "venue down")
		assert.Equal(t, uint64(1), eng.Metrics().GetSnapshot().OrderErrors)
	})

	t.Run("cancel forwards and queues nothing", func(t *testing.T) {
		reg, gw := newTestRegistry(&recorder{})
		eng := New(quietConfig(), reg)

		id, err := eng.HandleIntent(context.Background(), events.CancelOrder(events.CancelRequest{OrderID: "42"}))
		require.NoError(t, err)
		assert.Empty(t, id)
		require.Len(t, gw.canceled, 1)
		assert.Equal(t, "42", gw.canceled[0].OrderID)
		assert.Zero(t, eng.Len())
	})

	t.Run("log publishes a log event", func(t *testing.T) {
		rec := &recorder{}
		reg, _ := newTestRegistry(rec)
		eng := New(quietConfig(), reg)

		_, err := eng.HandleIntent(context.Background(), events.Intent{Type: events.IntentLog, Data: "plain text"})
		require.NoError(t, err)
		assert.Equal(t, 1, eng.Len())

		eng.Start()
		defer eng.Stop()
		require.Eventually(t, func() bool { return rec.count("log:log") == 1 }, time.Second, 5*time.Millisecond)

		sink := reg.Logs.(*sinkRecorder)
		sink.mu.Lock()
		defer sink.mu.Unlock()
		assert.Equal(t, "plain text", sink.logs[0].Msg)
		assert.Equal(t, events.LevelInfo, sink.logs[0].Level)
	})

	t.Run("no gateway", func(t *testing.T) {
		eng := New(quietConfig(), &Registry{})
		_, err := eng.HandleIntent(context.Background(), events.PlaceOrder(events.OrderRequest{}))
		assert.ErrorIs(t, err, ErrNoGateway)
	})

	t.Run("payload mismatch", func(t *testing.T) {
		reg, _ := newTestRegistry(&recorder{})
		eng := New(quietConfig(), reg)
		_, err := eng.HandleIntent(context.Background(), events.Intent{Type: events.IntentPlaceOrder, Data: "BTCUSDT"})
		assert.ErrorIs(t, err, ErrIntentPayload)
	})

	t.Run("unknown", func(t *testing.T) {
		reg, _ := newTestRegistry(&recorder{})
		eng := New(quietConfig(), reg)
		id, err := eng.HandleIntent(context.Background(), events.Intent{Type: "close_all"})
		assert.Empty(t, id)
		assert.ErrorIs(t, err, ErrUnknownIntent)
	})
}
