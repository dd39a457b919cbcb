package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"trading-engine/internal/bus"
	"trading-engine/internal/events"
	"trading-engine/internal/gateway"
	"trading-engine/internal/monitor"
	"trading-engine/internal/position"
	"trading-engine/internal/risk"
	"trading-engine/internal/strategy"
	exchange "trading-engine/pkg/exchanges/common"
	"trading-engine/pkg/i18n"
)

// Config holds the configuration for creating a MainEngine.
type Config struct {
	Bus     bus.Config
	Gateway gateway.Config
	Risk    risk.Config

	Venue  string
	Paper  gateway.PaperConfig
	Client exchange.Client // overrides Venue when set

	Symbols     []string
	UseMockFeed bool
	Version     string

	Broadcaster *events.Broadcaster // optional, created when nil
	Escalate    monitor.AlertSink   // optional, receives CRITICAL alerts
}

// DefaultConfig returns a paper-trading configuration.
func DefaultConfig() Config {
	return Config{
		Bus:     bus.DefaultConfig(),
		Gateway: gateway.DefaultConfig(),
		Risk:    risk.DefaultConfig(),
		Venue:   gateway.VenuePaper,
		Paper:   gateway.PaperConfig{FeeRate: 0.0004},
	}
}

// MainEngine owns one instance of each collaborator and the event engine
// that connects them.
type MainEngine struct {
	cfg Config

	bus         *bus.EventEngine
	gateway     *gateway.Engine
	strategy    *strategy.Engine
	risk        *risk.Manager
	position    *position.Manager
	sink        *monitor.Sink
	metrics     *monitor.SystemMetrics
	broadcaster *events.Broadcaster
}

// New constructs the collaborators, binds them into a new event engine and
// starts it. The venue is not connected until Connect.
func New(cfg Config) (*MainEngine, error) {
	m := &MainEngine{
		cfg:         cfg,
		metrics:     monitor.NewSystemMetrics(),
		broadcaster: cfg.Broadcaster,
	}
	if m.broadcaster == nil {
		m.broadcaster = events.NewBroadcaster()
	}
	m.sink = monitor.NewSink(m.broadcaster)
	m.sink.Escalate = cfg.Escalate

	client := cfg.Client
	if client == nil {
		var err error
		client, err = gateway.DefaultFactory(cfg.Venue, cfg.Paper, m.publishEvent, m.lastPrice)
		if err != nil {
			return nil, fmt.Errorf("create venue client: %w", err)
		}
	}

	m.gateway = gateway.New(client, cfg.Gateway)
	m.position = position.NewManager()
	m.risk = risk.NewManager(cfg.Risk, m.publishEvent)
	m.strategy = strategy.NewEngine(m.handleIntent)

	m.bus = bus.New(cfg.Bus, &bus.Registry{
		Gateway:  m.gateway,
		Strategy: m.strategy,
		Risk:     m.risk,
		Position: m.position,
		Logs:     m.sink,
		Alerts:   m.sink,
	}, bus.WithMetrics(m.metrics), bus.WithObserver(m.observe))

	log.Printf(i18n.Get("BusConfigured"), m.bus.Routes())
	m.bus.Start()
	return m, nil
}

func (m *MainEngine) publishEvent(e events.Event) error {
	return m.bus.Publish(e)
}

// observe mirrors market and order flow to broadcaster subscribers. Logs and
// alerts already reach the broadcaster through the sink.
func (m *MainEngine) observe(e events.Event) {
	switch e.Type {
	case events.EventPriceUpdate, events.EventOrderUpdate, events.EventTradeFill:
		m.broadcaster.Broadcast(e)
	}
}

func (m *MainEngine) handleIntent(ctx context.Context, in events.Intent) (string, error) {
	return m.bus.HandleIntent(ctx, in)
}

func (m *MainEngine) lastPrice(symbol string) (float64, bool) {
	return m.gateway.LastPrice(symbol)
}

// --- Bus facade ---

// Publish wraps payload into an event of type t and enqueues it.
func (m *MainEngine) Publish(t events.EventType, payload events.Payload) error {
	e, err := events.New(t, payload)
	if err != nil {
		return err
	}
	if err := m.bus.Publish(e); err != nil {
		log.Printf(i18n.Get("PublishRejected"), t, err)
		return err
	}
	return nil
}

// HandleIntent executes an intent synchronously on the caller's goroutine.
func (m *MainEngine) HandleIntent(ctx context.Context, t events.IntentType, payload any) (string, error) {
	return m.bus.HandleIntent(ctx, events.Intent{Type: t, Data: payload})
}

func (m *MainEngine) SendOrder(ctx context.Context, req events.OrderRequest) (string, error) {
	return m.bus.HandleIntent(ctx, events.PlaceOrder(req))
}

func (m *MainEngine) CancelOrder(ctx context.Context, req events.CancelRequest) error {
	_, err := m.bus.HandleIntent(ctx, events.CancelOrder(req))
	return err
}

// Running reports whether the event engine is running.
func (m *MainEngine) Running() bool {
	return m.bus.Running()
}

// --- Lifecycle ---

// Connect opens the venue connection.
func (m *MainEngine) Connect(ctx context.Context) error {
	return m.gateway.Connect(ctx)
}

// Disconnect releases the venue connection, then stops the event engine. It
// returns once the engine has fully stopped and is safe to call repeatedly.
func (m *MainEngine) Disconnect() {
	if err := m.gateway.Close(); err != nil {
		log.Printf("gateway close: %v", err)
	}
	m.bus.Stop()
}

// --- Queries ---

func (m *MainEngine) Symbol(symbol string) (events.SymbolState, bool) {
	return m.gateway.Symbol(symbol)
}

func (m *MainEngine) Positions() []position.Position {
	return m.position.Positions()
}

func (m *MainEngine) OpenOrders() []events.OrderData {
	return m.position.OpenOrders()
}

func (m *MainEngine) RiskMetrics() risk.Metrics {
	return m.risk.GetMetrics()
}

// --- Risk Commands ---

func (m *MainEngine) RiskConfig() risk.Config {
	return m.risk.GetConfig()
}

// UpdateRiskConfig swaps the risk thresholds at runtime.
func (m *MainEngine) UpdateRiskConfig(cfg risk.Config) error {
	return m.risk.UpdateConfig(cfg)
}

// ResetRiskDaily clears the daily trade counters before the day rolls.
func (m *MainEngine) ResetRiskDaily() {
	m.risk.ResetDailyMetrics()
}

// Status returns a point-in-time view of the engine.
func (m *MainEngine) Status() SystemStatus {
	cfg := m.bus.Config()
	symbols := m.cfg.Symbols
	if len(symbols) == 0 {
		for _, st := range m.gateway.Symbols() {
			symbols = append(symbols, st.Symbol)
		}
	}
	mode := "LIVE"
	if strings.EqualFold(m.gateway.Venue(), gateway.VenuePaper) {
		mode = "PAPER"
	}
	return SystemStatus{
		Mode:        mode,
		Venue:       m.gateway.Venue(),
		Connected:   m.gateway.Connected(),
		Symbols:     symbols,
		UseMockFeed: m.cfg.UseMockFeed,
		Version:     m.cfg.Version,
		ServerTime:  time.Now(),
		Bus: BusStatus{
			Running:    m.bus.Running(),
			Configured: m.bus.Configured(),
			QueueDepth: m.bus.Len(),
			QueueSize:  cfg.QueueSize,
			Overflow:   cfg.Overflow,
			Timer:      cfg.TimerInterval.String(),
			Routes:     m.bus.Routes(),
		},
		Orders: OrderFlowStatus{
			Tracked:   m.gateway.TrackedOrders(),
			Throttled: m.gateway.Throttled(),
		},
		Metrics: m.metrics.GetSnapshot(),
	}
}

// --- Strategy Commands ---

// AddStrategy registers a strategy plugin.
func (m *MainEngine) AddStrategy(s strategy.Strategy) error {
	return m.strategy.Add(s)
}

func (m *MainEngine) Strategies() []strategy.Info {
	return m.strategy.List()
}

func (m *MainEngine) PauseStrategy(id string) error {
	return m.strategy.PauseStrategy(id)
}

func (m *MainEngine) ResumeStrategy(id string) error {
	return m.strategy.ResumeStrategy(id)
}

// --- Accessors for outer layers ---

func (m *MainEngine) Broadcaster() *events.Broadcaster { return m.broadcaster }
func (m *MainEngine) Metrics() *monitor.SystemMetrics  { return m.metrics }
