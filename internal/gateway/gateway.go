// Package gateway is the venue-facing collaborator: it keeps the latest
// per-symbol market snapshot and routes orders to a venue client.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"trading-engine/internal/events"
	"trading-engine/pkg/cache"
	exchange "trading-engine/pkg/exchanges/common"
	"trading-engine/pkg/i18n"
)

var (
	ErrNoVenue      = errors.New("no venue client")
	ErrNotConnected = errors.New("gateway not connected")
	ErrInvalidOrder = errors.New("invalid order")
	ErrRateLimited  = errors.New("order rate limit exceeded")
	ErrUnknownOrder = errors.New("unknown order")
)

// Config holds gateway settings.
type Config struct {
	OrderRateLimit float64 // orders per second, <= 0 disables
	OrderRateBurst int
	SymbolTTL      time.Duration // <= 0 keeps symbols forever
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		OrderRateLimit: 10,
		OrderRateBurst: 20,
		SymbolTTL:      24 * time.Hour,
	}
}

type trackedOrder struct {
	symbol   string
	clientID string
}

// Engine maintains the symbol cache and forwards order requests to a venue.
type Engine struct {
	client   exchange.Client
	symbols  *cache.Sharded[events.SymbolState]
	throttle *exchange.Throttle
	ttl      time.Duration

	mu        sync.RWMutex
	connected bool
	orders    map[string]trackedOrder // live orders by exchange id
	clientIDs map[string]string       // client order id -> exchange order id
	finished  map[string]struct{}     // completed before SendOrder tracked them
	swept     time.Time
}

// New creates a gateway over client. A nil client yields a gateway that
// still caches prices but refuses orders with ErrNoVenue.
func New(client exchange.Client, cfg Config) *Engine {
	return &Engine{
		client:    client,
		symbols:   cache.NewSharded[events.SymbolState](),
		throttle:  exchange.NewThrottle(cfg.OrderRateLimit, cfg.OrderRateBurst),
		ttl:       cfg.SymbolTTL,
		orders:    make(map[string]trackedOrder),
		clientIDs: make(map[string]string),
		finished:  make(map[string]struct{}),
		swept:     time.Now(),
	}
}

// Venue returns the venue name or "" when no client is set.
func (g *Engine) Venue() string {
	if g.client == nil {
		return ""
	}
	return g.client.Name()
}

// Connect opens the venue connection. Calling it twice is a no-op.
func (g *Engine) Connect(ctx context.Context) error {
	if g.client == nil {
		return ErrNoVenue
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.connected {
		return nil
	}
	if err := g.client.Connect(ctx); err != nil {
		return fmt.Errorf("connect %s: %w", g.client.Name(), err)
	}
	g.connected = true
	log.Printf(i18n.Get("GatewayConnected"), g.client.Name())
	return nil
}

// Close releases the venue connection. Safe to call when not connected.
func (g *Engine) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.connected || g.client == nil {
		return nil
	}
	g.connected = false
	if err := g.client.Close(); err != nil {
		return fmt.Errorf("close %s: %w", g.client.Name(), err)
	}
	log.Printf(i18n.Get("GatewayDisconnected"), g.client.Name())
	return nil
}

// Connected reports whether the venue connection is open.
func (g *Engine) Connected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connected
}

// OnPriceUpdate refreshes the cached snapshot for the tick's symbol.
func (g *Engine) OnPriceUpdate(e events.Event) {
	tick, ok := e.Tick()
	if !ok || tick.Symbol == "" {
		return
	}
	sym := strings.ToUpper(tick.Symbol)
	ts := tick.Time
	if ts.IsZero() {
		ts = e.Time
	}

	g.symbols.Update(sym, func(st events.SymbolState, _ bool) events.SymbolState {
		st.Symbol = sym
		if tick.LastPrice > 0 {
			st.LastPrice = tick.LastPrice
		}
		if tick.BidPrice > 0 {
			st.BidPrice = tick.BidPrice
		}
		if tick.AskPrice > 0 {
			st.AskPrice = tick.AskPrice
		}
		if tick.Volume > 0 {
			st.Volume24h = tick.Volume
		}
		st.Time = ts
		return st
	})

	if ql, ok := g.client.(exchange.QuoteListener); ok && tick.LastPrice > 0 {
		g.complete(ql.OnQuote(sym, tick.LastPrice)...)
	}
	g.sweepSymbols(time.Now())
}

// sweepSymbols drops symbols that have not ticked for the TTL, at most once
// per TTL.
func (g *Engine) sweepSymbols(now time.Time) {
	if g.ttl <= 0 {
		return
	}
	g.mu.Lock()
	if now.Sub(g.swept) < g.ttl {
		g.mu.Unlock()
		return
	}
	g.swept = now
	g.mu.Unlock()

	if n := g.symbols.Cleanup(g.ttl); n > 0 {
		log.Printf(i18n.Get("SymbolsPruned"), n)
	}
}

// Symbol returns the latest snapshot for symbol.
func (g *Engine) Symbol(symbol string) (events.SymbolState, bool) {
	return g.symbols.Get(strings.ToUpper(symbol))
}

// LastPrice returns the cached last price for symbol.
func (g *Engine) LastPrice(symbol string) (float64, bool) {
	st, ok := g.Symbol(symbol)
	if !ok || st.LastPrice <= 0 {
		return 0, false
	}
	return st.LastPrice, true
}

// Symbols returns every cached snapshot ordered by symbol.
func (g *Engine) Symbols() []events.SymbolState {
	keys := g.symbols.Keys()
	out := make([]events.SymbolState, 0, len(keys))
	for _, k := range keys {
		if st, ok := g.symbols.Get(k); ok {
			out = append(out, st)
		}
	}
	return out
}

// SendOrder validates req and submits it to the venue, returning the venue
// order id.
func (g *Engine) SendOrder(ctx context.Context, req events.OrderRequest) (string, error) {
	if g.client == nil {
		return "", ErrNoVenue
	}
	if !g.Connected() {
		return "", ErrNotConnected
	}

	vreq, err := toVenueRequest(req)
	if err != nil {
		log.Printf(i18n.Get("OrderSendFailed"), req.Symbol, req.Side, err)
		return "", err
	}
	if !g.throttle.Allow() {
		log.Printf(i18n.Get("OrderRateLimited"), vreq.Symbol)
		return "", ErrRateLimited
	}

	res, err := g.client.SubmitOrder(ctx, vreq)
	if err != nil {
		log.Printf(i18n.Get("OrderSendFailed"), vreq.Symbol, vreq.Side, err)
		return "", fmt.Errorf("submit order: %w", err)
	}

	if !terminal(res.Status) {
		g.track(res.ExchangeOrderID, trackedOrder{symbol: vreq.Symbol, clientID: vreq.ClientID})
	}

	log.Printf(i18n.Get("OrderSent"), vreq.Side, vreq.Type, vreq.Qty, vreq.Symbol, vreq.Price, res.ExchangeOrderID)
	return res.ExchangeOrderID, nil
}

// CancelOrder asks the venue to cancel an order identified by its venue id
// or by the client id used when it was sent.
func (g *Engine) CancelOrder(ctx context.Context, req events.CancelRequest) error {
	if g.client == nil {
		return ErrNoVenue
	}
	if !g.Connected() {
		return ErrNotConnected
	}

	g.mu.RLock()
	id := req.OrderID
	if id == "" && req.ClientOrderID != "" {
		id = g.clientIDs[req.ClientOrderID]
	}
	symbol := strings.ToUpper(req.Symbol)
	if symbol == "" {
		symbol = g.orders[id].symbol
	}
	g.mu.RUnlock()

	if id == "" {
		return fmt.Errorf("%w: missing order id", ErrInvalidOrder)
	}

	if err := g.client.CancelOrder(ctx, symbol, id); err != nil {
		if errors.Is(err, ErrUnknownOrder) {
			g.forget(id)
		}
		log.Printf(i18n.Get("OrderCancelFailed"), id, err)
		return fmt.Errorf("cancel order %s: %w", id, err)
	}
	g.forget(id)
	log.Printf(i18n.Get("OrderCanceled"), id)
	return nil
}

// TrackedOrders returns how many live orders the gateway can still resolve
// by client id.
func (g *Engine) TrackedOrders() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.orders)
}

// Throttled returns how many orders the rate limit refused.
func (g *Engine) Throttled() uint64 {
	return g.throttle.Denied()
}

func (g *Engine) track(id string, o trackedOrder) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.finished[id]; ok {
		delete(g.finished, id)
		return
	}
	g.orders[id] = o
	g.clientIDs[o.clientID] = id
}

// complete drops orders the venue finished on a quote. An id not tracked yet
// was filled by a quote racing SendOrder and is remembered until track sees it.
func (g *Engine) complete(ids ...string) {
	if len(ids) == 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range ids {
		if !g.untrackLocked(id) {
			g.finished[id] = struct{}{}
		}
	}
}

func (g *Engine) forget(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.untrackLocked(id)
}

func (g *Engine) untrackLocked(id string) bool {
	o, ok := g.orders[id]
	if !ok {
		return false
	}
	delete(g.orders, id)
	if g.clientIDs[o.clientID] == id {
		delete(g.clientIDs, o.clientID)
	}
	return true
}

func terminal(s exchange.OrderStatus) bool {
	switch s {
	case exchange.StatusFilled, exchange.StatusCanceled, exchange.StatusRejected, exchange.StatusExpired:
		return true
	}
	return false
}

func toVenueRequest(req events.OrderRequest) (exchange.OrderRequest, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return exchange.OrderRequest{}, fmt.Errorf("%w: symbol is required", ErrInvalidOrder)
	}
	side := events.Side(strings.ToUpper(string(req.Side)))
	if side != events.SideBuy && side != events.SideSell {
		return exchange.OrderRequest{}, fmt.Errorf("%w: side %q", ErrInvalidOrder, req.Side)
	}
	if req.Qty <= 0 {
		return exchange.OrderRequest{}, fmt.Errorf("%w: qty must be positive", ErrInvalidOrder)
	}

	typ := exchange.OrderType(strings.ToUpper(req.Type))
	if typ == "" {
		typ = exchange.OrderTypeMarket
		if req.Price > 0 {
			typ = exchange.OrderTypeLimit
		}
	}
	switch typ {
	case exchange.OrderTypeMarket:
	case exchange.OrderTypeLimit, exchange.OrderTypeLimitMaker:
		if req.Price <= 0 {
			return exchange.OrderRequest{}, fmt.Errorf("%w: %s order requires price", ErrInvalidOrder, typ)
		}
	default:
		return exchange.OrderRequest{}, fmt.Errorf("%w: order type %q", ErrInvalidOrder, req.Type)
	}

	clientID := req.ClientOrderID
	if clientID == "" {
		clientID = uuid.NewString()
	}

	out := exchange.OrderRequest{
		Symbol:   symbol,
		Side:     exchange.Side(side),
		Type:     typ,
		Qty:      req.Qty,
		Price:    req.Price,
		ClientID: clientID,
	}
	if typ != exchange.OrderTypeMarket {
		out.TimeInForce = exchange.TIFGTC
	}
	if tif, ok := req.Extra["time_in_force"].(string); ok && tif != "" {
		out.TimeInForce = exchange.TimeInForce(strings.ToUpper(tif))
	}
	if ro, ok := req.Extra["reduce_only"].(bool); ok {
		out.ReduceOnly = ro
	}
	return out, nil
}
