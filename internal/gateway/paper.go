package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"trading-engine/internal/events"
	exchange "trading-engine/pkg/exchanges/common"
)

var ErrNoQuote = errors.New("no reference price for market order")

// PaperConfig tunes the simulated venue.
type PaperConfig struct {
	FeeRate     float64 // decimal, e.g. 0.0004 = 4 bps
	SlippageBps float64 // basis points of adverse slippage applied on fills
}

// QuoteFunc returns the latest known price for a symbol.
type QuoteFunc func(symbol string) (float64, bool)

type restingOrder struct {
	id  string
	req exchange.OrderRequest
	at  time.Time
}

// PaperClient is an in-memory venue. Marketable orders fill immediately at
// the reference price; other limit orders rest until a quote crosses them.
// Fills are reported back through publish as order_update and trade_fill
// events. Reduce-only orders are checked against the net quantity the venue
// itself has filled per symbol.
type PaperClient struct {
	cfg     PaperConfig
	publish func(events.Event) error
	quotes  QuoteFunc

	mu        sync.Mutex
	connected bool
	resting   map[string]*restingOrder
	net       map[string]float64 // signed filled qty per symbol
	rng       *rand.Rand
}

// NewPaperClient creates a paper venue. quotes may be nil, in which case
// market orders need an explicit price.
func NewPaperClient(cfg PaperConfig, publish func(events.Event) error, quotes QuoteFunc) *PaperClient {
	return &PaperClient{
		cfg:     cfg,
		publish: publish,
		quotes:  quotes,
		resting: make(map[string]*restingOrder),
		net:     make(map[string]float64),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *PaperClient) Name() string { return "paper" }

func (p *PaperClient) Connect(context.Context) error {
	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()
	return nil
}

func (p *PaperClient) Close() error {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	return nil
}

// OpenOrders returns the number of resting orders.
func (p *PaperClient) OpenOrders() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.resting)
}

// SubmitOrder acknowledges req and fills it when marketable.
func (p *PaperClient) SubmitOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return exchange.OrderResult{}, err
	}

	var out []events.Event
	defer func() { p.emit(out) }()

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return exchange.OrderResult{}, ErrNotConnected
	}

	id := uuid.NewString()
	if req.ReduceOnly {
		room := p.reducible(req.Symbol, req.Side)
		if room <= 0 {
			out = append(out, orderEvent(id, req, events.StatusRejected, 0, req.Price))
			return exchange.OrderResult{}, fmt.Errorf("%w: reduce-only order would not reduce %s position", ErrInvalidOrder, req.Symbol)
		}
		req.Qty = math.Min(req.Qty, room)
	}
	ref, haveRef := p.quote(req.Symbol)
	res := exchange.OrderResult{ExchangeOrderID: id, ClientID: req.ClientID}

	switch req.Type {
	case exchange.OrderTypeMarket:
		if !haveRef {
			if req.Price <= 0 {
				return exchange.OrderResult{}, fmt.Errorf("%w: %s", ErrNoQuote, req.Symbol)
			}
			ref = req.Price
		}
		price := p.slip(req.Side, ref)
		out = p.fill(id, req, price)
		res.Status, res.FilledQty, res.AvgPrice = exchange.StatusFilled, req.Qty, price
		return res, nil
	}

	if haveRef && crosses(req.Side, req.Price, ref) {
		if req.Type == exchange.OrderTypeLimitMaker {
			out = append(out, orderEvent(id, req, events.StatusRejected, 0, req.Price))
			return exchange.OrderResult{}, fmt.Errorf("%w: post-only order would take liquidity", ErrInvalidOrder)
		}
		out = p.fill(id, req, ref)
		res.Status, res.FilledQty, res.AvgPrice = exchange.StatusFilled, req.Qty, ref
		return res, nil
	}

	if req.TimeInForce == exchange.TIFIOC || req.TimeInForce == exchange.TIFFOK {
		out = append(out, orderEvent(id, req, events.StatusExpired, 0, req.Price))
		res.Status = exchange.StatusExpired
		return res, nil
	}

	p.resting[id] = &restingOrder{id: id, req: req, at: time.Now()}
	out = append(out, orderEvent(id, req, events.StatusNew, 0, req.Price))
	res.Status = exchange.StatusNew
	return res, nil
}

// CancelOrder removes a resting order and reports it as canceled.
func (p *PaperClient) CancelOrder(ctx context.Context, symbol, exchangeOrderID string) error {
	var out []events.Event
	defer func() { p.emit(out) }()

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return ErrNotConnected
	}
	o, ok := p.resting[exchangeOrderID]
	if !ok || (symbol != "" && o.req.Symbol != symbol) {
		return fmt.Errorf("%w: %s", ErrUnknownOrder, exchangeOrderID)
	}
	delete(p.resting, exchangeOrderID)
	out = append(out, orderEvent(o.id, o.req, events.StatusCanceled, 0, o.req.Price))
	return nil
}

// OnQuote fills resting orders that the new price crosses. A crossing
// reduce-only order whose position is already gone expires instead.
func (p *PaperClient) OnQuote(symbol string, price float64) []string {
	var out []events.Event
	defer func() { p.emit(out) }()

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return nil
	}
	var done []string
	for _, o := range p.crossing(symbol, price) {
		delete(p.resting, o.id)
		done = append(done, o.id)
		req := o.req
		if req.ReduceOnly {
			room := p.reducible(req.Symbol, req.Side)
			if room <= 0 {
				out = append(out, orderEvent(o.id, req, events.StatusExpired, 0, req.Price))
				continue
			}
			req.Qty = math.Min(req.Qty, room)
		}
		out = append(out, p.fill(o.id, req, req.Price)...)
	}
	return done
}

// crossing returns the resting orders on symbol that price crosses, oldest
// first. Caller holds p.mu.
func (p *PaperClient) crossing(symbol string, price float64) []*restingOrder {
	var res []*restingOrder
	for _, o := range p.resting {
		if o.req.Symbol == symbol && crosses(o.req.Side, o.req.Price, price) {
			res = append(res, o)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].at.Before(res[j].at) })
	return res
}

// reducible is how much of the symbol's position an order on side can close.
// Caller holds p.mu.
func (p *PaperClient) reducible(symbol string, side exchange.Side) float64 {
	net := p.net[symbol]
	switch {
	case side == exchange.SideSell && net > 0:
		return net
	case side == exchange.SideBuy && net < 0:
		return -net
	}
	return 0
}

func (p *PaperClient) quote(symbol string) (float64, bool) {
	if p.quotes == nil {
		return 0, false
	}
	return p.quotes(symbol)
}

// slip applies adverse slippage. Caller holds p.mu.
func (p *PaperClient) slip(side exchange.Side, price float64) float64 {
	frac := p.cfg.SlippageBps / 10000.0
	if frac <= 0 {
		return price
	}
	noise := p.rng.Float64() * frac
	if side == exchange.SideBuy {
		return price * (1 + noise)
	}
	return price * (1 - noise)
}

// fill reports req as fully filled at price. Caller holds p.mu.
func (p *PaperClient) fill(id string, req exchange.OrderRequest, price float64) []events.Event {
	now := time.Now()
	if req.Side == exchange.SideBuy {
		p.net[req.Symbol] += req.Qty
	} else {
		p.net[req.Symbol] -= req.Qty
	}
	if math.Abs(p.net[req.Symbol]) < 1e-12 {
		delete(p.net, req.Symbol)
	}
	trade := events.TradeData{
		TradeID: uuid.NewString(),
		OrderID: id,
		Symbol:  req.Symbol,
		Side:    events.Side(req.Side),
		Qty:     req.Qty,
		Price:   price,
		Fee:     price * req.Qty * p.cfg.FeeRate,
		Time:    now,
	}
	return []events.Event{
		orderEvent(id, req, events.StatusFilled, req.Qty, price),
		events.NewTradeEvent(trade),
	}
}

func (p *PaperClient) emit(evs []events.Event) {
	if p.publish == nil {
		return
	}
	for _, e := range evs {
		if err := p.publish(e); err != nil {
			log.Printf("[PAPER] publish %s failed: %v", e.Type, err)
		}
	}
}

func crosses(side exchange.Side, limit, market float64) bool {
	if side == exchange.SideBuy {
		return market <= limit
	}
	return market >= limit
}

func orderEvent(id string, req exchange.OrderRequest, status events.OrderStatus, filled, price float64) events.Event {
	return events.NewOrderEvent(events.OrderData{
		OrderID:       id,
		ClientOrderID: req.ClientID,
		Symbol:        req.Symbol,
		Side:          events.Side(req.Side),
		Qty:           req.Qty,
		FilledQty:     filled,
		Price:         price,
		Status:        status,
		Time:          time.Now(),
	})
}
