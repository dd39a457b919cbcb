// Package market produces price updates for local runs.
package market

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"trading-engine/internal/events"
	"trading-engine/pkg/i18n"
)

// Publisher accepts typed payloads for the bus.
type Publisher interface {
	Publish(t events.EventType, payload events.Payload) error
}

// MockFeed generates synthetic ticks for local development.
type MockFeed struct {
	Bus        Publisher
	Symbols    []string
	StartPrice float64
	Step       float64
	Interval   time.Duration

	wg sync.WaitGroup
}

// Start launches the random walk. It returns immediately; the feed stops when
// ctx is done. Wait blocks until it has.
func (m *MockFeed) Start(ctx context.Context) {
	if m.Bus == nil {
		log.Println("mock feed: bus not set")
		return
	}
	if len(m.Symbols) == 0 {
		m.Symbols = []string{"BTCUSDT"}
	}
	start := m.StartPrice
	if start == 0 {
		start = 100.0
	}
	if m.Step == 0 {
		m.Step = 0.5
	}
	if m.Interval == 0 {
		m.Interval = time.Second
	}

	prices := make(map[string]float64, len(m.Symbols))
	for _, sym := range m.Symbols {
		prices[sym] = start
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	log.Printf(i18n.Get("MockFeedStarted"), m.Symbols)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		t := time.NewTicker(m.Interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				for _, sym := range m.Symbols {
					// simple random walk, floored at one step
					p := prices[sym] + (rng.Float64()*2-1)*m.Step
					if p < m.Step {
						p = m.Step
					}
					prices[sym] = p
					spread := m.Step / 10
					err := m.Bus.Publish(events.EventPriceUpdate, events.TickData{
						Symbol:    sym,
						LastPrice: p,
						BidPrice:  p - spread,
						AskPrice:  p + spread,
						Volume:    rng.Float64() * 10,
						Time:      now,
					})
					if err != nil {
						log.Printf("mock feed: publish %s: %v", sym, err)
					}
				}
			}
		}
	}()
}

// Wait blocks until the feed goroutine has exited.
func (m *MockFeed) Wait() {
	m.wg.Wait()
}
