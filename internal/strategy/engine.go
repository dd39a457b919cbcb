// Package strategy fans bus reactions out to registered strategies and
// executes the intents they return.
package strategy

import (
	"context"
	"errors"
	"log"
	"sync"

	"trading-engine/internal/events"
	"trading-engine/pkg/i18n"
)

var (
	ErrStrategyNotFound  = errors.New("strategy not found")
	ErrDuplicateStrategy = errors.New("strategy already registered")
)

// IntentHandler executes an intent synchronously.
type IntentHandler func(ctx context.Context, in events.Intent) (string, error)

// Engine orchestrates multiple strategies.
type Engine struct {
	mu         sync.RWMutex
	strategies []Strategy
	paused     map[string]bool // Set of paused strategy IDs
	handle     IntentHandler
}

func NewEngine(handle IntentHandler) *Engine {
	return &Engine{
		paused: make(map[string]bool),
		handle: handle,
	}
}

// Add registers a strategy implementation.
func (e *Engine) Add(s Strategy) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.strategies {
		if existing.ID() == s.ID() {
			return ErrDuplicateStrategy
		}
	}
	e.strategies = append(e.strategies, s)
	log.Printf(i18n.Get("StrategyAdded"), s.Name())
	return nil
}

// List returns registered strategies in registration order.
func (e *Engine) List() []Info {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Info, 0, len(e.strategies))
	for _, s := range e.strategies {
		out = append(out, Info{ID: s.ID(), Name: s.Name(), Paused: e.paused[s.ID()]})
	}
	return out
}

// Lifecycle Methods

func (e *Engine) PauseStrategy(id string) error {
	return e.setPaused(id, true)
}

func (e *Engine) ResumeStrategy(id string) error {
	return e.setPaused(id, false)
}

func (e *Engine) setPaused(id string, paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.strategies {
		if s.ID() != id {
			continue
		}
		if paused {
			e.paused[id] = true
			log.Printf(i18n.Get("StrategyPaused"), s.Name())
		} else {
			delete(e.paused, id)
			log.Printf(i18n.Get("StrategyResumed"), s.Name())
		}
		return nil
	}
	return ErrStrategyNotFound
}

func (e *Engine) OnPriceUpdate(ev events.Event) {
	tick, ok := ev.Tick()
	if !ok {
		return
	}
	for _, s := range e.active() {
		e.run(s, ev.Type, func() ([]events.Intent, error) { return s.OnTick(tick) })
	}
}

func (e *Engine) OnOrderUpdate(ev events.Event) {
	o, ok := ev.Order()
	if !ok {
		return
	}
	for _, s := range e.active() {
		if oa, ok := s.(OrderAware); ok {
			e.run(s, ev.Type, func() ([]events.Intent, error) { return oa.OnOrder(o) })
		}
	}
}

func (e *Engine) OnTradeFill(ev events.Event) {
	t, ok := ev.Trade()
	if !ok {
		return
	}
	for _, s := range e.active() {
		if ta, ok := s.(TradeAware); ok {
			e.run(s, ev.Type, func() ([]events.Intent, error) { return ta.OnTrade(t) })
		}
	}
}

func (e *Engine) OnTimerTick(ev events.Event) {
	t, ok := ev.Timer()
	if !ok {
		return
	}
	for _, s := range e.active() {
		if ta, ok := s.(TimerAware); ok {
			e.run(s, ev.Type, func() ([]events.Intent, error) { return ta.OnTimer(t) })
		}
	}
}

// active snapshots the unpaused strategies so callbacks run without the lock.
func (e *Engine) active() []Strategy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Strategy, 0, len(e.strategies))
	for _, s := range e.strategies {
		if !e.paused[s.ID()] {
			out = append(out, s)
		}
	}
	return out
}

func (e *Engine) run(s Strategy, et events.EventType, react func() ([]events.Intent, error)) {
	intents, err := react()
	if err != nil {
		log.Printf("strategy %s error on %s: %v", s.Name(), et, err)
		return
	}
	if e.handle == nil {
		return
	}
	for _, in := range intents {
		if _, err := e.handle(context.Background(), in); err != nil {
			log.Printf(i18n.Get("StrategyIntentError"), s.Name(), in.Type, err)
		}
	}
}
