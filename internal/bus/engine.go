// Package bus implements the event engine: a FIFO queue drained by one worker
// goroutine through a fixed routing table, plus a timer goroutine that injects
// timer_tick events at a wall-clock cadence.
package bus

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"trading-engine/internal/events"
	"trading-engine/internal/monitor"
	"trading-engine/pkg/i18n"
)

const (
	DefaultTimerInterval = time.Second
	DefaultQueueSize     = 65536
)

var (
	ErrRunning           = errors.New("event engine is running")
	ErrAlreadyConfigured = errors.New("event engine already configured")
	ErrNilRegistry       = errors.New("registry is nil")
)

// Config holds the engine tuning knobs.
type Config struct {
	TimerInterval time.Duration
	QueueSize     int
	Overflow      OverflowPolicy
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		TimerInterval: DefaultTimerInterval,
		QueueSize:     DefaultQueueSize,
		Overflow:      OverflowReject,
	}
}

// Option customizes an EventEngine at construction.
type Option func(*EventEngine)

// WithMetrics records bus counters into m instead of a private instance.
func WithMetrics(m *monitor.SystemMetrics) Option {
	return func(e *EventEngine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithObserver installs a callback run on the worker after each dispatch.
func WithObserver(fn func(events.Event)) Option {
	return func(e *EventEngine) { e.observer = fn }
}

// EventEngine serializes published events into one dispatch order.
//
// The zero value is not usable; construct with New.
type EventEngine struct {
	cfg      Config
	queue    *Queue
	registry atomic.Pointer[Registry]
	routes   atomic.Pointer[routeTable]
	metrics  *monitor.SystemMetrics
	observer func(events.Event)

	lifecycle sync.Mutex // serializes Start/Stop/Configure
	running   atomic.Bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
	tickSeq   atomic.Uint64
}

// New creates a stopped engine bound to reg. A nil reg yields an
// unconfigured engine that drops every event it dequeues until Configure.
func New(cfg Config, reg *Registry, opts ...Option) *EventEngine {
	if cfg.TimerInterval <= 0 {
		cfg.TimerInterval = DefaultTimerInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Overflow == "" {
		cfg.Overflow = OverflowReject
	}

	e := &EventEngine{
		cfg:     cfg,
		queue:   NewQueue(cfg.QueueSize, cfg.Overflow),
		metrics: monitor.NewSystemMetrics(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.metrics.SetQueueDepth(e.queue.Len)

	if reg != nil {
		e.bind(reg)
	}
	return e
}

// Configure binds the consumer registry. It may be called once, before Start.
func (e *EventEngine) Configure(reg *Registry) error {
	if reg == nil {
		return ErrNilRegistry
	}

	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if e.running.Load() {
		return ErrRunning
	}
	if e.routes.Load() != nil {
		return ErrAlreadyConfigured
	}
	e.bind(reg)
	return nil
}

func (e *EventEngine) bind(reg *Registry) {
	table := buildRoutes(reg)
	e.registry.Store(reg)
	e.routes.Store(&table)
}

// Configured reports whether a registry has been bound.
func (e *EventEngine) Configured() bool {
	return e.routes.Load() != nil
}

// Start launches the worker and timer goroutines. Calling Start on a running
// engine is a no-op.
func (e *EventEngine) Start() {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if e.running.Load() {
		return
	}

	stop := make(chan struct{})
	e.stopCh = stop
	e.wg.Add(2)
	go e.run(stop)
	go e.runTimer(stop)
	e.running.Store(true)

	log.Printf(i18n.Get("BusStarted"), e.cfg.TimerInterval, e.queue.Cap(), e.queue.Policy())
}

// Stop signals both goroutines and blocks until they have exited. A handler
// in progress is allowed to finish. Calling Stop on a stopped engine is a
// no-op. Stop must not be called from inside a consumer.
func (e *EventEngine) Stop() {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if !e.running.Load() {
		return
	}

	close(e.stopCh)
	e.wg.Wait()
	e.stopCh = nil
	e.running.Store(false)

	log.Println(i18n.Get("BusStopped"))
}

// Running reports whether the worker and timer are active.
func (e *EventEngine) Running() bool {
	return e.running.Load()
}

// Publish enqueues ev for asynchronous dispatch. It is safe from any
// goroutine, including from inside a consumer.
func (e *EventEngine) Publish(ev events.Event) error {
	evicted, err := e.queue.Enqueue(ev)
	if evicted > 0 {
		for i := 0; i < evicted; i++ {
			e.metrics.IncrementOverflowDropped()
		}
		log.Printf(i18n.Get("EventsEvicted"), evicted)
	}
	if err != nil {
		e.metrics.IncrementRejected()
		return err
	}
	e.metrics.IncrementPublished()
	return nil
}

// Len returns the number of queued events.
func (e *EventEngine) Len() int {
	return e.queue.Len()
}

// Metrics exposes the engine counters.
func (e *EventEngine) Metrics() *monitor.SystemMetrics {
	return e.metrics
}

// Config returns the effective configuration.
func (e *EventEngine) Config() Config {
	return e.cfg
}

// Routes returns consumer names per event type in dispatch order.
func (e *EventEngine) Routes() map[events.EventType][]string {
	table := e.routes.Load()
	if table == nil {
		return nil
	}
	out := make(map[events.EventType][]string, len(*table))
	for _, et := range events.EventTypes {
		out[et] = table.names(et)
	}
	return out
}

func (e *EventEngine) run(stop <-chan struct{}) {
	defer e.wg.Done()

	in := e.queue.Chan()
	for {
		select {
		case <-stop:
			return
		default:
		}

		select {
		case <-stop:
			return
		case ev := <-in:
			e.dispatch(ev)
		}
	}
}

func (e *EventEngine) runTimer(stop <-chan struct{}) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.TimerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			seq := e.tickSeq.Add(1)
			ev := events.NewTimerEvent(events.TimerData{Time: now, Seq: seq})
			// Ticks never wait for or evict other events.
			if err := e.queue.TryEnqueue(ev); err != nil {
				e.metrics.IncrementTimerSkipped()
				log.Printf(i18n.Get("TimerTickSkipped"), seq, err)
				continue
			}
			e.metrics.IncrementTimerTicks()
			e.metrics.IncrementPublished()
		}
	}
}

func (e *EventEngine) dispatch(ev events.Event) {
	table := e.routes.Load()
	if table == nil {
		e.metrics.IncrementDroppedUnconfigured()
		return
	}

	timer := monitor.NewTimer(e.metrics.DispatchLatency)
	for _, r := range (*table)[ev.Type] {
		e.invoke(r, ev)
	}
	timer.Stop()
	e.metrics.IncrementDispatched()

	if e.observer != nil {
		e.invoke(route{name: "observer", call: e.observer}, ev)
	}
}

// invoke isolates one consumer call: a panic is logged and counted and the
// remaining consumers still run.
func (e *EventEngine) invoke(r route, ev events.Event) {
	defer func() {
		if p := recover(); p != nil {
			e.metrics.IncrementHandlerFailures()
			log.Printf(i18n.Get("HandlerPanic"), r.name, ev.Type, p)
		}
	}()
	r.call(ev)
}
