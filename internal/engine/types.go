package engine

import (
	"time"

	"trading-engine/internal/bus"
	"trading-engine/internal/events"
	"trading-engine/internal/monitor"
)

// BusStatus describes the event engine.
type BusStatus struct {
	Running    bool                          `json:"running"`
	Configured bool                          `json:"configured"`
	QueueDepth int                           `json:"queue_depth"`
	QueueSize  int                           `json:"queue_size"`
	Overflow   bus.OverflowPolicy            `json:"overflow"`
	Timer      string                        `json:"timer_interval"`
	Routes     map[events.EventType][]string `json:"routes"`
}

// OrderFlowStatus describes the gateway's order bookkeeping.
type OrderFlowStatus struct {
	Tracked   int    `json:"tracked"`
	Throttled uint64 `json:"throttled"`
}

// SystemStatus represents the system runtime status.
type SystemStatus struct {
	Mode        string                  `json:"mode"`
	Venue       string                  `json:"venue"`
	Connected   bool                    `json:"connected"`
	Symbols     []string                `json:"symbols"`
	UseMockFeed bool                    `json:"use_mock_feed"`
	Version     string                  `json:"version"`
	ServerTime  time.Time               `json:"server_time"`
	Bus         BusStatus               `json:"bus"`
	Orders      OrderFlowStatus         `json:"orders"`
	Metrics     monitor.MetricsSnapshot `json:"metrics"`
}
