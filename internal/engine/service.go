// Package engine is the composition root: it owns the collaborators, binds
// them into the event engine and exposes the facade the outer layers use.
package engine

import (
	"context"

	"trading-engine/internal/events"
	"trading-engine/internal/position"
	"trading-engine/internal/risk"
	"trading-engine/internal/strategy"
)

// Service defines the operations the API layer may use.
// The API layer should only interact with the engine through this interface.
type Service interface {
	// Bus
	Publish(t events.EventType, payload events.Payload) error
	HandleIntent(ctx context.Context, t events.IntentType, payload any) (string, error)
	Running() bool

	// Orders
	SendOrder(ctx context.Context, req events.OrderRequest) (string, error)
	CancelOrder(ctx context.Context, req events.CancelRequest) error

	// Queries
	Status() SystemStatus
	Symbol(symbol string) (events.SymbolState, bool)
	Positions() []position.Position
	OpenOrders() []events.OrderData
	RiskMetrics() risk.Metrics

	// Risk Commands
	RiskConfig() risk.Config
	UpdateRiskConfig(cfg risk.Config) error
	ResetRiskDaily()

	// Strategy Commands
	Strategies() []strategy.Info
	PauseStrategy(id string) error
	ResumeStrategy(id string) error
}

var _ Service = (*MainEngine)(nil)
