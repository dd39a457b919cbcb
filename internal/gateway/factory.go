package gateway

import (
	"fmt"
	"strings"

	"trading-engine/internal/events"
	exchange "trading-engine/pkg/exchanges/common"
)

// VenuePaper is the built-in simulated venue.
const VenuePaper = "paper"

// DefaultFactory creates a venue client by name.
func DefaultFactory(venue string, paper PaperConfig, publish func(events.Event) error, quotes QuoteFunc) (exchange.Client, error) {
	switch strings.ToLower(venue) {
	case "", VenuePaper:
		return NewPaperClient(paper, publish, quotes), nil
	default:
		return nil, fmt.Errorf("unsupported venue: %s", venue)
	}
}
