package bus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"trading-engine/internal/events"
	"trading-engine/pkg/i18n"
)

var (
	ErrNotConfigured = errors.New("event engine not configured")
	ErrUnknownIntent = errors.New("unknown intent type")
	ErrNoGateway     = errors.New("no gateway registered")
	ErrIntentPayload = errors.New("intent payload does not match intent type")
)

// HandleIntent executes in on the caller's goroutine without touching the
// queue, except for log intents which are published as log events.
//
// place_order returns the gateway's order id. cancel_order and log return "".
func (e *EventEngine) HandleIntent(ctx context.Context, in events.Intent) (string, error) {
	reg := e.registry.Load()
	if reg == nil {
		return "", ErrNotConfigured
	}

	switch in.Type {
	case events.IntentPlaceOrder:
		req, ok := in.Data.(events.OrderRequest)
		if !ok {
			return "", fmt.Errorf("%w: %T for %s", ErrIntentPayload, in.Data, in.Type)
		}
		if reg.Gateway == nil {
			return "", ErrNoGateway
		}
		timer := time.Now()
		id, err := reg.Gateway.SendOrder(ctx, req)
		e.metrics.OrderLatency.RecordDuration(time.Since(timer))
		if err != nil {
			e.metrics.IncrementOrderErrors()
			return "", err
		}
		e.metrics.IncrementOrders()
		return id, nil

	case events.IntentCancelOrder:
		req, ok := in.Data.(events.CancelRequest)
		if !ok {
			return "", fmt.Errorf("%w: %T for %s", ErrIntentPayload, in.Data, in.Type)
		}
		if reg.Gateway == nil {
			return "", ErrNoGateway
		}
		return "", reg.Gateway.CancelOrder(ctx, req)

	case events.IntentLog:
		var d events.LogData
		switch v := in.Data.(type) {
		case events.LogData:
			d = v
		case string:
			d = events.LogData{Msg: v}
		default:
			return "", fmt.Errorf("%w: %T for %s", ErrIntentPayload, in.Data, in.Type)
		}
		if d.Level == "" {
			d.Level = events.LevelInfo
		}
		if d.Time.IsZero() {
			d.Time = time.Now()
		}
		return "", e.Publish(events.NewLogEvent(d))

	default:
		log.Printf(i18n.Get("IntentUnsupported"), in.Type)
		return "", fmt.Errorf("%w: %q", ErrUnknownIntent, in.Type)
	}
}
