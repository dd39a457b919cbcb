package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"trading-engine/internal/bus"
	"trading-engine/internal/events"
	"trading-engine/internal/gateway"
	"trading-engine/internal/risk"
	"trading-engine/internal/strategy"

	"github.com/gin-gonic/gin"
)

type eventRequest struct {
	Type events.EventType `json:"type" binding:"required"`
	Data json.RawMessage  `json:"data"`
}

type intentRequest struct {
	Type events.IntentType `json:"type" binding:"required"`
	Data json.RawMessage   `json:"data"`
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}

// respondEngineError maps engine sentinel errors onto HTTP statuses.
func respondEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gateway.ErrInvalidOrder):
		respondError(c, http.StatusBadRequest, "INVALID_ORDER", err.Error())
	case errors.Is(err, risk.ErrInvalidConfig):
		respondError(c, http.StatusBadRequest, "INVALID_RISK_CONFIG", err.Error())
	case errors.Is(err, events.ErrPayloadMismatch), errors.Is(err, bus.ErrIntentPayload):
		respondError(c, http.StatusBadRequest, "PAYLOAD_MISMATCH", err.Error())
	case errors.Is(err, bus.ErrUnknownIntent):
		respondError(c, http.StatusBadRequest, "UNKNOWN_INTENT", err.Error())
	case errors.Is(err, gateway.ErrUnknownOrder):
		respondError(c, http.StatusNotFound, "ORDER_NOT_FOUND", err.Error())
	case errors.Is(err, strategy.ErrStrategyNotFound):
		respondError(c, http.StatusNotFound, "STRATEGY_NOT_FOUND", err.Error())
	case errors.Is(err, gateway.ErrNoQuote):
		respondError(c, http.StatusConflict, "NO_REFERENCE_PRICE", err.Error())
	case errors.Is(err, gateway.ErrRateLimited):
		respondError(c, http.StatusTooManyRequests, "ORDER_RATE_LIMITED", err.Error())
	case errors.Is(err, bus.ErrQueueFull):
		respondError(c, http.StatusServiceUnavailable, "QUEUE_FULL", err.Error())
	case errors.Is(err, gateway.ErrNotConnected),
		errors.Is(err, gateway.ErrNoVenue),
		errors.Is(err, bus.ErrNoGateway),
		errors.Is(err, bus.ErrNotConfigured):
		respondError(c, http.StatusServiceUnavailable, "ENGINE_UNAVAILABLE", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(c, http.StatusGatewayTimeout, "TIMEOUT", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "ENGINE_ERROR", err.Error())
	}
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, errors.New("data is required")
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode data: %w", err)
	}
	return v, nil
}

// decodeEventPayload turns the JSON body of an event into the payload variant
// that matches t. Missing timestamps are filled with the receive time and
// fills or order updates that would corrupt position state are rejected.
func decodeEventPayload(t events.EventType, raw json.RawMessage) (events.Payload, error) {
	now := time.Now()
	switch t {
	case events.EventPriceUpdate:
		d, err := decode[events.TickData](raw)
		d.Symbol = events.NormalizeSymbol(d.Symbol)
		if d.Time.IsZero() {
			d.Time = now
		}
		return d, err
	case events.EventOrderUpdate:
		d, err := decode[events.OrderData](raw)
		if err != nil {
			return nil, err
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		d.Symbol = events.NormalizeSymbol(d.Symbol)
		if d.Time.IsZero() {
			d.Time = now
		}
		return d, nil
	case events.EventTradeFill:
		d, err := decode[events.TradeData](raw)
		if err != nil {
			return nil, err
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		d.Symbol = events.NormalizeSymbol(d.Symbol)
		if d.Time.IsZero() {
			d.Time = now
		}
		return d, nil
	case events.EventLog:
		d, err := decode[events.LogData](raw)
		if d.Level == "" {
			d.Level = events.LevelInfo
		}
		if d.Time.IsZero() {
			d.Time = now
		}
		return d, err
	case events.EventRiskAlert:
		d, err := decode[events.RiskAlertData](raw)
		if d.Severity == "" {
			d.Severity = events.SeverityWarn
		}
		if d.Time.IsZero() {
			d.Time = now
		}
		return d, err
	case events.EventTimerTick:
		d := events.TimerData{Time: now}
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &d); err != nil {
				return nil, fmt.Errorf("decode data: %w", err)
			}
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", t)
	}
}

// decodeIntentPayload returns the Go value HandleIntent expects for t.
// Unknown intent types pass the raw body through so the engine reports them.
func decodeIntentPayload(t events.IntentType, raw json.RawMessage) (any, error) {
	switch t {
	case events.IntentPlaceOrder:
		return decode[events.OrderRequest](raw)
	case events.IntentCancelOrder:
		return decode[events.CancelRequest](raw)
	case events.IntentLog:
		if msg, err := decode[string](raw); err == nil {
			return msg, nil
		}
		return decode[events.LogData](raw)
	default:
		return raw, nil
	}
}

// --- Queries ---

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.Status())
}

func (s *Server) getMetrics(c *gin.Context) {
	if s.Metrics != nil {
		c.JSON(http.StatusOK, s.Metrics.GetSnapshot())
		return
	}
	c.JSON(http.StatusOK, s.Engine.Status().Metrics)
}

func (s *Server) getSymbol(c *gin.Context) {
	sym := c.Param("symbol")
	state, ok := s.Engine.Symbol(sym)
	if !ok {
		respondError(c, http.StatusNotFound, "SYMBOL_NOT_FOUND", fmt.Sprintf("no market data for %s", sym))
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) getPositions(c *gin.Context) {
	c.JSON(http.StatusOK, nonNil(s.Engine.Positions()))
}

func (s *Server) getOrders(c *gin.Context) {
	c.JSON(http.StatusOK, nonNil(s.Engine.OpenOrders()))
}

func (s *Server) getRiskMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.RiskMetrics())
}

func (s *Server) getRiskConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.RiskConfig())
}

// updateRiskConfig replaces all thresholds. Omitted fields become zero and
// disable their check.
func (s *Server) updateRiskConfig(c *gin.Context) {
	var cfg risk.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}
	if err := s.Engine.UpdateRiskConfig(cfg); err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Engine.RiskConfig())
}

func (s *Server) resetRiskDaily(c *gin.Context) {
	s.Engine.ResetRiskDaily()
	c.JSON(http.StatusOK, s.Engine.RiskMetrics())
}

func (s *Server) getStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, nonNil(s.Engine.Strategies()))
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

// --- Bus ---

// publishEvent enqueues an event for asynchronous dispatch.
func (s *Server) publishEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}
	if !req.Type.Valid() {
		respondError(c, http.StatusBadRequest, "INVALID_EVENT_TYPE", fmt.Sprintf("unknown event type %q", req.Type))
		return
	}
	payload, err := decodeEventPayload(req.Type, req.Data)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}
	if err := s.Engine.Publish(req.Type, payload); err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "type": req.Type})
}

// handleIntent executes an intent synchronously and returns its result.
func (s *Server) handleIntent(c *gin.Context) {
	var req intentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}
	payload, err := decodeIntentPayload(req.Type, req.Data)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}
	id, err := s.Engine.HandleIntent(c.Request.Context(), req.Type, payload)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	resp := gin.H{"status": "ok", "type": req.Type}
	if id != "" {
		resp["order_id"] = id
	}
	c.JSON(http.StatusOK, resp)
}

// --- Orders ---

func (s *Server) createOrder(c *gin.Context) {
	var req events.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}
	id, err := s.Engine.SendOrder(c.Request.Context(), req)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order_id": id})
}

func (s *Server) cancelOrder(c *gin.Context) {
	req := events.CancelRequest{
		OrderID: c.Param("id"),
		Symbol:  c.Query("symbol"),
	}
	if err := s.Engine.CancelOrder(c.Request.Context(), req); err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancel_requested", "order_id": req.OrderID})
}

// --- Strategy Actions ---

func (s *Server) pauseStrategy(c *gin.Context) {
	if err := s.Engine.PauseStrategy(c.Param("id")); err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "paused"})
}

func (s *Server) resumeStrategy(c *gin.Context) {
	if err := s.Engine.ResumeStrategy(c.Param("id")); err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resumed"})
}
