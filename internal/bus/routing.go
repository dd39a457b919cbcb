package bus

import "trading-engine/internal/events"

type route struct {
	name string
	call func(events.Event)
}

// routeTable is the fixed dispatch table. It is built once and never mutated.
type routeTable map[events.EventType][]route

// buildRoutes wires the registry into the dispatch table:
//
//	price_update : gateway -> strategy -> risk
//	order_update : position -> strategy -> risk
//	trade_fill   : position -> strategy -> risk
//	log          : log sink
//	risk_alert   : alert sink
//	timer_tick   : strategy -> risk
func buildRoutes(reg *Registry) routeTable {
	t := routeTable{}

	t.add(events.EventPriceUpdate, priceRoute("gateway", reg.Gateway))
	t.add(events.EventPriceUpdate, priceRoute("strategy", reg.Strategy))
	t.add(events.EventPriceUpdate, priceRoute("risk", reg.Risk))

	t.add(events.EventOrderUpdate, orderRoute("position", reg.Position))
	t.add(events.EventOrderUpdate, orderRoute("strategy", reg.Strategy))
	t.add(events.EventOrderUpdate, orderRoute("risk", reg.Risk))

	t.add(events.EventTradeFill, tradeRoute("position", reg.Position))
	t.add(events.EventTradeFill, tradeRoute("strategy", reg.Strategy))
	t.add(events.EventTradeFill, tradeRoute("risk", reg.Risk))

	var logs LogSink = stdSink{}
	if reg.Logs != nil {
		logs = reg.Logs
	}
	t.add(events.EventLog, &route{name: "log", call: func(e events.Event) {
		if d, ok := e.Log(); ok {
			logs.Log(d)
		}
	}})

	var alerts AlertSink = stdSink{}
	if reg.Alerts != nil {
		alerts = reg.Alerts
	}
	t.add(events.EventRiskAlert, &route{name: "alert", call: func(e events.Event) {
		if d, ok := e.RiskAlert(); ok {
			alerts.Alert(d)
		}
	}})

	t.add(events.EventTimerTick, timerRoute("strategy", reg.Strategy))
	t.add(events.EventTimerTick, timerRoute("risk", reg.Risk))

	return t
}

func (t routeTable) add(et events.EventType, r *route) {
	if r == nil {
		return
	}
	t[et] = append(t[et], *r)
}

// names lists the consumers for et in dispatch order.
func (t routeTable) names(et events.EventType) []string {
	out := make([]string, 0, len(t[et]))
	for _, r := range t[et] {
		out = append(out, r.name)
	}
	return out
}

func priceRoute(name string, c any) *route {
	if pc, ok := c.(PriceConsumer); ok {
		return &route{name: name, call: pc.OnPriceUpdate}
	}
	return nil
}

func orderRoute(name string, c any) *route {
	if oc, ok := c.(OrderConsumer); ok {
		return &route{name: name, call: oc.OnOrderUpdate}
	}
	return nil
}

func tradeRoute(name string, c any) *route {
	if tc, ok := c.(TradeConsumer); ok {
		return &route{name: name, call: tc.OnTradeFill}
	}
	return nil
}

func timerRoute(name string, c any) *route {
	if tc, ok := c.(TimerConsumer); ok {
		return &route{name: name, call: tc.OnTimerTick}
	}
	return nil
}
