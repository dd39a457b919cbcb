package common

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType denotes basic order types.
type OrderType string

const (
	OrderTypeMarket     OrderType = "MARKET"
	OrderTypeLimit      OrderType = "LIMIT"
	OrderTypeLimitMaker OrderType = "LIMIT_MAKER"
)

// TimeInForce captures TIF semantics.
type TimeInForce string

const (
	TIFGTC TimeInForce = "GTC" // Good Till Cancelled
	TIFIOC TimeInForce = "IOC" // Immediate Or Cancel
	TIFFOK TimeInForce = "FOK" // Fill Or Kill
)

// OrderStatus normalizes venue status into a small set.
type OrderStatus string

const (
	StatusNew      OrderStatus = "NEW"
	StatusPartial  OrderStatus = "PARTIALLY_FILLED"
	StatusFilled   OrderStatus = "FILLED"
	StatusCanceled OrderStatus = "CANCELED"
	StatusRejected OrderStatus = "REJECTED"
	StatusExpired  OrderStatus = "EXPIRED"
)

// OrderRequest captures an order to be sent to a venue.
type OrderRequest struct {
	Symbol      string
	Side        Side
	Type        OrderType
	Qty         float64
	Price       float64 // required for LIMIT
	TimeInForce TimeInForce
	ClientID    string
	ReduceOnly  bool
}

// OrderResult returns the venue ack.
type OrderResult struct {
	ExchangeOrderID string
	Status          OrderStatus
	ClientID        string
	FilledQty       float64
	AvgPrice        float64
}

// Fill represents a trade fill update.
type Fill struct {
	ExchangeOrderID string
	TradeID         string
	Symbol          string
	Side            Side
	Qty             float64
	Price           float64
	Fee             float64
}
