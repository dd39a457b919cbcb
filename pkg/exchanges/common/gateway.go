package common

import "context"

// Client abstracts a trading venue connection.
type Client interface {
	Name() string
	Connect(ctx context.Context) error
	Close() error
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	CancelOrder(ctx context.Context, symbol, exchangeOrderID string) error
}

// QuoteListener is implemented by clients that simulate matching against the
// latest observed price. OnQuote returns the ids of orders the quote moved to
// a terminal state.
type QuoteListener interface {
	OnQuote(symbol string, price float64) []string
}
