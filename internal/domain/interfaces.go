package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Quote is one venue's offer for a trade. It is never persisted.
type Quote struct {
	Venue     string          `json:"dex"`
	Price     decimal.Decimal `json:"price"`
	Fee       decimal.Decimal `json:"fee"`
	AmountOut decimal.Decimal `json:"amountOut"`
}

// ExecutionResult is the outcome of a settled swap.
type ExecutionResult struct {
	TxHash        string          `json:"txHash"`
	ExecutedPrice decimal.Decimal `json:"executedPrice"`
}

// Venue is an execution destination offering quotes and swaps.
type Venue interface {
	Name() string
	GetQuote(ctx context.Context, tokenIn, tokenOut string, amount decimal.Decimal) (Quote, error)
	ExecuteSwap(ctx context.Context, order Order) (ExecutionResult, error)
}

// OrderRepository defines durable CRUD over orders.
type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	// Update fails with *NotFoundError when id does not exist.
	Update(ctx context.Context, id string, patch OrderPatch) (*Order, error)
	// Get returns nil, nil when the order does not exist.
	Get(ctx context.Context, id string) (*Order, error)
	// List returns orders newest first.
	List(ctx context.Context) ([]Order, error)
}
