package service

import (
	"context"
	"fmt"
	"log/slog"

	"order_engine/internal/domain"
	"order_engine/internal/engine"
	"order_engine/internal/infra"
	"order_engine/internal/queue"

	"github.com/shopspring/decimal"
)

// SubmitOrderRequest is the raw order intent as received from a client.
type SubmitOrderRequest struct {
	Type     string           `json:"type"`
	TokenIn  string           `json:"tokenIn"`
	TokenOut string           `json:"tokenOut"`
	Amount   *decimal.Decimal `json:"amount"`
}

// OrderService is the use-case layer behind the HTTP API.
type OrderService struct {
	orch    *engine.Orchestrator
	store   domain.OrderRepository
	queue   queue.Queue
	opts    queue.Options
	metrics *infra.Metrics
	logger  *slog.Logger
}

// NewOrderService creates an OrderService. Jobs are enqueued with opts.
func NewOrderService(orch *engine.Orchestrator, store domain.OrderRepository, q queue.Queue, opts queue.Options, metrics *infra.Metrics) *OrderService {
	if metrics == nil {
		metrics = &infra.Metrics{}
	}
	return &OrderService{
		orch:    orch,
		store:   store,
		queue:   q,
		opts:    opts,
		metrics: metrics,
		logger:  slog.Default().With("module", "order_service"),
	}
}

// Validate converts a request into an intent. Only market orders are accepted.
func Validate(req *SubmitOrderRequest) (domain.OrderIntent, error) {
	if req == nil {
		return domain.OrderIntent{}, domain.NewValidationError("body", "Missing body")
	}
	if req.Type == "" || req.TokenIn == "" || req.TokenOut == "" || req.Amount == nil || req.Amount.IsZero() {
		return domain.OrderIntent{}, domain.NewValidationError("fields", "Missing fields: type, tokenIn, tokenOut, amount")
	}
	if domain.OrderType(req.Type) != domain.OrderTypeMarket {
		return domain.OrderIntent{}, domain.NewValidationError("type", "Only 'market' order supported")
	}
	if req.Amount.IsNegative() {
		return domain.OrderIntent{}, domain.NewValidationError("amount", "amount must be positive")
	}

	return domain.OrderIntent{
		Type:     domain.OrderTypeMarket,
		TokenIn:  req.TokenIn,
		TokenOut: req.TokenOut,
		Amount:   *req.Amount,
	}, nil
}

// Submit validates, persists and enqueues a new order.
func (s *OrderService) Submit(ctx context.Context, req *SubmitOrderRequest) (*domain.Order, error) {
	intent, err := Validate(req)
	if err != nil {
		return nil, err
	}

	order, err := s.orch.Create(ctx, intent)
	if err != nil {
		return nil, err
	}

	job, err := s.queue.Enqueue(ctx, order.ID, s.opts)
	if err != nil {
		// The order stays pending; nothing will pick it up.
		s.logger.Error("Enqueue failed", slog.String("order_id", order.ID), slog.Any("error", err))
		return nil, fmt.Errorf("enqueue order %s: %w", order.ID, err)
	}

	s.metrics.RecordSubmitted()
	s.logger.Debug("Order queued", slog.String("order_id", order.ID), slog.String("job_id", job.ID))
	return order, nil
}

// List returns every order, newest first.
func (s *OrderService) List(ctx context.Context) ([]domain.Order, error) {
	return s.store.List(ctx)
}

// Get returns one order or *domain.NotFoundError.
func (s *OrderService) Get(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, &domain.NotFoundError{ID: id}
	}
	return order, nil
}
