package engine

import (
	"context"
	"fmt"
	"log/slog"

	"order_engine/internal/domain"
)

// Router picks a venue for an order and executes the swap there.
type Router interface {
	Route(ctx context.Context, order domain.Order) (domain.Quote, error)
	ExecuteOnDex(ctx context.Context, venue string, order domain.Order) (domain.ExecutionResult, error)
}

// Processor runs the execution pipeline for one order:
// routing -> building -> submitted -> confirmed, or failed on any error.
type Processor struct {
	orch   *Orchestrator
	store  domain.OrderRepository
	router Router
	logger *slog.Logger
}

// NewProcessor wires the pipeline.
func NewProcessor(orch *Orchestrator, store domain.OrderRepository, router Router) *Processor {
	return &Processor{
		orch:   orch,
		store:  store,
		router: router,
		logger: slog.Default().With("module", "pipeline"),
	}
}

// Process executes orderID once. A missing order returns *domain.NotFoundError
// and is not marked failed. Any later error marks the order failed with
// failOpts applied to that transition, then is returned.
func (p *Processor) Process(ctx context.Context, orderID string, failOpts ...TransitionOption) (res domain.ExecutionResult, err error) {
	order, err := p.store.Get(ctx, orderID)
	if err != nil {
		return domain.ExecutionResult{}, err
	}
	if order == nil {
		return domain.ExecutionResult{}, &domain.NotFoundError{ID: orderID}
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Pipeline panic", slog.String("order_id", orderID), slog.Any("panic", r))
			err = fmt.Errorf("pipeline panic: %v", r)
			res = domain.ExecutionResult{}
		}
		if err != nil {
			p.markFailed(ctx, orderID, err, failOpts)
		}
	}()

	return p.execute(ctx, *order)
}

func (p *Processor) execute(ctx context.Context, order domain.Order) (domain.ExecutionResult, error) {
	if _, err := p.orch.Transition(ctx, order.ID, domain.Routing{}); err != nil {
		return domain.ExecutionResult{}, err
	}

	best, err := p.router.Route(ctx, order)
	if err != nil {
		return domain.ExecutionResult{}, err
	}

	if _, err := p.orch.Transition(ctx, order.ID, domain.Building{ChosenDex: best.Venue}); err != nil {
		return domain.ExecutionResult{}, err
	}
	if _, err := p.orch.Transition(ctx, order.ID, domain.Submitted{}); err != nil {
		return domain.ExecutionResult{}, err
	}

	res, err := p.router.ExecuteOnDex(ctx, best.Venue, order)
	if err != nil {
		return domain.ExecutionResult{}, err
	}

	confirmed := domain.Confirmed{TxHash: res.TxHash, ExecutedPrice: res.ExecutedPrice}
	if _, err := p.orch.Transition(ctx, order.ID, confirmed); err != nil {
		return domain.ExecutionResult{}, err
	}
	return res, nil
}

// markFailed records the failure. Its own error is logged and swallowed so
// the underlying cause reaches the queue.
func (p *Processor) markFailed(ctx context.Context, orderID string, cause error, opts []TransitionOption) {
	if _, err := p.orch.Transition(ctx, orderID, domain.Failed{FailureReason: cause.Error()}, opts...); err != nil {
		p.logger.Error("Failed to mark order failed",
			slog.String("order_id", orderID),
			slog.Any("cause", cause),
			slog.Any("error", err),
		)
	}
}
