package engine

import (
	"context"
	"log/slog"
	"time"

	"order_engine/internal/domain"

	"github.com/google/uuid"
)

// Publisher receives every broadcast status transition.
type Publisher interface {
	Publish(orderID string, update domain.StatusUpdate)
}

// Orchestrator owns the order state machine: each transition is one store
// update followed by at most one publish, never the other way round.
type Orchestrator struct {
	store  domain.OrderRepository
	pub    Publisher
	logger *slog.Logger
	now    func() time.Time
}

// NewOrchestrator creates an orchestrator over store and pub.
func NewOrchestrator(store domain.OrderRepository, pub Publisher) *Orchestrator {
	return &Orchestrator{
		store:  store,
		pub:    pub,
		logger: slog.Default().With("module", "orchestrator"),
		now:    time.Now,
	}
}

// TransitionOption adjusts a single transition.
type TransitionOption func(*transitionConfig)

type transitionConfig struct {
	broadcast bool
}

// WithoutBroadcast persists the transition without publishing it.
func WithoutBroadcast() TransitionOption {
	return func(c *transitionConfig) { c.broadcast = false }
}

// Create persists a new pending order and announces it.
func (o *Orchestrator) Create(ctx context.Context, intent domain.OrderIntent) (*domain.Order, error) {
	now := o.now()
	order := &domain.Order{
		ID:        uuid.NewString(),
		Type:      intent.Type,
		TokenIn:   intent.TokenIn,
		TokenOut:  intent.TokenOut,
		Amount:    intent.Amount,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := o.store.Create(ctx, order); err != nil {
		return nil, err
	}

	o.pub.Publish(order.ID, domain.Pending{Order: *order})
	o.logger.Info("Order created",
		slog.String("order_id", order.ID),
		slog.String("pair", order.TokenIn+"/"+order.TokenOut),
		slog.String("amount", order.Amount.String()),
	)
	return order, nil
}

// Transition applies update to the stored order, then publishes it.
// On a store error nothing is published.
func (o *Orchestrator) Transition(ctx context.Context, orderID string, update domain.StatusUpdate, opts ...TransitionOption) (*domain.Order, error) {
	cfg := transitionConfig{broadcast: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	order, err := o.store.Update(ctx, orderID, update.Patch())
	if err != nil {
		return nil, err
	}

	if cfg.broadcast {
		o.pub.Publish(orderID, update)
	}

	level := slog.LevelDebug
	if update.Status().IsTerminal() {
		level = slog.LevelInfo
	}
	o.logger.Log(ctx, level, "Order transition",
		slog.String("order_id", orderID),
		slog.String("status", string(update.Status())),
		slog.Bool("broadcast", cfg.broadcast),
	)
	return order, nil
}
