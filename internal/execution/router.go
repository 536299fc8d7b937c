package execution

import (
	"context"
	"log/slog"
	"time"

	"order_engine/internal/domain"

	"golang.org/x/sync/errgroup"
)

// Router selects the venue with the best quote and executes swaps on it.
// It never persists or broadcasts.
type Router struct {
	venues []domain.Venue
	byName map[string]domain.Venue
	logger *slog.Logger

	quoteTimeout time.Duration
	swapTimeout  time.Duration
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithQuoteTimeout bounds the whole quote fan-out. Zero means unbounded.
func WithQuoteTimeout(d time.Duration) RouterOption {
	return func(r *Router) { r.quoteTimeout = d }
}

// WithSwapTimeout bounds a single swap. Zero means unbounded.
func WithSwapTimeout(d time.Duration) RouterOption {
	return func(r *Router) { r.swapTimeout = d }
}

// NewRouter registers venues in order; on equal amountOut the earliest wins.
func NewRouter(venues []domain.Venue, opts ...RouterOption) *Router {
	r := &Router{
		venues: venues,
		byName: make(map[string]domain.Venue, len(venues)),
		logger: slog.Default().With("module", "router"),
	}
	for _, v := range venues {
		r.byName[v.Name()] = v
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Venues returns the registered venue names in order.
func (r *Router) Venues() []string {
	names := make([]string, len(r.venues))
	for i, v := range r.venues {
		names[i] = v.Name()
	}
	return names
}

// Route queries every venue concurrently and returns the greatest amountOut.
// Any venue error fails the whole route.
func (r *Router) Route(ctx context.Context, order domain.Order) (domain.Quote, error) {
	if len(r.venues) == 0 {
		return domain.Quote{}, &domain.ExecutionError{Op: "route", Err: domain.ErrNoVenues}
	}

	if r.quoteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.quoteTimeout)
		defer cancel()
	}

	quotes := make([]domain.Quote, len(r.venues))
	var g errgroup.Group
	for i, v := range r.venues {
		i, v := i, v
		g.Go(func() error {
			q, err := v.GetQuote(ctx, order.TokenIn, order.TokenOut, order.Amount)
			if err != nil {
				return err
			}
			quotes[i] = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Quote{}, err
	}

	best := quotes[0]
	for _, q := range quotes[1:] {
		if q.AmountOut.GreaterThan(best.AmountOut) {
			best = q
		}
	}

	r.logger.Info("Route selected",
		slog.String("order_id", order.ID),
		slog.String("venue", best.Venue),
		slog.String("amount_out", best.AmountOut.String()),
	)
	return best, nil
}

// ExecuteOnDex runs the swap on the named venue.
func (r *Router) ExecuteOnDex(ctx context.Context, venue string, order domain.Order) (domain.ExecutionResult, error) {
	v, ok := r.byName[venue]
	if !ok {
		return domain.ExecutionResult{}, &domain.ExecutionError{Venue: venue, Op: "swap", Err: domain.ErrUnknownVenue}
	}

	if r.swapTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.swapTimeout)
		defer cancel()
	}

	return v.ExecuteSwap(ctx, order)
}
