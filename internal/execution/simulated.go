package execution

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"order_engine/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Latency is a uniform delay range.
type Latency struct {
	Min time.Duration
	Max time.Duration
}

// Profile parameterizes a simulated venue.
// Quoted price = BasePrice * (PriceFloor + r*PriceSpread), r uniform in [0, 1).
type Profile struct {
	Name        string
	BasePrice   decimal.Decimal
	PriceFloor  float64
	PriceSpread float64
	Fee         decimal.Decimal

	QuoteLatency Latency
	BuildLatency Latency // swap preparation
	SwapLatency  Latency // confirmation wait

	ExecPriceFloor  float64
	ExecPriceSpread float64

	// FailureRate is the probability that a quote or swap fails transiently.
	FailureRate float64
}

// RaydiumProfile is the baseline Raydium simulation.
func RaydiumProfile() Profile {
	return Profile{
		Name:            "Raydium",
		BasePrice:       decimal.NewFromInt(100),
		PriceFloor:      0.98,
		PriceSpread:     0.04,
		Fee:             decimal.NewFromFloat(0.003),
		QuoteLatency:    Latency{200 * time.Millisecond, 350 * time.Millisecond},
		BuildLatency:    Latency{300 * time.Millisecond, 500 * time.Millisecond},
		SwapLatency:     Latency{2000 * time.Millisecond, 3000 * time.Millisecond},
		ExecPriceFloor:  0.975,
		ExecPriceSpread: 0.05,
	}
}

// MeteoraProfile is the baseline Meteora simulation.
func MeteoraProfile() Profile {
	p := RaydiumProfile()
	p.Name = "Meteora"
	p.PriceFloor = 0.97
	p.PriceSpread = 0.05
	p.Fee = decimal.NewFromFloat(0.002)
	return p
}

// SimulatedVenue quotes and swaps with random latency and prices.
type SimulatedVenue struct {
	profile Profile
	logger  *slog.Logger

	mu  sync.Mutex
	rng func() float64
}

var _ domain.Venue = (*SimulatedVenue)(nil)

// VenueOption configures a SimulatedVenue.
type VenueOption func(*SimulatedVenue)

// WithRandom replaces the uniform [0, 1) source. Calls are serialized.
func WithRandom(rng func() float64) VenueOption {
	return func(v *SimulatedVenue) {
		v.rng = rng
	}
}

// NewSimulatedVenue creates a venue from a profile.
func NewSimulatedVenue(profile Profile, opts ...VenueOption) *SimulatedVenue {
	v := &SimulatedVenue{
		profile: profile,
		logger:  slog.Default().With("module", "venue", "venue", profile.Name),
		rng:     rand.Float64,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Name returns the venue identifier.
func (v *SimulatedVenue) Name() string {
	return v.profile.Name
}

// GetQuote simulates a price lookup.
func (v *SimulatedVenue) GetQuote(ctx context.Context, tokenIn, tokenOut string, amount decimal.Decimal) (domain.Quote, error) {
	if err := sleepCtx(ctx, v.latency(v.profile.QuoteLatency)); err != nil {
		return domain.Quote{}, &domain.ExecutionError{Venue: v.Name(), Op: "quote", Err: err}
	}
	if v.fails() {
		return domain.Quote{}, &domain.ExecutionError{Venue: v.Name(), Op: "quote", Err: domain.ErrSimulatedFailure}
	}

	price := v.price(v.profile.PriceFloor, v.profile.PriceSpread)
	q := domain.Quote{
		Venue:     v.Name(),
		Price:     price,
		Fee:       v.profile.Fee,
		AmountOut: amount.Mul(price),
	}

	v.logger.Debug("Quote",
		slog.String("pair", tokenIn+"/"+tokenOut),
		slog.String("price", price.String()),
		slog.String("amount_out", q.AmountOut.String()),
	)
	return q, nil
}

// ExecuteSwap simulates building, sending and confirming a swap.
// The executed price is drawn independently of any earlier quote.
func (v *SimulatedVenue) ExecuteSwap(ctx context.Context, order domain.Order) (domain.ExecutionResult, error) {
	if err := sleepCtx(ctx, v.latency(v.profile.BuildLatency)); err != nil {
		return domain.ExecutionResult{}, &domain.ExecutionError{Venue: v.Name(), Op: "swap", Err: err}
	}
	if err := sleepCtx(ctx, v.latency(v.profile.SwapLatency)); err != nil {
		return domain.ExecutionResult{}, &domain.ExecutionError{Venue: v.Name(), Op: "swap", Err: err}
	}
	if v.fails() {
		return domain.ExecutionResult{}, &domain.ExecutionError{Venue: v.Name(), Op: "swap", Err: domain.ErrSimulatedFailure}
	}

	res := domain.ExecutionResult{
		TxHash:        NewTxHash(),
		ExecutedPrice: v.price(v.profile.ExecPriceFloor, v.profile.ExecPriceSpread),
	}

	v.logger.Info("Swap confirmed",
		slog.String("order_id", order.ID),
		slog.String("tx_hash", res.TxHash),
		slog.String("price", res.ExecutedPrice.String()),
	)
	return res, nil
}

// NewTxHash returns "mock_" followed by 24 hex characters.
func NewTxHash() string {
	return "mock_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

func (v *SimulatedVenue) random() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rng()
}

func (v *SimulatedVenue) price(floor, spread float64) decimal.Decimal {
	return v.profile.BasePrice.Mul(decimal.NewFromFloat(floor + v.random()*spread))
}

func (v *SimulatedVenue) latency(l Latency) time.Duration {
	if l.Max <= l.Min {
		return l.Min
	}
	return l.Min + time.Duration(v.random()*float64(l.Max-l.Min))
}

func (v *SimulatedVenue) fails() bool {
	return v.profile.FailureRate > 0 && v.random() < v.profile.FailureRate
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
