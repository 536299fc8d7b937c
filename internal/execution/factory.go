package execution

import (
	"log/slog"
	"time"

	"order_engine/internal/domain"
	"order_engine/internal/infra"

	"github.com/shopspring/decimal"
)

// NewVenues builds the configured venues in registration order.
func NewVenues(cfgs []infra.VenueConfig) []domain.Venue {
	venues := make([]domain.Venue, 0, len(cfgs))
	for _, c := range cfgs {
		p := ProfileFromConfig(c)
		slog.Info("Registering venue",
			slog.String("venue", p.Name),
			slog.String("base_price", p.BasePrice.String()),
			slog.Float64("failure_rate", p.FailureRate),
		)
		venues = append(venues, NewSimulatedVenue(p))
	}
	return venues
}

// ProfileFromConfig converts a venue config entry into a Profile.
// Zero multipliers fall back to the Raydium baseline.
func ProfileFromConfig(c infra.VenueConfig) Profile {
	base := RaydiumProfile()

	p := Profile{
		Name:            c.Name,
		BasePrice:       decimal.NewFromFloat(c.BasePrice),
		PriceFloor:      c.PriceFloor,
		PriceSpread:     c.PriceSpread,
		Fee:             decimal.NewFromFloat(c.Fee),
		QuoteLatency:    toLatency(c.QuoteLatency),
		BuildLatency:    toLatency(c.BuildLatency),
		SwapLatency:     toLatency(c.SwapLatency),
		ExecPriceFloor:  c.ExecPriceFloor,
		ExecPriceSpread: c.ExecPriceSpread,
		FailureRate:     c.FailureRate,
	}
	if p.PriceFloor == 0 {
		p.PriceFloor = base.PriceFloor
		p.PriceSpread = base.PriceSpread
	}
	if p.ExecPriceFloor == 0 {
		p.ExecPriceFloor = base.ExecPriceFloor
		p.ExecPriceSpread = base.ExecPriceSpread
	}
	return p
}

func toLatency(l infra.LatencyConfig) Latency {
	return Latency{
		Min: time.Duration(l.Min) * time.Millisecond,
		Max: time.Duration(l.Max) * time.Millisecond,
	}
}
