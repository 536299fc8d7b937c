package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"order_engine/internal/domain"

	"github.com/shopspring/decimal"
)

// memStore is an in-memory OrderRepository.
type memStore struct {
	mu        sync.Mutex
	orders    map[string]domain.Order
	updateErr error
	updates   int
}

func newMemStore() *memStore {
	return &memStore{orders: make(map[string]domain.Order)}
}

func (s *memStore) Create(_ context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return &domain.PersistenceError{Op: "create", Err: errors.New("duplicate key")}
	}
	s.orders[o.ID] = *o
	return nil
}

func (s *memStore) Update(_ context.Context, id string, p domain.OrderPatch) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	o, ok := s.orders[id]
	if !ok {
		return nil, &domain.NotFoundError{ID: id}
	}
	p.Apply(&o)
	o.UpdatedAt = time.Now()
	s.orders[id] = o
	return &o, nil
}

func (s *memStore) Get(_ context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (s *memStore) List(context.Context) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) order(id string) domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id]
}

func (s *memStore) setUpdateErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateErr = err
}

// recorder captures published transitions.
type recorder struct {
	mu     sync.Mutex
	events []published
}

type published struct {
	orderID string
	update  domain.StatusUpdate
}

func (r *recorder) Publish(orderID string, u domain.StatusUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{orderID, u})
}

func (r *recorder) statuses(orderID string) []domain.OrderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.OrderStatus
	for _, e := range r.events {
		if e.orderID == orderID {
			out = append(out, e.update.Status())
		}
	}
	return out
}

// firstOrders returns order ids in the order their first non-pending event
// was published.
func (r *recorder) firstOrders() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, e := range r.events {
		if e.update.Status() == domain.StatusRouting && !seen[e.orderID] {
			seen[e.orderID] = true
			out = append(out, e.orderID)
		}
	}
	return out
}

// scriptedRouter fails the first failures calls to ExecuteOnDex.
type scriptedRouter struct {
	mu       sync.Mutex
	failures int
	err      error
	routeErr error
	venue    string
	delay    time.Duration
	swaps    int
	panicOn  bool
}

func (r *scriptedRouter) Route(ctx context.Context, o domain.Order) (domain.Quote, error) {
	if r.routeErr != nil {
		return domain.Quote{}, r.routeErr
	}
	venue := r.venue
	if venue == "" {
		venue = "Raydium"
	}
	return domain.Quote{Venue: venue, Price: decimal.NewFromInt(100), AmountOut: o.Amount.Mul(decimal.NewFromInt(100))}, nil
}

func (r *scriptedRouter) ExecuteOnDex(ctx context.Context, venue string, o domain.Order) (domain.ExecutionResult, error) {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.swaps++
	if r.panicOn {
		panic("venue exploded")
	}
	if r.swaps <= r.failures {
		return domain.ExecutionResult{}, r.err
	}
	return domain.ExecutionResult{TxHash: "mock_" + o.ID, ExecutedPrice: decimal.RequireFromString("99.9")}, nil
}

func (r *scriptedRouter) swapCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.swaps
}
