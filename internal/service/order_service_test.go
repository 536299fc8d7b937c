package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"order_engine/internal/domain"
	"order_engine/internal/engine"
	"order_engine/internal/infra"
	"order_engine/internal/infra/storage"
	"order_engine/internal/queue"

	"github.com/shopspring/decimal"
)

type nopPublisher struct{ events []domain.StatusUpdate }

func (p *nopPublisher) Publish(_ string, u domain.StatusUpdate) { p.events = append(p.events, u) }

func setupService(t *testing.T) (*OrderService, *queue.MemoryQueue, *nopPublisher) {
	store, err := storage.NewStorage(infra.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "orders.db"),
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	pub := &nopPublisher{}
	q := queue.NewMemoryQueue()
	t.Cleanup(func() { q.Close() })

	svc := NewOrderService(engine.NewOrchestrator(store, pub), store, q, queue.DefaultOptions(), nil)
	return svc, q, pub
}

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  *SubmitOrderRequest
		msg  string
	}{
		{"nil body", nil, "Missing body"},
		{"missing type", &SubmitOrderRequest{TokenIn: "SOL", TokenOut: "USDC", Amount: amount("1")}, "Missing fields: type, tokenIn, tokenOut, amount"},
		{"missing amount", &SubmitOrderRequest{Type: "market", TokenIn: "SOL", TokenOut: "USDC"}, "Missing fields: type, tokenIn, tokenOut, amount"},
		{"zero amount", &SubmitOrderRequest{Type: "market", TokenIn: "SOL", TokenOut: "USDC", Amount: amount("0")}, "Missing fields: type, tokenIn, tokenOut, amount"},
		{"limit order", &SubmitOrderRequest{Type: "limit", TokenIn: "SOL", TokenOut: "USDC", Amount: amount("1")}, "Only 'market' order supported"},
		{"negative amount", &SubmitOrderRequest{Type: "market", TokenIn: "SOL", TokenOut: "USDC", Amount: amount("-2")}, "amount must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.req)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Error() != tt.msg {
				t.Errorf("message = %q, want %q", ve.Error(), tt.msg)
			}
		})
	}

	intent, err := Validate(&SubmitOrderRequest{Type: "market", TokenIn: "SOL", TokenOut: "USDC", Amount: amount("1.25")})
	if err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}
	if intent.Type != domain.OrderTypeMarket || !intent.Amount.Equal(decimal.RequireFromString("1.25")) {
		t.Errorf("unexpected intent %+v", intent)
	}
}

func TestSubmit(t *testing.T) {
	svc, q, pub := setupService(t)
	ctx := context.Background()

	order, err := svc.Submit(ctx, &SubmitOrderRequest{Type: "market", TokenIn: "SOL", TokenOut: "USDC", Amount: amount("3")})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if order.Status != domain.StatusPending {
		t.Errorf("status = %s, want pending", order.Status)
	}

	job, err := q.Reserve(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if job.OrderID != order.ID || job.MaxAttempts != 3 {
		t.Errorf("unexpected job %+v", job)
	}

	if len(pub.events) != 1 || pub.events[0].Status() != domain.StatusPending {
		t.Errorf("expected one pending event, got %v", pub.events)
	}

	got, err := svc.Get(ctx, order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TokenIn != "SOL" || !got.Amount.Equal(decimal.NewFromInt(3)) {
		t.Errorf("stored order mismatch %+v", got)
	}
}

func TestSubmit_InvalidDoesNotPersist(t *testing.T) {
	svc, _, pub := setupService(t)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, &SubmitOrderRequest{Type: "sniper", TokenIn: "SOL", TokenOut: "USDC", Amount: amount("1")}); err == nil {
		t.Fatal("expected validation error")
	}

	orders, _ := svc.List(ctx)
	if len(orders) != 0 || len(pub.events) != 0 {
		t.Error("invalid order must not be persisted or announced")
	}
}

func TestSubmit_QueueClosed(t *testing.T) {
	svc, q, _ := setupService(t)
	q.Close()

	_, err := svc.Submit(context.Background(), &SubmitOrderRequest{Type: "market", TokenIn: "SOL", TokenOut: "USDC", Amount: amount("1")})
	if !errors.Is(err, queue.ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed, got %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.Get(context.Background(), "missing")
	if !domain.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}
