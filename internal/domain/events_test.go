package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestStatusUpdate_Patch(t *testing.T) {
	price := decimal.NewFromFloat(99.5)

	tests := []struct {
		name   string
		update StatusUpdate
		check  func(t *testing.T, o Order)
	}{
		{"routing", Routing{}, func(t *testing.T, o Order) {
			if o.ChosenDex != nil || o.TxHash != nil {
				t.Error("routing must not touch venue or tx fields")
			}
		}},
		{"building", Building{ChosenDex: "Meteora"}, func(t *testing.T, o Order) {
			if o.ChosenDex == nil || *o.ChosenDex != "Meteora" {
				t.Errorf("ChosenDex = %v, want Meteora", o.ChosenDex)
			}
		}},
		{"confirmed", Confirmed{TxHash: "mock_abc", ExecutedPrice: price}, func(t *testing.T, o Order) {
			if o.TxHash == nil || *o.TxHash != "mock_abc" {
				t.Errorf("TxHash = %v", o.TxHash)
			}
			if o.ExecutedPrice == nil || !o.ExecutedPrice.Equal(price) {
				t.Errorf("ExecutedPrice = %v", o.ExecutedPrice)
			}
		}},
		{"failed", Failed{FailureReason: "boom"}, func(t *testing.T, o Order) {
			if o.FailureReason == nil || *o.FailureReason != "boom" {
				t.Errorf("FailureReason = %v", o.FailureReason)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Order{Status: StatusPending}
			tt.update.Patch().Apply(&o)
			if o.Status != tt.update.Status() {
				t.Errorf("Status = %s, want %s", o.Status, tt.update.Status())
			}
			tt.check(t, o)
		})
	}
}

func TestStatusUpdate_PayloadJSON(t *testing.T) {
	b, err := json.Marshal(Routing{})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "{}" {
		t.Errorf("Routing payload = %s, want {}", b)
	}

	b, _ = json.Marshal(Building{ChosenDex: "Raydium"})
	if string(b) != `{"chosenDex":"Raydium"}` {
		t.Errorf("Building payload = %s", b)
	}

	b, _ = json.Marshal(Failed{FailureReason: "timeout"})
	if string(b) != `{"failureReason":"timeout"}` {
		t.Errorf("Failed payload = %s", b)
	}
}

func TestOrderStatus_IsTerminal(t *testing.T) {
	for _, s := range []OrderStatus{StatusPending, StatusRouting, StatusBuilding, StatusSubmitted} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	if !StatusConfirmed.IsTerminal() || !StatusFailed.IsTerminal() {
		t.Error("confirmed and failed must be terminal")
	}
}
