package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderType is the kind of order requested by the client.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"  // not executed yet
	OrderTypeSniper OrderType = "sniper" // not executed yet
)

// OrderStatus is the execution progress of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusRouting   OrderStatus = "routing"
	StatusBuilding  OrderStatus = "building"
	StatusSubmitted OrderStatus = "submitted"
	StatusConfirmed OrderStatus = "confirmed"
	StatusFailed    OrderStatus = "failed"
)

// IsTerminal reports whether the pipeline is expected to stop at this status.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// Order is the persistent record of a requested trade and its execution progress.
// ID and CreatedAt never change after creation.
type Order struct {
	ID            string           `gorm:"primaryKey;size:36" json:"id"`
	Type          OrderType        `gorm:"size:16;not null" json:"type"`
	TokenIn       string           `gorm:"size:64;not null" json:"tokenIn"`
	TokenOut      string           `gorm:"size:64;not null" json:"tokenOut"`
	Amount        decimal.Decimal  `gorm:"type:numeric;not null" json:"amount"`
	Status        OrderStatus      `gorm:"size:16;not null;index" json:"status"`
	ChosenDex     *string          `gorm:"size:32" json:"chosenDex,omitempty"`
	TxHash        *string          `gorm:"size:128" json:"txHash,omitempty"`
	ExecutedPrice *decimal.Decimal `gorm:"type:numeric" json:"executedPrice,omitempty"`
	FailureReason *string          `json:"failureReason,omitempty"`
	CreatedAt     time.Time        `gorm:"index;not null" json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// OrderIntent is a validated request to trade, before it has an identity.
type OrderIntent struct {
	Type     OrderType
	TokenIn  string
	TokenOut string
	Amount   decimal.Decimal
}

// OrderPatch holds the mutable fields of an order. Nil fields are left untouched.
type OrderPatch struct {
	Status        *OrderStatus
	ChosenDex     *string
	TxHash        *string
	ExecutedPrice *decimal.Decimal
	FailureReason *string
}

// Apply copies the non-nil patch fields onto the order.
func (p OrderPatch) Apply(o *Order) {
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.ChosenDex != nil {
		o.ChosenDex = p.ChosenDex
	}
	if p.TxHash != nil {
		o.TxHash = p.TxHash
	}
	if p.ExecutedPrice != nil {
		o.ExecutedPrice = p.ExecutedPrice
	}
	if p.FailureReason != nil {
		o.FailureReason = p.FailureReason
	}
}
