package domain

import "github.com/shopspring/decimal"

// StatusUpdate is one transition of the order state machine.
// Each variant carries only the fields relevant to its status; its JSON form
// is the payload streamed to subscribers.
type StatusUpdate interface {
	Status() OrderStatus
	Patch() OrderPatch
}

// Pending announces a freshly created order.
type Pending struct {
	Order Order `json:"order"`
}

// Routing means quotes are being collected.
type Routing struct{}

// Building means a venue was chosen and the swap is being prepared.
type Building struct {
	ChosenDex string `json:"chosenDex"`
}

// Submitted means the swap was sent to the venue.
type Submitted struct{}

// Confirmed means the swap settled.
type Confirmed struct {
	TxHash        string          `json:"txHash"`
	ExecutedPrice decimal.Decimal `json:"executedPrice"`
}

// Failed means the current attempt raised an error.
type Failed struct {
	FailureReason string `json:"failureReason"`
}

func (Pending) Status() OrderStatus   { return StatusPending }
func (Routing) Status() OrderStatus   { return StatusRouting }
func (Building) Status() OrderStatus  { return StatusBuilding }
func (Submitted) Status() OrderStatus { return StatusSubmitted }
func (Confirmed) Status() OrderStatus { return StatusConfirmed }
func (Failed) Status() OrderStatus    { return StatusFailed }

func (u Pending) Patch() OrderPatch   { return statusPatch(u) }
func (u Routing) Patch() OrderPatch   { return statusPatch(u) }
func (u Submitted) Patch() OrderPatch { return statusPatch(u) }

func (u Building) Patch() OrderPatch {
	p := statusPatch(u)
	p.ChosenDex = &u.ChosenDex
	return p
}

func (u Confirmed) Patch() OrderPatch {
	p := statusPatch(u)
	p.TxHash = &u.TxHash
	p.ExecutedPrice = &u.ExecutedPrice
	return p
}

func (u Failed) Patch() OrderPatch {
	p := statusPatch(u)
	p.FailureReason = &u.FailureReason
	return p
}

func statusPatch(u StatusUpdate) OrderPatch {
	s := u.Status()
	return OrderPatch{Status: &s}
}
