package domain

import (
	"fmt"
	"time"
)

// AttemptState is the state of one checkout attempt.
type AttemptState string

// Checkout attempt states.
const (
	AttemptIdle         AttemptState = "idle"
	AttemptPricing      AttemptState = "pricing"
	AttemptPaying       AttemptState = "paying"
	AttemptCommitted    AttemptState = "committed"
	AttemptCompensating AttemptState = "compensating"
	AttemptFailed       AttemptState = "failed"
)

var attemptTransitions = map[AttemptState][]AttemptState{
	AttemptIdle:         {AttemptPricing, AttemptFailed},
	AttemptPricing:      {AttemptPaying, AttemptCompensating, AttemptFailed},
	AttemptPaying:       {AttemptCommitted, AttemptCompensating},
	AttemptCompensating: {AttemptFailed},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to AttemptState) bool {
	for _, s := range attemptTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s AttemptState) IsTerminal() bool {
	return s == AttemptCommitted || s == AttemptFailed
}

// Step status constants.
const (
	StepCompleted   = "completed"
	StepFailed      = "failed"
	StepCompensated = "compensated"
)

// Step names recorded on an attempt.
const (
	StepReserveDeficit = "reserve_deficit"
	StepPriceCart      = "price_cart"
	StepCharge         = "charge"
	StepRecordOrder    = "record_order"
	StepReleaseHolds   = "release_holds"
)

// AttemptStep records the outcome of one saga step.
type AttemptStep struct {
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	ExecutedAt time.Time `json:"executed_at"`
}

// CheckoutAttempt is the audit record of one run of the checkout state machine.
type CheckoutAttempt struct {
	ID            string        `json:"id"`
	SessionID     string        `json:"session_id"`
	State         AttemptState  `json:"state"`
	Steps         []AttemptStep `json:"steps"`
	Amount        int64         `json:"amount"`
	OrderID       string        `json:"order_id,omitempty"`
	TransactionID string        `json:"transaction_id,omitempty"`
	FailureKind   string        `json:"failure_kind,omitempty"`
	FailureReason string        `json:"failure_reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// NewCheckoutAttempt returns an attempt in the idle state.
func NewCheckoutAttempt(id, sessionID string, now time.Time) *CheckoutAttempt {
	return &CheckoutAttempt{
		ID:        id,
		SessionID: sessionID,
		State:     AttemptIdle,
		Steps:     []AttemptStep{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo moves the attempt to next or returns an error if the move is
// not in the transition table.
func (a *CheckoutAttempt) TransitionTo(next AttemptState, now time.Time) error {
	if !CanTransition(a.State, next) {
		return fmt.Errorf("invalid checkout attempt transition %s -> %s", a.State, next)
	}
	a.State = next
	a.UpdatedAt = now
	return nil
}

// Record appends a step outcome. A nil err records success.
func (a *CheckoutAttempt) Record(name string, err error, now time.Time) {
	step := AttemptStep{Name: name, Status: StepCompleted, ExecutedAt: now}
	if err != nil {
		step.Status = StepFailed
		step.Error = err.Error()
	}
	a.Steps = append(a.Steps, step)
	a.UpdatedAt = now
}

// RecordCompensated appends a compensated step.
func (a *CheckoutAttempt) RecordCompensated(name string, now time.Time) {
	a.Steps = append(a.Steps, AttemptStep{Name: name, Status: StepCompensated, ExecutedAt: now})
	a.UpdatedAt = now
}

// Clone returns a deep copy.
func (a *CheckoutAttempt) Clone() *CheckoutAttempt {
	cpy := *a
	cpy.Steps = append([]AttemptStep(nil), a.Steps...)
	return &cpy
}
