package model

import "time"

// TransitionCause identifies which input drove a status change.
type TransitionCause string

const (
	CauseBooking   TransitionCause = "booking"   // a successful reservation
	CauseExpiry    TransitionCause = "expiry"    // the sweep retired a reservation
	CauseDetection TransitionCause = "detection" // a detection cycle verdict
)

// StatusTransition is emitted for every committed seat status change.
// Transitions for a single seat are published in commit order; they are
// not persisted.
type StatusTransition struct {
	SeatID uint64          `json:"seat_id"`
	From   SeatStatus      `json:"from"`
	To     SeatStatus      `json:"to"`
	At     time.Time       `json:"at"`
	Cause  TransitionCause `json:"cause"`
}
