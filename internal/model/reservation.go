package model

import "time"

// Reservation records a holder's time-bounded claim on a seat.  A
// reservation is never mutated after creation; it only disappears when
// the expiry sweep or a cancellation retires it.  At most one
// reservation per seat may have an end time in the future.
//
// Fields:
//  ID        – primary key identifier.
//  SeatID    – seat being reserved.
//  HolderID  – holder who made the reservation.
//  StartTime – when the reservation begins (booking time, UTC).
//  EndTime   – StartTime plus the configured reservation duration.
//  CreatedAt – creation timestamp.
type Reservation struct {
	ID        uint64    `json:"id"`         // reservations.id
	SeatID    uint64    `json:"seat_id"`    // reservations.seat_id
	HolderID  uint64    `json:"holder_id"`  // reservations.holder_id
	StartTime time.Time `json:"start_time"` // reservations.start_time
	EndTime   time.Time `json:"end_time"`   // reservations.end_time
	CreatedAt time.Time `json:"-"`          // reservations.created_at
}

// Active reports whether the reservation's end time is still in the
// future relative to now.
func (r Reservation) Active(now time.Time) bool {
	return r.EndTime.After(now)
}

// Holder is a registered library member who can reserve seats.
//
// Fields:
//  ID           – primary key identifier.
//  Name         – display name.
//  Email        – unique login identifier.
//  PasswordHash – bcrypt hash of the holder's password.
//  CreatedAt    – registration timestamp.
type Holder struct {
	ID           uint64    // holders.id
	Name         string    // holders.name
	Email        string    // holders.email
	PasswordHash string    // holders.password_hash
	CreatedAt    time.Time // holders.created_at
}
