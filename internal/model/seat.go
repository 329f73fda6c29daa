package model

import "time"

// SeatStatus is the closed set of states a seat can be in.  The value
// stored in seats.status is always one of these three constants; any
// other value indicates a corrupted row.
type SeatStatus string

const (
	StatusVacant   SeatStatus = "VACANT"   // no reservation, no detected presence
	StatusBooked   SeatStatus = "BOOKED"   // an active reservation exists
	StatusOccupied SeatStatus = "OCCUPIED" // detected presence without a reservation
)

// Valid reports whether s is one of the known status values.
func (s SeatStatus) Valid() bool {
	switch s {
	case StatusVacant, StatusBooked, StatusOccupied:
		return true
	}
	return false
}

// Region is an axis-aligned rectangle in camera-frame coordinates.
// (X1,Y1) is the top-left corner and (X2,Y2) the bottom-right corner.
type Region struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Valid reports whether the rectangle has positive area.
func (r Region) Valid() bool {
	return r.X1 < r.X2 && r.Y1 < r.Y2
}

// Overlaps reports whether r and o share a non-empty intersection.
// Rectangles that merely touch along an edge do not overlap.
func (r Region) Overlaps(o Region) bool {
	return max(r.X1, o.X1) < min(r.X2, o.X2) && max(r.Y1, o.Y1) < min(r.Y2, o.Y2)
}

// Seat describes a physical seat on the floor plan.  The region is
// fixed at creation time; status is the only mutable field and is
// written exclusively through the reconciliation engine so that it
// always reflects the reservation-over-detection precedence rule.
//
// Fields:
//  ID            – primary key identifier.
//  Label         – human-readable seat label shown on the map.
//  Region        – camera-frame rectangle the seat occupies.
//  Status        – current reconciled status.
//  OccupiedSince – when detected presence began; nil unless Occupied.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last status change timestamp.
type Seat struct {
	ID            uint64     `json:"id"`                       // seats.id
	Label         string     `json:"label"`                    // seats.label
	Region        Region     `json:"region"`                   // seats.x1..y2
	Status        SeatStatus `json:"status"`                   // seats.status
	OccupiedSince *time.Time `json:"occupied_since,omitempty"` // seats.occupied_since (nullable)
	CreatedAt     time.Time  `json:"-"`                        // seats.created_at
	UpdatedAt     time.Time  `json:"-"`                        // seats.updated_at
}
