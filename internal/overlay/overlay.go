// Package overlay maps raw detection regions onto seats. A detected
// region counts against every seat whose rectangle it overlaps; seats
// that no region touches get an explicit "absent" verdict so a full
// frame always produces one verdict per seat.
package overlay

import (
	"errors"

	"seatwatch/internal/model"
)

// ErrMalformedRegion is returned for a detection region with inverted
// or zero-area geometry. Malformed regions are dropped and logged by
// the ingestion cycle; they never abort the frame.
var ErrMalformedRegion = errors.New("malformed detection region")

// Resolve returns the IDs of all seats whose rectangles overlap the
// given region.
func Resolve(region model.Region, seats []model.Seat) ([]uint64, error) {
	if !region.Valid() {
		return nil, ErrMalformedRegion
	}
	var ids []uint64
	for _, s := range seats {
		if region.Overlaps(s.Region) {
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}

// Verdicts folds one frame's regions into a presence verdict per seat.
// Malformed regions are skipped and their count returned so the caller
// can log them. Every seat appears in the result: true when any valid
// region overlaps it, false otherwise.
func Verdicts(regions []model.Region, seats []model.Seat) (map[uint64]bool, int) {
	verdicts := make(map[uint64]bool, len(seats))
	for _, s := range seats {
		verdicts[s.ID] = false
	}
	dropped := 0
	for _, r := range regions {
		if !r.Valid() {
			dropped++
			continue
		}
		for _, s := range seats {
			if !verdicts[s.ID] && r.Overlaps(s.Region) {
				verdicts[s.ID] = true
			}
		}
	}
	return verdicts, dropped
}
