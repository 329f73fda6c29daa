package engine

import (
	"context"
	"errors"
	"log"
	"time"

	"seatwatch/internal/model"
)

const (
	sweepRetries      = 3
	sweepRetryBackoff = 100 * time.Millisecond
)

// SweepReport summarizes one expiry sweep.
type SweepReport struct {
	Expired      int `json:"expired"`       // reservations past their end time
	Released     int `json:"released"`      // seats transitioned back to Vacant
	LeftOccupied int `json:"left_occupied"` // seats kept Occupied by detected presence
	Failed       int `json:"failed"`        // retirements that failed; retried next sweep
}

// RunExpirySweep retires every reservation whose end time has passed.
// Each retirement is one per-seat transaction: the reservation is
// re-read under the seat lock, deleted, and the seat set to Vacant
// unless its current status is Occupied, in which case presence is
// treated as authoritative over the stale reservation and the status
// is left alone. A failed retirement rolls back whole and is retried
// on the next sweep, so the sweep is idempotent: running it twice in
// succession yields no additional transitions.
func (e *Engine) RunExpirySweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	expired, err := e.store.ExpiredReservations(ctx, e.now().UTC())
	if err != nil {
		return report, err
	}
	report.Expired = len(expired)
	for _, res := range expired {
		released, err := e.retire(ctx, res)
		if err != nil {
			report.Failed++
			log.Printf("sweeper: reservation %d (seat %d): %v", res.ID, res.SeatID, err)
			continue
		}
		switch released {
		case retiredReleased:
			report.Released++
		case retiredLeftOccupied:
			report.LeftOccupied++
		}
	}
	return report, nil
}

type retireOutcome int

const (
	retiredSkipped retireOutcome = iota // already gone or no longer expired
	retiredReleased
	retiredLeftOccupied
)

// retire removes one expired reservation inside its seat's
// transaction, retrying serialization conflicts with backoff.
func (e *Engine) retire(ctx context.Context, res model.Reservation) (retireOutcome, error) {
	var lastErr error
	for attempt := 0; attempt < sweepRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * sweepRetryBackoff):
			case <-ctx.Done():
				return retiredSkipped, ctx.Err()
			}
		}
		outcome, err := e.retireOnce(ctx, res)
		if err == nil {
			return outcome, nil
		}
		if !errors.Is(err, ErrTxConflict) {
			return retiredSkipped, err
		}
		lastErr = err
	}
	return retiredSkipped, lastErr
}

func (e *Engine) retireOnce(ctx context.Context, res model.Reservation) (retireOutcome, error) {
	outcome := retiredSkipped
	var transition *model.StatusTransition
	unlock := e.lockSeat(res.SeatID)
	defer unlock()
	err := e.store.InSeatTx(ctx, res.SeatID, func(tx SeatTx) error {
		cur, err := tx.Reservation(ctx, res.ID)
		if err != nil {
			if errors.Is(err, ErrReservationNotFound) {
				return nil // already retired by a previous sweep or a cancel
			}
			return err
		}
		if cur.Active(e.now().UTC()) {
			return nil // not expired after all; leave it be
		}
		if err := tx.DeleteReservation(ctx, res.ID); err != nil {
			return err
		}
		seat := tx.Seat()
		if seat.Status == model.StatusOccupied {
			outcome = retiredLeftOccupied
			return nil
		}
		if err := tx.SetStatus(ctx, model.StatusVacant, nil); err != nil {
			return err
		}
		outcome = retiredReleased
		if seat.Status != model.StatusVacant {
			transition = &model.StatusTransition{
				SeatID: seat.ID,
				From:   seat.Status,
				To:     model.StatusVacant,
				At:     e.now().UTC(),
				Cause:  model.CauseExpiry,
			}
		}
		return nil
	})
	if err != nil {
		return retiredSkipped, err
	}
	e.publish(transition)
	return outcome, nil
}
