package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"seatwatch/internal/model"
)

// Engine owns every seat status write. Reservations, detection
// verdicts and the expiry sweep all funnel through it, each applied in
// one per-seat transaction that evaluates the precedence rule:
//
//  1. an active reservation forces Booked, detection input is ignored
//  2. otherwise the latest presence verdict decides Occupied
//  3. otherwise the seat is Vacant
type Engine struct {
	store    Store
	notifier Notifier
	duration time.Duration    // reservation length (end = start + duration)
	now      func() time.Time // injectable clock for tests
	seatMu   sync.Map         // seatID -> *sync.Mutex, held across commit and publish
}

// New constructs an Engine. duration is the fixed reservation length;
// the notifier may be nil when no subscribers exist.
func New(store Store, notifier Notifier, duration time.Duration) *Engine {
	return &Engine{
		store:    store,
		notifier: notifier,
		duration: duration,
		now:      time.Now,
	}
}

func (e *Engine) publish(t *model.StatusTransition) {
	if t == nil || e.notifier == nil {
		return
	}
	e.notifier.Publish(*t)
}

// lockSeat serializes the commit-plus-publish pair for one seat and
// returns the unlock. The store's row lock alone is not enough: it is
// released when InSeatTx returns, so a publish issued after that could
// cross a later commit's publish for the same seat. Transitions must
// be delivered in commit order per seat.
func (e *Engine) lockSeat(seatID uint64) func() {
	mu, _ := e.seatMu.LoadOrStore(seatID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// Reserve creates a reservation for holderID on seatID. The
// availability check and the reservation insert happen in one unit of
// work under the seat's row lock, so two concurrent calls for the same
// seat yield exactly one success and one ErrSeatUnavailable. A seat
// that is merely Occupied (detected presence, no reservation) is
// bookable: informal use does not block a claim.
func (e *Engine) Reserve(ctx context.Context, seatID, holderID uint64) (*model.Reservation, error) {
	var (
		created    *model.Reservation
		transition *model.StatusTransition
	)
	unlock := e.lockSeat(seatID)
	defer unlock()
	err := e.store.InSeatTx(ctx, seatID, func(tx SeatTx) error {
		active, err := tx.ActiveReservation(ctx)
		if err != nil {
			return err
		}
		if active != nil {
			return ErrSeatUnavailable
		}
		now := e.now().UTC()
		res := &model.Reservation{
			SeatID:    seatID,
			HolderID:  holderID,
			StartTime: now,
			EndTime:   now.Add(e.duration),
		}
		if err := tx.CreateReservation(ctx, res); err != nil {
			return err
		}
		prev := tx.Seat().Status
		if err := tx.SetStatus(ctx, model.StatusBooked, nil); err != nil {
			return err
		}
		created = res
		if prev != model.StatusBooked {
			transition = &model.StatusTransition{
				SeatID: seatID,
				From:   prev,
				To:     model.StatusBooked,
				At:     now,
				Cause:  model.CauseBooking,
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.publish(transition)
	return created, nil
}

// Cancel retires holderID's reservation before it expires. The seat
// returns to Vacant unless detected presence already claimed it.
func (e *Engine) Cancel(ctx context.Context, reservationID, holderID uint64) error {
	res, err := e.store.ReservationByID(ctx, reservationID)
	if err != nil {
		return err
	}
	if res.HolderID != holderID {
		return ErrForbidden
	}
	var transition *model.StatusTransition
	unlock := e.lockSeat(res.SeatID)
	defer unlock()
	err = e.store.InSeatTx(ctx, res.SeatID, func(tx SeatTx) error {
		// Re-read under the lock; the sweep may have retired it since.
		cur, err := tx.Reservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if cur.HolderID != holderID {
			return ErrForbidden
		}
		if err := tx.DeleteReservation(ctx, reservationID); err != nil {
			return err
		}
		seat := tx.Seat()
		if seat.Status == model.StatusOccupied {
			return nil
		}
		if err := tx.SetStatus(ctx, model.StatusVacant, nil); err != nil {
			return err
		}
		if seat.Status != model.StatusVacant {
			transition = &model.StatusTransition{
				SeatID: seat.ID,
				From:   seat.Status,
				To:     model.StatusVacant,
				At:     e.now().UTC(),
				Cause:  model.CauseBooking,
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.publish(transition)
	return nil
}

// CurrentReservation returns the holder's active reservation, or nil
// when the holder has none.
func (e *Engine) CurrentReservation(ctx context.Context, holderID uint64) (*model.Reservation, error) {
	res, err := e.store.ActiveReservationByHolder(ctx, holderID)
	if err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return res, nil
}

// ApplyDetection records one presence verdict for a seat and
// reconciles its status. While the seat carries an active reservation
// the verdict is ignored entirely: detection never demotes or alters a
// Booked seat. The returned bool reports whether a transition was
// committed.
func (e *Engine) ApplyDetection(ctx context.Context, seatID uint64, present bool, at time.Time) (bool, error) {
	var transition *model.StatusTransition
	unlock := e.lockSeat(seatID)
	defer unlock()
	err := e.store.InSeatTx(ctx, seatID, func(tx SeatTx) error {
		active, err := tx.ActiveReservation(ctx)
		if err != nil {
			return err
		}
		if active != nil {
			return nil // precedence rule 1: reservation wins
		}
		seat := tx.Seat()
		next := model.StatusVacant
		if present {
			next = model.StatusOccupied
		}
		if seat.Status == next {
			return nil
		}
		var since *time.Time
		if next == model.StatusOccupied {
			t := at.UTC()
			since = &t
		}
		if err := tx.SetStatus(ctx, next, since); err != nil {
			return err
		}
		transition = &model.StatusTransition{
			SeatID: seatID,
			From:   seat.Status,
			To:     next,
			At:     at.UTC(),
			Cause:  model.CauseDetection,
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	e.publish(transition)
	return transition != nil, nil
}

// Seats returns every seat with its current reconciled status.
func (e *Engine) Seats(ctx context.Context) ([]model.Seat, error) {
	return e.store.Seats(ctx)
}
