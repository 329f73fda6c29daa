package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"seatwatch/internal/model"
)

// fakeClock is a settable clock shared by the engine and the store
// double so tests can move time past reservation expiry.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// memStore is an in-memory Store. A single mutex serializes seat
// transactions, and seatTx changes are staged and applied only when
// the closure returns nil, matching the commit-or-rollback contract.
type memStore struct {
	mu           sync.Mutex
	now          func() time.Time
	seats        map[uint64]model.Seat
	reservations map[uint64]model.Reservation
	nextResID    uint64
	conflicts    int // injected ErrTxConflict failures, consumed per tx
}

func newMemStore(now func() time.Time, seats ...model.Seat) *memStore {
	s := &memStore{
		now:          now,
		seats:        make(map[uint64]model.Seat),
		reservations: make(map[uint64]model.Reservation),
		nextResID:    1,
	}
	for _, seat := range seats {
		s.seats[seat.ID] = seat
	}
	return s
}

func (s *memStore) InSeatTx(ctx context.Context, seatID uint64, fn func(SeatTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflicts > 0 {
		s.conflicts--
		return ErrTxConflict
	}
	seat, ok := s.seats[seatID]
	if !ok {
		return ErrSeatNotFound
	}
	tx := &memSeatTx{store: s, seat: seat, deleted: make(map[uint64]bool)}
	if err := fn(tx); err != nil {
		return err
	}
	s.seats[seatID] = tx.seat
	for id := range tx.deleted {
		delete(s.reservations, id)
	}
	for _, r := range tx.created {
		s.reservations[r.ID] = r
	}
	return nil
}

func (s *memStore) Seats(ctx context.Context) ([]model.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Seat, 0, len(s.seats))
	for _, seat := range s.seats {
		out = append(out, seat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) ActiveReservationByHolder(ctx context.Context, holderID uint64) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, r := range s.reservations {
		if r.HolderID == holderID && r.Active(now) {
			res := r
			return &res, nil
		}
	}
	return nil, ErrReservationNotFound
}

func (s *memStore) ReservationByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, ErrReservationNotFound
	}
	return &r, nil
}

func (s *memStore) ExpiredReservations(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Reservation
	for _, r := range s.reservations {
		if !r.Active(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) seat(id uint64) model.Seat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seats[id]
}

func (s *memStore) reservationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reservations)
}

type memSeatTx struct {
	store   *memStore
	seat    model.Seat
	created []model.Reservation
	deleted map[uint64]bool
}

func (t *memSeatTx) Seat() model.Seat { return t.seat }

func (t *memSeatTx) SetStatus(ctx context.Context, status model.SeatStatus, occupiedSince *time.Time) error {
	t.seat.Status = status
	t.seat.OccupiedSince = occupiedSince
	t.seat.UpdatedAt = t.store.now()
	return nil
}

func (t *memSeatTx) ActiveReservation(ctx context.Context) (*model.Reservation, error) {
	now := t.store.now()
	for _, r := range t.store.reservations {
		if r.SeatID == t.seat.ID && !t.deleted[r.ID] && r.Active(now) {
			res := r
			return &res, nil
		}
	}
	for _, r := range t.created {
		if r.SeatID == t.seat.ID && r.Active(now) {
			res := r
			return &res, nil
		}
	}
	return nil, nil
}

func (t *memSeatTx) Reservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	if t.deleted[id] {
		return nil, ErrReservationNotFound
	}
	if r, ok := t.store.reservations[id]; ok {
		return &r, nil
	}
	return nil, ErrReservationNotFound
}

func (t *memSeatTx) CreateReservation(ctx context.Context, res *model.Reservation) error {
	res.ID = t.store.nextResID
	t.store.nextResID++
	res.CreatedAt = t.store.now()
	t.created = append(t.created, *res)
	return nil
}

func (t *memSeatTx) DeleteReservation(ctx context.Context, id uint64) error {
	if t.deleted[id] {
		return ErrReservationNotFound
	}
	if _, ok := t.store.reservations[id]; !ok {
		return ErrReservationNotFound
	}
	t.deleted[id] = true
	return nil
}

// captureNotifier records published transitions in order.
type captureNotifier struct {
	mu     sync.Mutex
	events []model.StatusTransition
}

func (n *captureNotifier) Publish(t model.StatusTransition) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, t)
}

func (n *captureNotifier) all() []model.StatusTransition {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]model.StatusTransition, len(n.events))
	copy(out, n.events)
	return out
}

func vacantSeat(id uint64, label string, x int) model.Seat {
	return model.Seat{
		ID:     id,
		Label:  label,
		Region: model.Region{X1: x, Y1: 0, X2: x + 100, Y2: 100},
		Status: model.StatusVacant,
	}
}

func newTestEngine(seats ...model.Seat) (*Engine, *memStore, *captureNotifier, *fakeClock) {
	clock := newFakeClock()
	store := newMemStore(clock.Now, seats...)
	notifier := &captureNotifier{}
	eng := New(store, notifier, 2*time.Hour)
	eng.now = clock.Now
	return eng, store, notifier, clock
}

func TestReserveConcurrentSingleWinner(t *testing.T) {
	eng, store, _, _ := newTestEngine(vacantSeat(1, "A1", 0))
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = eng.Reserve(ctx, 1, uint64(i+1))
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrSeatUnavailable):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || lost != attempts-1 {
		t.Fatalf("expected 1 winner and %d losers, got %d and %d", attempts-1, won, lost)
	}
	if got := store.seat(1).Status; got != model.StatusBooked {
		t.Fatalf("expected seat BOOKED, got %s", got)
	}
	if store.reservationCount() != 1 {
		t.Fatalf("expected exactly 1 reservation, got %d", store.reservationCount())
	}
}

func TestReserveOccupiedSeat(t *testing.T) {
	eng, store, notifier, clock := newTestEngine(vacantSeat(1, "A1", 0))
	ctx := context.Background()

	// Detected presence alone does not block a booking.
	if _, err := eng.ApplyDetection(ctx, 1, true, clock.Now()); err != nil {
		t.Fatalf("detection: %v", err)
	}
	if got := store.seat(1).Status; got != model.StatusOccupied {
		t.Fatalf("expected OCCUPIED before booking, got %s", got)
	}

	res, err := eng.Reserve(ctx, 1, 7)
	if err != nil {
		t.Fatalf("reserve over occupied seat: %v", err)
	}
	if res.EndTime.Sub(res.StartTime) != 2*time.Hour {
		t.Fatalf("expected 2h reservation, got %s", res.EndTime.Sub(res.StartTime))
	}
	seat := store.seat(1)
	if seat.Status != model.StatusBooked {
		t.Fatalf("expected BOOKED, got %s", seat.Status)
	}

	events := notifier.all()
	if len(events) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(events))
	}
	last := events[1]
	if last.From != model.StatusOccupied || last.To != model.StatusBooked || last.Cause != model.CauseBooking {
		t.Fatalf("unexpected transition %+v", last)
	}
}

func TestReserveSeatNotFound(t *testing.T) {
	eng, _, _, _ := newTestEngine(vacantSeat(1, "A1", 0))
	if _, err := eng.Reserve(context.Background(), 99, 1); !errors.Is(err, ErrSeatNotFound) {
		t.Fatalf("expected ErrSeatNotFound, got %v", err)
	}
}

func TestDetectionIgnoredWhileBooked(t *testing.T) {
	eng, store, notifier, clock := newTestEngine(vacantSeat(1, "A1", 0))
	ctx := context.Background()

	if _, err := eng.Reserve(ctx, 1, 1); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	before := len(notifier.all())

	for _, present := range []bool{true, false, true} {
		changed, err := eng.ApplyDetection(ctx, 1, present, clock.Now())
		if err != nil {
			t.Fatalf("detection(%v): %v", present, err)
		}
		if changed {
			t.Fatalf("detection(%v) changed a booked seat", present)
		}
	}
	if got := store.seat(1).Status; got != model.StatusBooked {
		t.Fatalf("expected seat to stay BOOKED, got %s", got)
	}
	if got := len(notifier.all()); got != before {
		t.Fatalf("expected no transitions from ignored verdicts, got %d new", got-before)
	}
}

func TestDetectionTransitions(t *testing.T) {
	eng, store, notifier, clock := newTestEngine(vacantSeat(1, "A1", 0))
	ctx := context.Background()
	at := clock.Now()

	changed, err := eng.ApplyDetection(ctx, 1, true, at)
	if err != nil || !changed {
		t.Fatalf("first presence verdict: changed=%v err=%v", changed, err)
	}
	seat := store.seat(1)
	if seat.Status != model.StatusOccupied {
		t.Fatalf("expected OCCUPIED, got %s", seat.Status)
	}
	if seat.OccupiedSince == nil || !seat.OccupiedSince.Equal(at) {
		t.Fatalf("expected occupied_since %v, got %v", at, seat.OccupiedSince)
	}

	// Repeating the same verdict is a no-op, not a new transition.
	clock.Advance(time.Minute)
	changed, err = eng.ApplyDetection(ctx, 1, true, clock.Now())
	if err != nil || changed {
		t.Fatalf("repeat verdict: changed=%v err=%v", changed, err)
	}
	if since := store.seat(1).OccupiedSince; since == nil || !since.Equal(at) {
		t.Fatalf("occupied_since moved on repeat verdict: %v", since)
	}

	changed, err = eng.ApplyDetection(ctx, 1, false, clock.Now())
	if err != nil || !changed {
		t.Fatalf("absence verdict: changed=%v err=%v", changed, err)
	}
	seat = store.seat(1)
	if seat.Status != model.StatusVacant || seat.OccupiedSince != nil {
		t.Fatalf("expected VACANT with cleared occupied_since, got %s %v", seat.Status, seat.OccupiedSince)
	}

	events := notifier.all()
	if len(events) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(events))
	}
	if events[0].To != model.StatusOccupied || events[1].To != model.StatusVacant {
		t.Fatalf("unexpected transition order: %+v", events)
	}
	for _, ev := range events {
		if ev.Cause != model.CauseDetection {
			t.Fatalf("expected detection cause, got %s", ev.Cause)
		}
	}
}

func TestConcurrentDetectionPublishOrder(t *testing.T) {
	eng, _, notifier, clock := newTestEngine(vacantSeat(1, "A1", 0))
	ctx := context.Background()

	// Two goroutines flood one seat with opposing verdicts. Commits
	// serialize on the store, so the seat's delivered history must
	// chain: each transition starts from the previous one's target.
	const rounds = 2000
	var wg sync.WaitGroup
	for _, present := range []bool{true, false} {
		wg.Add(1)
		go func(present bool) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				if _, err := eng.ApplyDetection(ctx, 1, present, clock.Now()); err != nil {
					t.Errorf("detection(%v): %v", present, err)
					return
				}
			}
		}(present)
	}
	wg.Wait()

	events := notifier.all()
	if len(events) == 0 {
		t.Fatal("expected at least one transition")
	}
	if events[0].From != model.StatusVacant {
		t.Fatalf("history does not start from VACANT: %+v", events[0])
	}
	for i := 1; i < len(events); i++ {
		if events[i].From != events[i-1].To {
			t.Fatalf("delivery out of commit order at %d: %s->%s after %s->%s",
				i, events[i].From, events[i].To, events[i-1].From, events[i-1].To)
		}
	}
}

func TestCancel(t *testing.T) {
	eng, store, _, _ := newTestEngine(vacantSeat(1, "A1", 0))
	ctx := context.Background()

	res, err := eng.Reserve(ctx, 1, 1)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := eng.Cancel(ctx, res.ID, 2); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for wrong holder, got %v", err)
	}
	if err := eng.Cancel(ctx, res.ID, 1); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := store.seat(1).Status; got != model.StatusVacant {
		t.Fatalf("expected VACANT after cancel, got %s", got)
	}
	if store.reservationCount() != 0 {
		t.Fatalf("reservation still present after cancel")
	}
	if err := eng.Cancel(ctx, res.ID, 1); !errors.Is(err, ErrReservationNotFound) {
		t.Fatalf("expected ErrReservationNotFound on second cancel, got %v", err)
	}
}

func TestCurrentReservation(t *testing.T) {
	eng, _, _, _ := newTestEngine(vacantSeat(1, "A1", 0))
	ctx := context.Background()

	res, err := eng.CurrentReservation(ctx, 1)
	if err != nil || res != nil {
		t.Fatalf("expected no reservation, got %+v err=%v", res, err)
	}

	created, err := eng.Reserve(ctx, 1, 1)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	res, err = eng.CurrentReservation(ctx, 1)
	if err != nil {
		t.Fatalf("current reservation: %v", err)
	}
	if res == nil || res.ID != created.ID {
		t.Fatalf("expected reservation %d, got %+v", created.ID, res)
	}
}

func TestSweepReleasesExpired(t *testing.T) {
	eng, store, notifier, clock := newTestEngine(vacantSeat(1, "A1", 0), vacantSeat(2, "A2", 200))
	ctx := context.Background()

	if _, err := eng.Reserve(ctx, 1, 1); err != nil {
		t.Fatalf("reserve seat 1: %v", err)
	}
	clock.Advance(time.Hour)
	if _, err := eng.Reserve(ctx, 2, 2); err != nil {
		t.Fatalf("reserve seat 2: %v", err)
	}

	// Seat 1's reservation has expired; seat 2's is still live.
	clock.Advance(90 * time.Minute)

	report, err := eng.RunExpirySweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Expired != 1 || report.Released != 1 || report.LeftOccupied != 0 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if got := store.seat(1).Status; got != model.StatusVacant {
		t.Fatalf("expected seat 1 VACANT, got %s", got)
	}
	if got := store.seat(2).Status; got != model.StatusBooked {
		t.Fatalf("expected seat 2 still BOOKED, got %s", got)
	}
	if store.reservationCount() != 1 {
		t.Fatalf("expected 1 surviving reservation, got %d", store.reservationCount())
	}

	events := notifier.all()
	last := events[len(events)-1]
	if last.SeatID != 1 || last.Cause != model.CauseExpiry || last.To != model.StatusVacant {
		t.Fatalf("unexpected expiry transition %+v", last)
	}

	// Idempotent: a second run finds nothing and changes nothing.
	report, err = eng.RunExpirySweep(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if report.Expired != 0 || report.Released != 0 {
		t.Fatalf("second sweep not idempotent: %+v", report)
	}
	if got := len(notifier.all()); got != len(events) {
		t.Fatalf("second sweep published %d extra transitions", got-len(events))
	}
}

func TestSweepLeavesOccupiedSeat(t *testing.T) {
	eng, store, notifier, clock := newTestEngine(vacantSeat(1, "A1", 0))
	ctx := context.Background()

	if _, err := eng.Reserve(ctx, 1, 1); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	// Past expiry the reservation no longer shields the seat, so the
	// next frame's presence verdict lands before the sweep does.
	clock.Advance(3 * time.Hour)
	if _, err := eng.ApplyDetection(ctx, 1, true, clock.Now()); err != nil {
		t.Fatalf("detection: %v", err)
	}

	before := len(notifier.all())
	report, err := eng.RunExpirySweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Expired != 1 || report.LeftOccupied != 1 || report.Released != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if got := store.seat(1).Status; got != model.StatusOccupied {
		t.Fatalf("expected seat to stay OCCUPIED, got %s", got)
	}
	if store.reservationCount() != 0 {
		t.Fatalf("expired reservation not retired")
	}
	if got := len(notifier.all()); got != before {
		t.Fatalf("retirement without a status change published %d transitions", got-before)
	}
}

func TestSweepRetriesConflicts(t *testing.T) {
	eng, store, _, clock := newTestEngine(vacantSeat(1, "A1", 0))
	ctx := context.Background()

	if _, err := eng.Reserve(ctx, 1, 1); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	clock.Advance(3 * time.Hour)

	store.mu.Lock()
	store.conflicts = 1
	store.mu.Unlock()

	report, err := eng.RunExpirySweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Released != 1 || report.Failed != 0 {
		t.Fatalf("expected retried retirement to succeed, got %+v", report)
	}
}

func TestReserveDetectExpireLifecycle(t *testing.T) {
	eng, store, notifier, clock := newTestEngine(vacantSeat(1, "A1", 0))
	ctx := context.Background()

	if _, err := eng.Reserve(ctx, 1, 1); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	// Verdicts during the booking window are ignored.
	clock.Advance(time.Hour)
	if changed, err := eng.ApplyDetection(ctx, 1, true, clock.Now()); err != nil || changed {
		t.Fatalf("in-window verdict: changed=%v err=%v", changed, err)
	}
	clock.Advance(2 * time.Hour)
	if _, err := eng.RunExpirySweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if got := store.seat(1).Status; got != model.StatusVacant {
		t.Fatalf("expected VACANT after expiry, got %s", got)
	}

	events := notifier.all()
	if len(events) != 2 {
		t.Fatalf("expected exactly 2 transitions, got %d: %+v", len(events), events)
	}
	if events[0].To != model.StatusBooked || events[0].Cause != model.CauseBooking {
		t.Fatalf("unexpected first transition %+v", events[0])
	}
	if events[1].To != model.StatusVacant || events[1].Cause != model.CauseExpiry {
		t.Fatalf("unexpected second transition %+v", events[1])
	}
}

func TestApplyFrame(t *testing.T) {
	eng, store, _, clock := newTestEngine(
		vacantSeat(1, "A1", 0),
		vacantSeat(2, "A2", 200),
		vacantSeat(3, "A3", 400),
	)
	ctx := context.Background()

	frame := Frame{
		ID: "frame-1",
		At: clock.Now(),
		Regions: []model.Region{
			{X1: 50, Y1: 10, X2: 150, Y2: 90}, // overlaps seat 1 only
			{X1: 9, Y1: 9, X2: 9, Y2: 9},      // malformed: zero area
		},
		Verdicts: []SeatVerdict{{SeatID: 3, Present: true}},
	}
	result, err := eng.ApplyFrame(ctx, frame)
	if err != nil {
		t.Fatalf("apply frame: %v", err)
	}
	if result.Seats != 3 || result.Transitions != 2 || result.Dropped != 1 || result.Failed != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if got := store.seat(1).Status; got != model.StatusOccupied {
		t.Fatalf("expected seat 1 OCCUPIED, got %s", got)
	}
	if got := store.seat(2).Status; got != model.StatusVacant {
		t.Fatalf("expected seat 2 VACANT, got %s", got)
	}
	if got := store.seat(3).Status; got != model.StatusOccupied {
		t.Fatalf("expected explicit verdict to mark seat 3 OCCUPIED, got %s", got)
	}

	// The next frame shows everyone gone.
	clock.Advance(5 * time.Second)
	result, err = eng.ApplyFrame(ctx, Frame{ID: "frame-2", At: clock.Now()})
	if err != nil {
		t.Fatalf("apply empty frame: %v", err)
	}
	if result.Transitions != 2 {
		t.Fatalf("expected 2 transitions back to VACANT, got %d", result.Transitions)
	}
	for id := uint64(1); id <= 3; id++ {
		if got := store.seat(id).Status; got != model.StatusVacant {
			t.Fatalf("expected seat %d VACANT, got %s", id, got)
		}
	}
}
