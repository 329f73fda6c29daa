package notifier

import (
	"testing"
	"time"

	"seatwatch/internal/model"
)

func transition(seatID uint64, to model.SeatStatus) model.StatusTransition {
	return model.StatusTransition{
		SeatID: seatID,
		From:   model.StatusVacant,
		To:     to,
		At:     time.Now().UTC(),
		Cause:  model.CauseDetection,
	}
}

func TestHubDeliversInOrder(t *testing.T) {
	hub := NewHub()
	events, cancel := hub.Subscribe()
	defer cancel()

	statuses := []model.SeatStatus{model.StatusOccupied, model.StatusVacant, model.StatusBooked}
	for _, s := range statuses {
		hub.Publish(transition(1, s))
	}
	for i, want := range statuses {
		select {
		case got := <-events:
			if got.To != want {
				t.Fatalf("event %d: expected %s, got %s", i, want, got.To)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestHubNeverBlocksPublisher(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe() // never drained
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Well past the subscriber buffer; overflow must be dropped,
		// not block the commit path.
		for i := 0; i < subscriberBuffer*3; i++ {
			hub.Publish(transition(uint64(i), model.StatusOccupied))
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub()
	events, cancel := hub.Subscribe()
	if hub.Len() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.Len())
	}

	cancel()
	if hub.Len() != 0 {
		t.Fatalf("expected 0 subscribers after cancel, got %d", hub.Len())
	}
	if _, open := <-events; open {
		t.Fatal("expected channel closed after cancel")
	}

	// Cancel is safe to call twice.
	cancel()

	// Publishing with no subscribers is a no-op.
	hub.Publish(transition(1, model.StatusOccupied))
}

func TestHubIndependentSubscribers(t *testing.T) {
	hub := NewHub()
	a, cancelA := hub.Subscribe()
	b, cancelB := hub.Subscribe()
	defer cancelA()
	defer cancelB()

	hub.Publish(transition(7, model.StatusBooked))

	for name, ch := range map[string]<-chan model.StatusTransition{"a": a, "b": b} {
		select {
		case got := <-ch:
			if got.SeatID != 7 {
				t.Fatalf("subscriber %s: expected seat 7, got %d", name, got.SeatID)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s: no event", name)
		}
	}
}
