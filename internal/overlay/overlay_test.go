package overlay

import (
	"errors"
	"testing"

	"seatwatch/internal/model"
)

func seat(id uint64, x1, y1, x2, y2 int) model.Seat {
	return model.Seat{ID: id, Region: model.Region{X1: x1, Y1: y1, X2: x2, Y2: y2}}
}

func TestResolve(t *testing.T) {
	seats := []model.Seat{
		seat(1, 0, 0, 100, 100),
		seat(2, 200, 0, 300, 100),
		seat(3, 400, 0, 500, 100),
	}

	tests := []struct {
		name   string
		region model.Region
		want   []uint64
	}{
		{"inside one seat", model.Region{X1: 10, Y1: 10, X2: 90, Y2: 90}, []uint64{1}},
		{"spans two seats", model.Region{X1: 50, Y1: 10, X2: 250, Y2: 90}, []uint64{1, 2}},
		{"between seats", model.Region{X1: 110, Y1: 10, X2: 190, Y2: 90}, nil},
		{"covers all seats", model.Region{X1: -10, Y1: -10, X2: 600, Y2: 200}, []uint64{1, 2, 3}},
		// Touching edges share no interior, so touching is not overlap.
		{"touches right edge", model.Region{X1: 100, Y1: 0, X2: 200, Y2: 100}, []uint64{}},
		{"one pixel of overlap", model.Region{X1: 99, Y1: 99, X2: 101, Y2: 101}, []uint64{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.region, seats)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected seats %v, got %v", tt.want, got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("expected seats %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestResolveMalformed(t *testing.T) {
	seats := []model.Seat{seat(1, 0, 0, 100, 100)}
	malformed := []model.Region{
		{X1: 50, Y1: 50, X2: 50, Y2: 50},  // zero area
		{X1: 100, Y1: 0, X2: 0, Y2: 100},  // inverted x
		{X1: 0, Y1: 100, X2: 100, Y2: 0},  // inverted y
		{X1: 0, Y1: 0, X2: 100, Y2: 0},    // zero height
	}
	for _, r := range malformed {
		if _, err := Resolve(r, seats); !errors.Is(err, ErrMalformedRegion) {
			t.Fatalf("region %+v: expected ErrMalformedRegion, got %v", r, err)
		}
	}
}

func TestVerdicts(t *testing.T) {
	seats := []model.Seat{
		seat(1, 0, 0, 100, 100),
		seat(2, 200, 0, 300, 100),
		seat(3, 400, 0, 500, 100),
	}
	regions := []model.Region{
		{X1: 10, Y1: 10, X2: 90, Y2: 90},   // seat 1
		{X1: 20, Y1: 20, X2: 80, Y2: 80},   // seat 1 again
		{X1: 5, Y1: 5, X2: 5, Y2: 5},       // malformed, dropped
		{X1: 410, Y1: 10, X2: 490, Y2: 90}, // seat 3
	}

	verdicts, dropped := Verdicts(regions, seats)
	if dropped != 1 {
		t.Fatalf("expected 1 dropped region, got %d", dropped)
	}
	if len(verdicts) != len(seats) {
		t.Fatalf("expected a verdict for every seat, got %d of %d", len(verdicts), len(seats))
	}
	want := map[uint64]bool{1: true, 2: false, 3: true}
	for id, present := range want {
		if verdicts[id] != present {
			t.Fatalf("seat %d: expected present=%v, got %v", id, present, verdicts[id])
		}
	}
}

func TestVerdictsEmptyFrame(t *testing.T) {
	seats := []model.Seat{seat(1, 0, 0, 100, 100), seat(2, 200, 0, 300, 100)}
	verdicts, dropped := Verdicts(nil, seats)
	if dropped != 0 {
		t.Fatalf("expected 0 dropped, got %d", dropped)
	}
	for id, present := range verdicts {
		if present {
			t.Fatalf("seat %d: empty frame should mean absent", id)
		}
	}
	if len(verdicts) != 2 {
		t.Fatalf("expected 2 verdicts, got %d", len(verdicts))
	}
}
