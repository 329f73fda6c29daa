package model

import "testing"

func TestRegionValid(t *testing.T) {
	valid := []Region{
		{X1: 0, Y1: 0, X2: 1, Y2: 1},
		{X1: -10, Y1: -10, X2: 10, Y2: 10},
	}
	for _, r := range valid {
		if !r.Valid() {
			t.Errorf("expected %+v valid", r)
		}
	}
	invalid := []Region{
		{},
		{X1: 5, Y1: 5, X2: 5, Y2: 5},
		{X1: 10, Y1: 0, X2: 0, Y2: 10},
		{X1: 0, Y1: 10, X2: 10, Y2: 0},
	}
	for _, r := range invalid {
		if r.Valid() {
			t.Errorf("expected %+v invalid", r)
		}
	}
}

func TestRegionOverlaps(t *testing.T) {
	base := Region{X1: 0, Y1: 0, X2: 100, Y2: 100}
	tests := []struct {
		name  string
		other Region
		want  bool
	}{
		{"contained", Region{X1: 25, Y1: 25, X2: 75, Y2: 75}, true},
		{"partial", Region{X1: 50, Y1: 50, X2: 150, Y2: 150}, true},
		{"disjoint", Region{X1: 200, Y1: 200, X2: 300, Y2: 300}, false},
		{"shared edge", Region{X1: 100, Y1: 0, X2: 200, Y2: 100}, false},
		{"shared corner", Region{X1: 100, Y1: 100, X2: 200, Y2: 200}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Overlaps(tt.other); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			// Overlap is symmetric.
			if got := tt.other.Overlaps(base); got != tt.want {
				t.Fatalf("reverse: expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSeatStatusValid(t *testing.T) {
	for _, s := range []SeatStatus{StatusVacant, StatusBooked, StatusOccupied} {
		if !s.Valid() {
			t.Errorf("expected %s valid", s)
		}
	}
	if SeatStatus("RESERVED").Valid() {
		t.Error("unknown status accepted")
	}
}
