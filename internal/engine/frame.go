package engine

import (
	"context"
	"log"
	"time"

	"seatwatch/internal/model"
	"seatwatch/internal/overlay"
)

// Frame is one detection cycle's worth of input from the perception
// pipeline. Regions are the detected person boxes for the frame; a
// pipeline that resolves seats itself may send Verdicts instead (or in
// addition), which take precedence for the seats they name.
type Frame struct {
	ID       string         `json:"frame_id"`
	At       time.Time      `json:"at"`
	Regions  []model.Region `json:"regions"`
	Verdicts []SeatVerdict  `json:"verdicts,omitempty"`
}

// SeatVerdict is a pre-resolved presence verdict for one seat.
type SeatVerdict struct {
	SeatID  uint64 `json:"seat_id"`
	Present bool   `json:"present"`
}

// FrameResult summarizes the application of one frame.
type FrameResult struct {
	Seats       int // seats evaluated
	Transitions int // committed status changes
	Dropped     int // malformed regions discarded
	Failed      int // seats whose update failed (logged, not fatal)
}

// ApplyFrame resolves the frame's regions against the seat layout and
// applies the resulting verdicts, one transaction per seat. A failure
// on one seat never aborts the rest of the batch; the seat keeps its
// previous status and is corrected by the next frame.
func (e *Engine) ApplyFrame(ctx context.Context, frame Frame) (FrameResult, error) {
	seats, err := e.store.Seats(ctx)
	if err != nil {
		return FrameResult{}, err
	}
	verdicts, dropped := overlay.Verdicts(frame.Regions, seats)
	if dropped > 0 {
		log.Printf("detection: frame %s: dropped %d malformed region(s)", frame.ID, dropped)
	}
	for _, v := range frame.Verdicts {
		if _, known := verdicts[v.SeatID]; known {
			verdicts[v.SeatID] = v.Present
		}
	}
	at := frame.At
	if at.IsZero() {
		at = e.now()
	}
	result := FrameResult{Seats: len(verdicts), Dropped: dropped}
	for _, s := range seats {
		changed, err := e.ApplyDetection(ctx, s.ID, verdicts[s.ID], at)
		if err != nil {
			result.Failed++
			log.Printf("detection: frame %s: seat %d: %v", frame.ID, s.ID, err)
			continue
		}
		if changed {
			result.Transitions++
		}
	}
	return result, nil
}
