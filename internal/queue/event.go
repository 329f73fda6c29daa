// Package queue defines message payloads exchanged over the message
// broker and the background consumers that process them. Two durable
// queues are used: detection.frames carries inbound frames from the
// perception pipeline, seat.transitions carries outbound committed
// status changes for external subscribers.
package queue

const (
	// DetectionQueueName is the inbound queue of perception frames.
	DetectionQueueName = "detection.frames"
	// TransitionQueueName is the outbound queue of status transitions.
	TransitionQueueName = "seat.transitions"
)

// RegionPayload is a detected bounding box in frame coordinates.
type RegionPayload struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// SeatVerdictPayload is a pre-resolved presence verdict for one seat.
type SeatVerdictPayload struct {
	SeatID  uint64 `json:"seat_id"`
	Present bool   `json:"present"`
}

// DetectionFrameEvent is one processed frame from the perception
// pipeline. Regions are the person boxes detected in the frame; a
// pipeline that already knows the seat layout may send Verdicts
// instead.
type DetectionFrameEvent struct {
	FrameID  string               `json:"frame_id"`
	At       string               `json:"at"` // RFC3339, UTC
	Regions  []RegionPayload      `json:"regions"`
	Verdicts []SeatVerdictPayload `json:"verdicts,omitempty"`
}

// SeatTransitionEvent is published for every committed seat status
// change. It contains enough information for downstream consumers to
// update a live map or log without querying the primary database.
type SeatTransitionEvent struct {
	EventID string `json:"event_id"`
	SeatID  uint64 `json:"seat_id"`
	From    string `json:"from"`
	To      string `json:"to"`
	At      string `json:"at"` // RFC3339, UTC
	Cause   string `json:"cause"`
}
