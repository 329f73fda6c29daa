// Background consumers: one feeds detection frames from the broker
// into the reconciliation engine, the other appends committed
// transitions to logs/transitions.log for audit by humans.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"seatwatch/internal/engine"
	"seatwatch/internal/model"
)

// frameTimeout bounds the application of a single detection frame.
const frameTimeout = 30 * time.Second

// StartDetectionConsumer connects to RabbitMQ, declares the
// detection.frames queue (durable), and starts consuming frames. Each
// frame is resolved against the seat layout and applied one
// transaction per seat. The function runs a reconnect loop and keeps
// running across broker failures; malformed messages are rejected
// without requeue so the ingestion cycle is never wedged by one bad
// payload.
func StartDetectionConsumer(url string, eng *engine.Engine) {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("detection-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeFrames(conn, eng); err != nil {
			log.Printf("detection-consumer: consume loop ended: %v; reconnecting", err)
			_ = conn.Close()
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeFrames(conn *amqp.Connection, eng *engine.Engine) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// One frame at a time: frames supersede each other, prefetching a
	// backlog would only apply stale verdicts.
	if err := ch.Qos(1, 0, false); err != nil {
		log.Printf("detection-consumer: set QoS failed: %v", err)
	}

	if _, err := ch.QueueDeclare(DetectionQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(DetectionQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleFrame(d.Body, eng); err != nil {
			log.Printf("detection-consumer: handle frame failed: %v", err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleFrame(body []byte, eng *engine.Engine) error {
	var ev DetectionFrameEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	frame := engine.Frame{ID: ev.FrameID}
	if ev.At != "" {
		at, err := time.Parse(time.RFC3339, ev.At)
		if err != nil {
			return fmt.Errorf("parse frame timestamp: %w", err)
		}
		frame.At = at.UTC()
	}
	for _, r := range ev.Regions {
		frame.Regions = append(frame.Regions, model.Region{X1: r.X1, Y1: r.Y1, X2: r.X2, Y2: r.Y2})
	}
	for _, v := range ev.Verdicts {
		frame.Verdicts = append(frame.Verdicts, engine.SeatVerdict{SeatID: v.SeatID, Present: v.Present})
	}

	ctx, cancel := context.WithTimeout(context.Background(), frameTimeout)
	defer cancel()
	res, err := eng.ApplyFrame(ctx, frame)
	if err != nil {
		return fmt.Errorf("apply frame: %w", err)
	}
	if res.Transitions > 0 || res.Failed > 0 {
		log.Printf("detection-consumer: frame %s: seats=%d transitions=%d failed=%d",
			ev.FrameID, res.Seats, res.Transitions, res.Failed)
	}
	return nil
}

// StartTransitionLogger consumes the seat.transitions queue and
// appends each event to logs/transitions.log in a single-line,
// human-friendly format. Runs the same reconnect loop as the
// detection consumer.
func StartTransitionLogger(url string) {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("transition-logger: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeTransitions(conn); err != nil {
			log.Printf("transition-logger: consume loop ended: %v; reconnecting", err)
			_ = conn.Close()
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeTransitions(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("transition-logger: set QoS failed: %v", err)
	}

	if _, err := ch.QueueDeclare(TransitionQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(TransitionQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := logTransition(d.Body); err != nil {
			log.Printf("transition-logger: handle message failed: %v", err)
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func logTransition(body []byte) error {
	var ev SeatTransitionEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "transitions.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] Seat %d: %s -> %s | cause=%s | event=%s\n",
		ev.At, ev.SeatID, ev.From, ev.To, ev.Cause, ev.EventID)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
