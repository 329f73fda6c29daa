package notifier

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"seatwatch/internal/model"
	q "seatwatch/internal/queue"
)

// BrokerBridge relays hub transitions onto the seat.transitions queue
// so external consumers can follow seat state without polling. It is
// itself just another hub subscriber: if the broker is down, events
// are dropped and logged; seat state commits are never affected.
type BrokerBridge struct {
	url  string
	stop func()
}

// StartBrokerBridge subscribes to the hub and publishes every
// transition to RabbitMQ. It runs a reconnect loop with exponential
// backoff and returns a handle whose Stop unsubscribes and shuts the
// relay down.
func StartBrokerBridge(hub *Hub, url string) *BrokerBridge {
	ch, cancel := hub.Subscribe()
	b := &BrokerBridge{url: url, stop: cancel}
	go b.run(ch)
	return b
}

// Stop detaches the bridge from the hub. In-flight events are dropped.
func (b *BrokerBridge) Stop() { b.stop() }

func (b *BrokerBridge) run(events <-chan model.StatusTransition) {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(b.url)
		if err != nil {
			log.Printf("transition-bridge: dial failed: %v; retrying in %s", err, backoff)
			if !b.sleepDraining(events, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := b.publishLoop(conn, events); err != nil {
			log.Printf("transition-bridge: publish loop ended: %v; reconnecting", err)
			_ = conn.Close()
			continue
		}
		_ = conn.Close()
		return // hub channel closed
	}
}

// sleepDraining waits for the backoff period while discarding events
// so the hub buffer does not fill with stale transitions. It returns
// false when the hub channel has been closed.
func (b *BrokerBridge) sleepDraining(events <-chan model.StatusTransition, d time.Duration) bool {
	deadline := time.After(d)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return false
			}
		case <-deadline:
			return true
		}
	}
}

func (b *BrokerBridge) publishLoop(conn *amqp.Connection, events <-chan model.StatusTransition) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so transitions survive broker restarts.
	if _, err := ch.QueueDeclare(q.TransitionQueueName, true, false, false, false, nil); err != nil {
		return err
	}

	for t := range events {
		body, err := json.Marshal(q.SeatTransitionEvent{
			EventID: uuid.NewString(),
			SeatID:  t.SeatID,
			From:    string(t.From),
			To:      string(t.To),
			At:      t.At.UTC().Format(time.RFC3339),
			Cause:   string(t.Cause),
		})
		if err != nil {
			log.Printf("transition-bridge: marshal event failed: %v", err)
			continue
		}
		pub := amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent, // store on disk
			Timestamp:    time.Now().UTC(),
			Body:         body,
		}
		if err := ch.Publish("", q.TransitionQueueName, false, false, pub); err != nil {
			return err
		}
	}
	return nil
}
