package messaging

import (
	"context"
	"time"

	"betboard/events"

	log "github.com/sirupsen/logrus"
)

// Sink delivers envelopes to an external broker
type Sink interface {
	Send(ctx context.Context, envelope *Envelope) error
	Name() string
}

// Forwarder relays every bus event to the configured sinks
type Forwarder struct {
	sinks   []Sink
	timeout time.Duration
	now     func() time.Time
}

// NewForwarder creates a forwarder for the given sinks
func NewForwarder(sinks ...Sink) *Forwarder {
	return &Forwarder{
		sinks:   sinks,
		timeout: 5 * time.Second,
		now:     time.Now,
	}
}

// Subscribe attaches the forwarder to every event type on the bus
func (f *Forwarder) Subscribe(bus *events.Bus) {
	if len(f.sinks) == 0 {
		return
	}
	bus.SubscribeAll(f.Forward)
}

// Forward sends one event to every sink. Delivery failures are logged only.
func (f *Forwarder) Forward(ctx context.Context, e events.Event) {
	envelope, err := NewEnvelope(e, f.now())
	if err != nil {
		log.WithError(err).WithField("eventType", e.Type()).Error("Failed to build message envelope")
		return
	}

	for _, sink := range f.sinks {
		sendCtx, cancel := context.WithTimeout(ctx, f.timeout)
		err := sink.Send(sendCtx, envelope)
		cancel()

		if err != nil {
			log.WithFields(log.Fields{
				"sink":      sink.Name(),
				"eventType": envelope.Type,
				"messageID": envelope.ID,
				"error":     err,
			}).Error("Failed to forward event")
			continue
		}

		log.WithFields(log.Fields{
			"sink":      sink.Name(),
			"eventType": envelope.Type,
			"messageID": envelope.ID,
		}).Debug("Forwarded event")
	}
}
