package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

type natsPublisher interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes envelopes on core NATS subjects
type NATSPublisher struct {
	conn   natsPublisher
	prefix string
}

// ConnectNATS opens a NATS connection with reconnect logging
func ConnectNATS(servers string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("betboard"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Error("NATS disconnected with error")
			} else {
				log.Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(servers, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.WithField("servers", servers).Info("Connected to NATS")
	return nc, nil
}

// NewNATSPublisher creates a publisher using subjects "<prefix>.<event type>"
func NewNATSPublisher(conn natsPublisher, prefix string) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// Name identifies the sink in logs
func (p *NATSPublisher) Name() string {
	return "nats"
}

// Send publishes the envelope
func (p *NATSPublisher) Send(ctx context.Context, envelope *Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	subject := envelope.Subject(p.prefix)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}
