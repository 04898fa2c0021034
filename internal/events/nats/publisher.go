// Package nats publishes lifecycle events as JSON on NATS subjects of the
// form <prefix>.<event type>.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tjfontaine/polyglot-persona/internal/events"
)

// DefaultSubjectPrefix is used when none is configured.
const DefaultSubjectPrefix = "persona"

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// Publisher implements events.Publisher on a NATS connection.
type Publisher struct {
	conn   conn
	prefix string
	logger *slog.Logger
}

var _ events.Publisher = (*Publisher)(nil)

// Connect dials NATS and returns a publisher. The connection retries in
// the background, so a broker that is down at startup does not block the
// service.
func Connect(url, token, prefix string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []nats.Option{
		nats.Name("persona-server"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return newPublisher(nc, prefix, logger), nil
}

func newPublisher(c conn, prefix string, logger *slog.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Publisher{conn: c, prefix: prefix, logger: logger}
}

// Subject returns the subject an event type is published on.
func (p *Publisher) Subject(typ events.Type) string {
	return p.prefix + "." + string(typ)
}

// Publish marshals the event and publishes it. Delivery is at most once.
func (p *Publisher) Publish(ctx context.Context, event *events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := p.Subject(event.Type)
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close flushes pending messages and drains the connection.
func (p *Publisher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.conn.FlushWithContext(ctx); err != nil {
		p.logger.Warn("nats flush failed", slog.String("error", err.Error()))
	}
	return p.conn.Drain()
}
