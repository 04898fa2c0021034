// Package direct provides an event publisher that writes straight into the
// audit store. It is the default for single-instance deployments.
package direct

import (
	"context"
	"errors"
	"fmt"

	"github.com/tjfontaine/polyglot-persona/internal/domain"
	"github.com/tjfontaine/polyglot-persona/internal/events"
)

// Store is the subset of the audit store the publisher needs.
type Store interface {
	AppendEvent(ctx context.Context, event *events.Event) error
	RecordGeneration(ctx context.Context, sessionID string, meta domain.GenerationMetadata) error
	RecordProviderError(ctx context.Context, sessionID string, rec domain.ProviderErrorRecord) error
}

// Publisher implements events.Publisher by writing to a Store.
type Publisher struct {
	store Store
}

var _ events.Publisher = (*Publisher)(nil)

// NewPublisher creates a new direct event publisher.
func NewPublisher(store Store) (*Publisher, error) {
	if store == nil {
		return nil, fmt.Errorf("audit store required")
	}
	return &Publisher{store: store}, nil
}

// Publish writes the event and any records it carries.
func (p *Publisher) Publish(ctx context.Context, event *events.Event) error {
	if err := p.store.AppendEvent(ctx, event); err != nil {
		return err
	}

	var errs []error
	if event.Generation != nil {
		errs = append(errs, p.store.RecordGeneration(ctx, event.SessionID, *event.Generation))
	}
	for _, rec := range event.ProviderErrors {
		errs = append(errs, p.store.RecordProviderError(ctx, event.SessionID, rec))
	}
	return errors.Join(errs...)
}

// Close is a no-op; the store is owned by the caller.
func (p *Publisher) Close() error {
	return nil
}
