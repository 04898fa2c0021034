// Package events defines session lifecycle events and the publisher port
// they are sent through.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/polyglot-persona/internal/domain"
)

// Type names a lifecycle event.
type Type string

const (
	TypeSessionCreated    Type = "session.created"
	TypeKeywordConfirmed  Type = "keyword.confirmed"
	TypeSceneGenerated    Type = "scene.generated"
	TypeChoiceSubmitted   Type = "choice.submitted"
	TypeResultGenerated   Type = "result.generated"
	TypeFallbackActivated Type = "fallback.activated"
	TypeSessionDeleted    Type = "session.deleted"
)

// Event is one lifecycle event. Generation and ProviderErrors carry the
// observability records produced by the step, when there are any.
type Event struct {
	ID             string                       `json:"id"`
	Type           Type                         `json:"type"`
	SessionID      string                       `json:"session_id"`
	Timestamp      time.Time                    `json:"timestamp"`
	Data           map[string]any               `json:"data,omitempty"`
	Generation     *domain.GenerationMetadata   `json:"generation,omitempty"`
	ProviderErrors []domain.ProviderErrorRecord `json:"provider_errors,omitempty"`
}

// New creates an event stamped with a fresh id and the current time.
func New(typ Type, sessionID string, data map[string]any) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      typ,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Publisher delivers lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, *Event) error { return nil }

func (Nop) Close() error { return nil }

// Recorder keeps published events in memory for inspection.
type Recorder struct {
	ch chan *Event
}

// NewRecorder creates a recorder buffering up to size events; further
// events are dropped.
func NewRecorder(size int) *Recorder {
	return &Recorder{ch: make(chan *Event, size)}
}

func (r *Recorder) Publish(_ context.Context, event *Event) error {
	select {
	case r.ch <- event:
	default:
	}
	return nil
}

func (r *Recorder) Close() error { return nil }

// Drain returns the buffered events in publish order.
func (r *Recorder) Drain() []*Event {
	var out []*Event
	for {
		select {
		case e := <-r.ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

// Send publishes an event and logs a failure instead of returning it.
// Lifecycle events never fail the user flow.
func Send(ctx context.Context, p Publisher, logger *slog.Logger, event *Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, event); err != nil {
		logger.Warn("failed to publish event",
			slog.String("type", string(event.Type)),
			slog.String("session_id", event.SessionID),
			slog.String("error", err.Error()))
	}
}
