package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type IdentityEventType string

const (
	EventUserCreated    IdentityEventType = "user.created"
	EventUserUpdated    IdentityEventType = "user.updated"
	EventIdentityLinked IdentityEventType = "identity.linked"
)

// IdentityEvent is emitted after a unit of work has committed.
type IdentityEvent struct {
	Type           IdentityEventType
	UserID         uuid.UUID
	Email          string
	Provider       Provider
	ProviderUserID string
	OccurredAt     time.Time
}

// EventPublisher delivers identity events to interested parties.
type EventPublisher interface {
	Publish(ctx context.Context, event IdentityEvent) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, IdentityEvent) error { return nil }
