// Package storage persists the gateway's small amount of durable state: named
// option documents (webhook subscription, registration failure, simulation
// record) and the journal of processed event ids.
package storage

import (
	"context"
	"time"
)

// OptionStore is a durable key/value store without expiry
type OptionStore interface {
	// GetOption returns found=false when the key has never been set or was deleted
	GetOption(ctx context.Context, key string) (value string, found bool, err error)
	SetOption(ctx context.Context, key, value string) error
	DeleteOption(ctx context.Context, key string) error
}

// EventState is what RecordEvent found for an event id
type EventState string

const (
	// EventNew means the id was unknown and is now claimed as pending
	EventNew EventState = "new"
	// EventPending means another delivery claimed the id and has not finished
	EventPending EventState = "pending"
	// EventDone means the event was already processed
	EventDone EventState = "done"
)

// PendingLease is how long a pending claim blocks other deliveries. A claim
// older than this is taken over, so a crash mid-publish does not wedge the id.
const PendingLease = 5 * time.Minute

// EventJournal remembers which provider event ids have already been processed
type EventJournal interface {
	// RecordEvent claims id as pending when it is unknown or its claim has
	// expired, and otherwise reports the state it is in
	RecordEvent(ctx context.Context, id, eventType string) (EventState, error)
	// CompleteEvent marks a claimed id as done
	CompleteEvent(ctx context.Context, id string) error
	// ForgetEvent removes id so a redelivery is processed again
	ForgetEvent(ctx context.Context, id string) error
}

// Store is implemented by every backend
type Store interface {
	OptionStore
	EventJournal
	Health() error
	Close() error
}

// ProcessedEvent is a row of the event journal
type ProcessedEvent struct {
	ID         string     `json:"id"`
	EventType  string     `json:"event_type"`
	Status     EventState `json:"status"`
	ReceivedAt time.Time  `json:"received_at"`
}
