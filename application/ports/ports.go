package ports

import (
	"context"

	"github.com/maxsergeev/YD-Project-2/domain/core/valueobjects"
	"github.com/maxsergeev/YD-Project-2/domain/events"
)

// AppendResult describes the outcome of a successful append
type AppendResult struct {
	// CreatedNewUser is true when this append created the user's record
	CreatedNewUser bool
}

// EntryStore defines the interface for diary persistence
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
type EntryStore interface {
	// AppendEntry adds text to the end of the user's page for date, creating
	// the user's record when it does not exist yet. Concurrent appends for the
	// same user and date must not lose entries.
	AppendEntry(ctx context.Context, userID valueobjects.UserID, date valueobjects.DiaryDate, text string) (AppendResult, error)

	// GetEntries returns the entries for date in submission order.
	// An unknown user or date yields an empty slice and no error.
	GetEntries(ctx context.Context, userID valueobjects.UserID, date valueobjects.DiaryDate) ([]string, error)

	// Ping checks connectivity with the backing engine
	Ping(ctx context.Context) error

	// Close releases the underlying connection
	Close() error
}

// EventPublisher publishes domain events to interested consumers
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
}
