package events

import (
	"time"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// EventTypeEntryAppended is the detail type of EntryAppended
const EventTypeEntryAppended = "diary.entry_appended"

// EntryAppended is raised after an entry has been stored.
// It never carries the entry text.
type EntryAppended struct {
	BaseEvent
	UserID         string `json:"user_id"`
	Date           string `json:"date"`
	CreatedNewUser bool   `json:"created_new_user"`
}

// NewEntryAppended creates an EntryAppended event
func NewEntryAppended(userID, date string, createdNewUser bool, timestamp time.Time) EntryAppended {
	return EntryAppended{
		BaseEvent: BaseEvent{
			AggregateID: userID,
			EventType:   EventTypeEntryAppended,
			Timestamp:   timestamp,
			Version:     1,
		},
		UserID:         userID,
		Date:           date,
		CreatedNewUser: createdNewUser,
	}
}
