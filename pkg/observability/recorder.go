package observability

import (
	"time"
)

// Outcomes reported by MessageHandled
const (
	OutcomeOK          = "ok"
	OutcomeInvalidDate = "invalid_date"
	OutcomeStorage     = "storage_error"
	OutcomeInternal    = "internal_error"
)

// Recorder is the metrics sink used across the service.
type Recorder interface {
	// MessageHandled counts one routed message by intent and outcome
	MessageHandled(intent, outcome string)
	// StoreOperation records latency and status of one persistence call
	StoreOperation(operation string, duration time.Duration, err error)
	// DeliveryFailed counts replies the transport could not deliver
	DeliveryFailed(transport string)
	// UserCreated counts diaries created by a first append
	UserCreated()
	// RecordQuery records latency and status of a query bus dispatch
	RecordQuery(queryType string, duration time.Duration, err error)
}

// Nop discards every measurement
type Nop struct{}

// NewNop creates a recorder that records nothing
func NewNop() Nop { return Nop{} }

func (Nop) MessageHandled(string, string)               {}
func (Nop) StoreOperation(string, time.Duration, error) {}
func (Nop) DeliveryFailed(string)                       {}
func (Nop) UserCreated()                                {}
func (Nop) RecordQuery(string, time.Duration, error)    {}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
