package outbox

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// MaxAttempts bounds redelivery before a row is parked as failed.
const MaxAttempts = 10

// Event is one outbox row claimed by a relay.
type Event struct {
	ID            int64
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string
	CreatedAt     time.Time
	Status        Status
	RelayID       string
	// Attempts counts earlier failed dispatches of this row.
	Attempts int
}

// LastAttempt reports whether a failure now parks the row for good.
func (e Event) LastAttempt() bool {
	return e.Attempts+1 >= MaxAttempts
}
