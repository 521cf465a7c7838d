// Package schedule provides the in-memory RSVP job registry and scheduler.
package schedule

import (
	"time"
)

// Action is the RSVP action a scheduled job performs
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

// IsValidAction returns true if the string is a valid Action
func IsValidAction(s string) bool {
	switch Action(s) {
	case ActionAdd, ActionRemove:
		return true
	default:
		return false
	}
}

// Response resolves the Meetup RSVP response for the action
func (a Action) Response() string {
	if a == ActionRemove {
		return "NO"
	}
	return "YES"
}

// State represents the lifecycle state of a scheduled job
type State string

const (
	StatePending   State = "pending"
	StateFiring    State = "firing"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Job is a scheduled RSVP submission. All fields a firing needs are
// captured at creation time; nothing is re-read when the timer elapses.
//
// Jobs are owned by the Scheduler registry for their pending lifetime and
// keyed internally by ID. Name is a human-readable display label, kept
// unique within the pending set by suffixing on collision.
type Job struct {
	ID        string
	Name      string
	EventID   string
	EventTime time.Time
	FireAt    time.Time
	UserName  string
	Extras    int
	Action    Action
	TestMode  bool
	State     State

	// authToken is the user's session credential. Never logged,
	// never serialized.
	authToken string

	timer *time.Timer
}

// PendingJob is the introspection view of a job in the Pending set
type PendingJob struct {
	JobName    string    `json:"jobName"`
	FireAt     time.Time `json:"scheduledFor"`
	UserName   string    `json:"userName"`
	EventDate  string    `json:"eventDate"`
	Extras     int       `json:"extras"`
	IsTestMode bool      `json:"isTestMode"`
}

// Result carries the outcome detail of an executed job. For successful
// executions only Message is set; for errors Code (and optionally Field)
// identify the upstream rejection.
type Result struct {
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Execution record status constants
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ExecutionRecord is the immutable ledger snapshot of a terminal job
type ExecutionRecord struct {
	JobName      string    `json:"jobName"`
	EventID      string    `json:"eventId"`
	UserName     string    `json:"userName"`
	Extras       int       `json:"extras"`
	RSVPResponse string    `json:"rsvpResponse"` // "YES" or "NO"
	ExecutedAt   time.Time `json:"executedAt"`
	Status       string    `json:"status"` // "success" or "error"
	Result       Result    `json:"result"`
}

// Outcome is the interpreted result of a remote RSVP submission.
// Success means the upstream accepted the RSVP; otherwise Err carries
// the first upstream rejection.
type Outcome struct {
	Success bool
	Err     *Result
}
