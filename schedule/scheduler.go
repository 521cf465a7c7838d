package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/courtside/rsvpd/errors"
)

// Submitter performs the remote RSVP call for a firing job.
// Implemented by meetup.Client.
type Submitter interface {
	SubmitRSVP(ctx context.Context, eventID string, extras int, response, authToken string) (Outcome, error)
}

// ModeSource provides the live scheduling knobs. The scheduler reads a
// snapshot at schedule time only; a job's fire time never moves after
// registration.
type ModeSource interface {
	TestMode() bool
	TimeOffsetHours() int
}

// Request describes an RSVP action to schedule
type Request struct {
	EventID   string
	EventTime time.Time
	UserName  string
	Extras    int
	Action    Action
	AuthToken string
}

// Receipt confirms a scheduled job
type Receipt struct {
	JobName string    `json:"jobName"`
	FireAt  time.Time `json:"scheduledFor"`
}

// Config contains scheduler configuration
type Config struct {
	Timing      Timing
	LedgerSize  int
	FireTimeout time.Duration // timeout for the outbound call when a job fires
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Timing:      DefaultTiming(),
		LedgerSize:  DefaultLedgerSize,
		FireTimeout: 30 * time.Second,
	}
}

// SubscriberChannelBufferSize is the buffer size for subscriber channels
const SubscriberChannelBufferSize = 100

// EventType identifies a job lifecycle event
type EventType string

const (
	EventScheduled EventType = "job_scheduled"
	EventFiring    EventType = "job_firing"
	EventExecuted  EventType = "job_executed"
	EventCancelled EventType = "job_cancelled"
)

// Event is a job lifecycle notification delivered to subscribers
type Event struct {
	Type      EventType        `json:"type"`
	JobName   string           `json:"jobName"`
	FireAt    *time.Time       `json:"scheduledFor,omitempty"`
	Record    *ExecutionRecord `json:"record,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Scheduler owns the registry of pending RSVP jobs and the execution
// ledger. One instance is constructed at startup and shared by the HTTP
// handlers; there is no hidden package-level state.
//
// Registry mutations are a mutually-exclusive critical section. The only
// blocking I/O — the outbound remote call when a job fires — happens
// outside the lock.
type Scheduler struct {
	mu          sync.Mutex
	pending     map[string]*Job   // job ID -> job
	byName      map[string]string // display name -> job ID, pending jobs only
	ledger      *Ledger
	subscribers []chan Event

	submitter Submitter
	modes     ModeSource
	cfg       Config
	logger    *zap.SugaredLogger

	// now is swapped out in tests
	now func() time.Time
}

// NewScheduler creates a scheduler with an empty registry
func NewScheduler(submitter Submitter, modes ModeSource, cfg Config, log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		pending:   make(map[string]*Job),
		byName:    make(map[string]string),
		ledger:    NewLedger(cfg.LedgerSize),
		submitter: submitter,
		modes:     modes,
		cfg:       cfg,
		logger:    log,
		now:       time.Now,
	}
}

// Schedule registers a new timed RSVP job and returns its receipt.
//
// The mode knobs are snapshotted here: flipping test mode or the hour
// offset afterwards affects only future schedule calls.
func (s *Scheduler) Schedule(req Request) (Receipt, error) {
	if req.EventID == "" {
		return Receipt{}, errors.NewInvalidRequestError("eventId is required")
	}
	if req.UserName == "" {
		return Receipt{}, errors.NewInvalidRequestError("userName is required")
	}
	if !IsValidAction(string(req.Action)) {
		return Receipt{}, errors.NewInvalidRequestError("unknown action %q", req.Action)
	}

	testMode := s.modes.TestMode()
	offset := s.modes.TimeOffsetHours()

	now := s.now()
	fireAt := FireTime(now, req.EventTime, testMode, req.Action, offset, s.cfg.Timing)
	name := JobName(req.UserName, req.EventTime, testMode, req.Extras)

	job := &Job{
		ID:        uuid.NewString(),
		EventID:   req.EventID,
		EventTime: req.EventTime,
		FireAt:    fireAt,
		UserName:  req.UserName,
		Extras:    req.Extras,
		Action:    req.Action,
		TestMode:  testMode,
		State:     StatePending,
		authToken: req.AuthToken,
	}

	s.mu.Lock()
	job.Name = s.disambiguateLocked(name)
	s.pending[job.ID] = job
	s.byName[job.Name] = job.ID
	jobID := job.ID
	job.timer = time.AfterFunc(time.Until(fireAt), func() {
		s.fire(jobID)
	})
	s.notifyLocked(Event{
		Type:      EventScheduled,
		JobName:   job.Name,
		FireAt:    &job.FireAt,
		Timestamp: now,
	})
	s.mu.Unlock()

	s.logger.Infow("RSVP scheduled",
		"job_name", job.Name,
		"event_id", job.EventID,
		"user", job.UserName,
		"extras", job.Extras,
		"action", job.Action,
		"test_mode", testMode,
		"fire_at", fireAt.UTC().Format(time.RFC3339))

	return Receipt{JobName: job.Name, FireAt: fireAt}, nil
}

// disambiguateLocked returns a display name unique within the pending set.
// Two identical requests coexist; the second gets a " #2" suffix so that
// cancel-by-name stays unambiguous.
func (s *Scheduler) disambiguateLocked(name string) string {
	if _, taken := s.byName[name]; !taken {
		return name
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s #%d", name, n)
		if _, taken := s.byName[candidate]; !taken {
			return candidate
		}
	}
}

// fire executes a job whose timer has elapsed. A single attempt: remote
// failures are recorded in the ledger, never retried, and never escape.
func (s *Scheduler) fire(jobID string) {
	s.mu.Lock()
	job, ok := s.pending[jobID]
	if !ok || job.State != StatePending {
		// Cancelled between timer expiry and lock acquisition
		s.mu.Unlock()
		return
	}
	job.State = StateFiring
	s.notifyLocked(Event{
		Type:      EventFiring,
		JobName:   job.Name,
		Timestamp: s.now(),
	})
	s.mu.Unlock()

	s.logger.Infow("Firing RSVP job",
		"job_name", job.Name,
		"event_id", job.EventID,
		"user", job.UserName,
		"extras", job.Extras,
		"response", job.Action.Response())

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FireTimeout)
	defer cancel()

	// Blocking I/O happens outside the registry lock
	outcome, err := s.submitter.SubmitRSVP(ctx, job.EventID, job.Extras, job.Action.Response(), job.authToken)

	rec := ExecutionRecord{
		JobName:      job.Name,
		EventID:      job.EventID,
		UserName:     job.UserName,
		Extras:       job.Extras,
		RSVPResponse: job.Action.Response(),
		ExecutedAt:   s.now(),
	}

	terminal := StateSucceeded
	switch {
	case err != nil:
		rec.Status = StatusError
		code := "network_error"
		if errors.IsRemoteAPIError(err) {
			code = "api_error"
		}
		rec.Result = Result{Code: code, Message: err.Error()}
		terminal = StateFailed
		s.logger.Errorw("RSVP execution failed",
			"job_name", job.Name,
			"event_id", job.EventID,
			"code", code,
			"error", err)
	case outcome.Success:
		rec.Status = StatusSuccess
		rec.Result = Result{Message: "RSVP completed successfully"}
		s.logger.Infow("RSVP execution succeeded",
			"job_name", job.Name,
			"event_id", job.EventID)
	default:
		rec.Status = StatusError
		if outcome.Err != nil {
			rec.Result = *outcome.Err
		} else {
			rec.Result = Result{Code: "unexpected_response", Message: "unexpected response structure from Meetup API"}
		}
		terminal = StateFailed
		s.logger.Warnw("RSVP rejected by upstream",
			"job_name", job.Name,
			"event_id", job.EventID,
			"code", rec.Result.Code,
			"message", rec.Result.Message)
	}

	s.mu.Lock()
	job.State = terminal
	s.ledger.Append(rec)
	delete(s.pending, job.ID)
	delete(s.byName, job.Name)
	s.notifyLocked(Event{
		Type:      EventExecuted,
		JobName:   job.Name,
		Record:    &rec,
		Timestamp: rec.ExecutedAt,
	})
	s.mu.Unlock()
}

// Cancel stops a pending job by display name. Returns false when no
// pending job carries the name — including when the job is already
// firing: cancellation is best effort before fire, and firing wins.
// Cancellation produces no ledger entry.
func (s *Scheduler) Cancel(jobName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobID, ok := s.byName[jobName]
	if !ok {
		return false
	}
	job := s.pending[jobID]
	if job == nil || job.State != StatePending {
		return false
	}
	if !job.timer.Stop() {
		// Timer already fired; the firing goroutine owns the job now
		return false
	}

	job.State = StateCancelled
	delete(s.pending, jobID)
	delete(s.byName, jobName)
	s.notifyLocked(Event{
		Type:      EventCancelled,
		JobName:   jobName,
		Timestamp: s.now(),
	})

	s.logger.Infow("RSVP job cancelled", "job_name", jobName)
	return true
}

// ListPending enumerates pending jobs ordered by fire time. Display
// fields come from the structured job record, not from re-parsing the
// name string.
func (s *Scheduler) ListPending() []PendingJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]PendingJob, 0, len(s.pending))
	for _, job := range s.pending {
		if job.State != StatePending {
			continue
		}
		jobs = append(jobs, PendingJob{
			JobName:    job.Name,
			FireAt:     job.FireAt,
			UserName:   job.UserName,
			EventDate:  FormatEventDate(job.EventTime),
			Extras:     job.Extras,
			IsTestMode: job.TestMode,
		})
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].FireAt.Equal(jobs[j].FireAt) {
			return jobs[i].JobName < jobs[j].JobName
		}
		return jobs[i].FireAt.Before(jobs[j].FireAt)
	})
	return jobs
}

// DefaultExecutedLimit caps ListExecuted when no limit is given
const DefaultExecutedLimit = 50

// ListExecuted returns executed-job records, most recent first
func (s *Scheduler) ListExecuted(limit int) []ExecutionRecord {
	if limit <= 0 {
		limit = DefaultExecutedLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Recent(limit)
}

// JobCount returns the number of pending jobs
func (s *Scheduler) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// PendingSummary summarizes the pending set
type PendingSummary struct {
	Count int          `json:"count"`
	Jobs  []PendingJob `json:"jobs"`
}

// ExecutedSummary summarizes the ledger
type ExecutedSummary struct {
	Count  int               `json:"count"`
	Recent []ExecutionRecord `json:"recent"`
}

// Summary combines pending and executed state for the status endpoint
type Summary struct {
	Pending  PendingSummary  `json:"pending"`
	Executed ExecutedSummary `json:"executed"`
}

// StatusSummary reports pending jobs and recent executions
func (s *Scheduler) StatusSummary() Summary {
	pending := s.ListPending()

	s.mu.Lock()
	total := s.ledger.Len()
	recent := s.ledger.Recent(10)
	s.mu.Unlock()

	return Summary{
		Pending:  PendingSummary{Count: len(pending), Jobs: pending},
		Executed: ExecutedSummary{Count: total, Recent: recent},
	}
}

// Subscribe returns a channel receiving job lifecycle events.
// The channel is buffered; slow subscribers miss events rather than
// stalling the scheduler.
func (s *Scheduler) Subscribe() chan Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Event, SubscriberChannelBufferSize)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber channel. The channel is NOT closed by
// this method - callers should close it themselves after unsubscribing.
func (s *Scheduler) Unsubscribe(ch chan Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subscribers {
		if sub == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			return
		}
	}
}

// notifyLocked sends an event to all subscribers without blocking.
// REQUIRES: s.mu must be held by the caller.
func (s *Scheduler) notifyLocked(ev Event) {
	for _, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// Channel full, skip
		}
	}
}

// Stop cancels every pending timer. In-flight firings complete; pending
// jobs are dropped without ledger entries. A restarted process starts
// with an empty registry.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for id, job := range s.pending {
		if job.State == StatePending && job.timer != nil {
			job.timer.Stop()
			job.State = StateCancelled
			delete(s.pending, id)
			delete(s.byName, job.Name)
		}
	}
	s.mu.Unlock()
}
