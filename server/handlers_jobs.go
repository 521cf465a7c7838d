package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/courtside/rsvpd/schedule"
)

// ScheduleRSVPRequest is the body of POST /api/rsvp
type ScheduleRSVPRequest struct {
	EventID      string `json:"eventId"`
	EventDateObj string `json:"eventDateObj"` // RFC3339 event start time
	UserName     string `json:"userName"`
	Extras       *int   `json:"extras"`
	Action       string `json:"action"` // "add" (default) or "remove"
}

// ScheduleRSVPResponse confirms a scheduled job
type ScheduleRSVPResponse struct {
	Message      string    `json:"message"`
	JobName      string    `json:"jobName"`
	ScheduledFor time.Time `json:"scheduledFor"`
}

// HandleScheduleRSVP schedules a timed RSVP job.
// POST /api/rsvp
func (s *RSVPServer) HandleScheduleRSVP(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req ScheduleRSVPRequest
	if readJSON(w, r, &req) != nil {
		return
	}

	if req.EventID == "" {
		writeFieldError(w, http.StatusBadRequest, "eventId", "Event ID is required")
		return
	}
	if req.EventDateObj == "" {
		writeFieldError(w, http.StatusBadRequest, "eventDateObj", "Event date is required")
		return
	}
	eventTime, err := time.Parse(time.RFC3339, req.EventDateObj)
	if err != nil {
		writeFieldError(w, http.StatusBadRequest, "eventDateObj", "Event date must be a valid RFC3339 timestamp")
		return
	}
	if req.UserName == "" {
		writeFieldError(w, http.StatusBadRequest, "userName", "User name is required")
		return
	}
	cookie, known := s.users.Lookup(req.UserName)
	if !known {
		writeFieldError(w, http.StatusBadRequest, "userName", "Unknown user")
		return
	}
	if req.Extras == nil {
		writeFieldError(w, http.StatusBadRequest, "extras", "Extras count is required")
		return
	}
	if *req.Extras < 0 || *req.Extras > s.cfg.Scheduling.MaxExtras {
		writeFieldError(w, http.StatusBadRequest, "extras", "Invalid extras count")
		return
	}
	action := req.Action
	if action == "" {
		action = string(schedule.ActionAdd)
	}
	if !schedule.IsValidAction(action) {
		writeFieldError(w, http.StatusBadRequest, "action", "Action must be 'add' or 'remove'")
		return
	}

	receipt, err := s.scheduler.Schedule(schedule.Request{
		EventID:   req.EventID,
		EventTime: eventTime,
		UserName:  req.UserName,
		Extras:    *req.Extras,
		Action:    schedule.Action(action),
		AuthToken: cookie,
	})
	if err != nil {
		s.logger.Errorw("Failed to schedule RSVP", "error", err, "event_id", req.EventID)
		writeError(w, http.StatusInternalServerError, "Failed to schedule RSVP")
		return
	}

	writeJSON(w, http.StatusOK, ScheduleRSVPResponse{
		Message:      "RSVP scheduled successfully",
		JobName:      receipt.JobName,
		ScheduledFor: receipt.FireAt,
	})
}

// PendingJobsResponse lists jobs waiting to fire
type PendingJobsResponse struct {
	Message string               `json:"message"`
	Jobs    []schedule.PendingJob `json:"jobs"`
	Count   int                  `json:"count"`
}

// HandlePendingJobs lists pending jobs.
// GET /api/jobs/pending
func (s *RSVPServer) HandlePendingJobs(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	jobs := s.scheduler.ListPending()
	writeJSON(w, http.StatusOK, PendingJobsResponse{
		Message: "Listing pending jobs.",
		Jobs:    jobs,
		Count:   len(jobs),
	})
}

// ExecutedJobsResponse lists executed-job history
type ExecutedJobsResponse struct {
	Jobs  []schedule.ExecutionRecord `json:"jobs"`
	Count int                        `json:"count"`
}

// HandleExecutedJobs returns executed jobs, most recent first.
// GET /api/jobs/executed?limit=50
func (s *RSVPServer) HandleExecutedJobs(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	limit := parseIntQueryParam(r, "limit", schedule.DefaultExecutedLimit, 1, schedule.DefaultLedgerSize)
	jobs := s.scheduler.ListExecuted(limit)
	writeJSON(w, http.StatusOK, ExecutedJobsResponse{
		Jobs:  jobs,
		Count: len(jobs),
	})
}

// JobSummaryResponse combines the scheduler summary with process metrics
type JobSummaryResponse struct {
	schedule.Summary
	System SystemMetrics `json:"system"`
}

// HandleJobSummary reports pending jobs, recent executions, and process
// metrics.
// GET /api/jobs/summary
func (s *RSVPServer) HandleJobSummary(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	writeJSON(w, http.StatusOK, JobSummaryResponse{
		Summary: s.scheduler.StatusSummary(),
		System:  getSystemMetrics(),
	})
}

// CancelJobRequest is the body of POST /api/jobs/cancel
type CancelJobRequest struct {
	JobName string `json:"jobName"`
}

// HandleCancelJob cancels a pending job by name.
// POST /api/jobs/cancel
func (s *RSVPServer) HandleCancelJob(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req CancelJobRequest
	if readJSON(w, r, &req) != nil {
		return
	}
	if req.JobName == "" {
		writeFieldError(w, http.StatusBadRequest, "jobName", "Job name is required")
		return
	}

	if !s.scheduler.Cancel(req.JobName) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error":   "Job not found",
			"jobName": req.JobName,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Job %s cancelled successfully", req.JobName),
		"jobName": req.JobName,
	})
}
