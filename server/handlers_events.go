package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/courtside/rsvpd/errors"
	"github.com/courtside/rsvpd/meetup"
)

// UpcomingEventsResponse lists the group's next scheduled events
type UpcomingEventsResponse struct {
	Events []meetup.EventSummary `json:"events"`
	Count  int                   `json:"count"`
}

// HandleUpcomingEvents fetches the next N events for the configured group.
// GET /api/events/upcoming/{count}?userName=...
func (s *RSVPServer) HandleUpcomingEvents(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/api/events/upcoming/")
	count, err := strconv.Atoi(raw)
	if err != nil || count < 1 || count > s.cfg.Scheduling.MaxEvents {
		writeFieldError(w, http.StatusBadRequest, "count", "Event count must be between 1 and "+strconv.Itoa(s.cfg.Scheduling.MaxEvents))
		return
	}

	cookie, ok := s.lookupCookie(w, r)
	if !ok {
		return
	}

	events, err := s.meetup.FetchUpcomingEvents(r.Context(), count, cookie)
	if err != nil {
		s.logger.Errorw("Failed to fetch upcoming events", "error", err, "count", count)
		writeError(w, http.StatusBadGateway, "Failed to fetch upcoming events")
		return
	}

	writeJSON(w, http.StatusOK, UpcomingEventsResponse{
		Events: events,
		Count:  len(events),
	})
}

// HandleEvent dispatches event detail lookups:
//
//	GET /api/events/{id}                 event details
//	GET /api/events/{id}/waitlist        waitlist attendees
//	GET /api/events/{id}/not-attending   declined attendees
//	GET /api/events/{id}/attendees       attendees filtered by ?status=
func (s *RSVPServer) HandleEvent(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/events/")
	parts := strings.SplitN(strings.Trim(rest, "/"), "/", 2)
	eventID := parts[0]
	if eventID == "" {
		writeFieldError(w, http.StatusBadRequest, "eventId", "Event ID is required")
		return
	}

	cookie, ok := s.lookupCookie(w, r)
	if !ok {
		return
	}

	var (
		payload json.RawMessage
		err     error
	)
	sub := ""
	if len(parts) == 2 {
		sub = parts[1]
	}
	switch sub {
	case "":
		payload, err = s.meetup.EventDetails(r.Context(), eventID, cookie)
	case "waitlist":
		payload, err = s.meetup.WaitlistAttendees(r.Context(), eventID, cookie)
	case "not-attending":
		payload, err = s.meetup.NotAttending(r.Context(), eventID, cookie)
	case "attendees":
		q := r.URL.Query()
		statuses := q["status"]
		if len(statuses) == 0 {
			statuses = []string{"YES", "ATTENDED"}
		}
		sortField := q.Get("sortField")
		if sortField == "" {
			sortField = "LOCAL_TIME"
		}
		sortOrder := q.Get("sortOrder")
		if sortOrder == "" {
			sortOrder = "ASC"
		}
		first := parseIntQueryParam(r, "first", 20, 1, 100)
		payload, err = s.meetup.AttendeesByStatus(r.Context(), eventID, statuses, sortField, sortOrder, first, cookie)
	default:
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		if errors.IsRemoteAPIError(err) {
			s.logger.Errorw("Remote API rejected event lookup", "error", err, "event_id", eventID)
			writeError(w, http.StatusBadGateway, "Remote API error")
			return
		}
		s.logger.Errorw("Failed to fetch event data", "error", err, "event_id", eventID)
		writeError(w, http.StatusInternalServerError, "Failed to fetch event data")
		return
	}

	writeJSON(w, http.StatusOK, payload)
}

// lookupCookie resolves the userName query parameter to that user's
// session cookie. Writes the error response itself on failure.
func (s *RSVPServer) lookupCookie(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := r.URL.Query().Get("userName")
	if name == "" {
		writeFieldError(w, http.StatusBadRequest, "userName", "User name is required")
		return "", false
	}
	cookie, known := s.users.Lookup(name)
	if !known {
		writeFieldError(w, http.StatusBadRequest, "userName", "Unknown user")
		return "", false
	}
	return cookie, true
}

// HandleUsers lists the configured user names.
// GET /api/users
func (s *RSVPServer) HandleUsers(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	names := s.users.Names()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users": names,
		"count": len(names),
	})
}

// HandleServerTime reports the server clock and active flag state, which
// together determine when a newly scheduled job would fire.
// GET /api/time
func (s *RSVPServer) HandleServerTime(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"serverTime":      time.Now().UTC().Format(time.RFC3339),
		"testMode":        s.modes.TestMode(),
		"timeOffsetHours": s.modes.TimeOffsetHours(),
	})
}

// HandleHealth is the liveness probe.
// GET /health
func (s *RSVPServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"pendingJobs": s.scheduler.JobCount(),
		"clients":     s.ClientCount(),
	})
}
