package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/courtside/rsvpd/config"
	"github.com/courtside/rsvpd/flags"
	"github.com/courtside/rsvpd/meetup"
	"github.com/courtside/rsvpd/schedule"
	"github.com/courtside/rsvpd/users"
)

// recordingSubmitter is a Submitter that never gets to fire in most
// handler tests; jobs are scheduled far in the future
type recordingSubmitter struct {
	mu    sync.Mutex
	calls int
}

func (r *recordingSubmitter) SubmitRSVP(ctx context.Context, eventID string, extras int, response, authToken string) (schedule.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return schedule.Outcome{Success: true}, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Port = config.DefaultServerPort
	cfg.Server.AllowedOrigins = []string{"http://localhost"}
	cfg.Meetup.GroupURLName = "pick-up-basketball-amsterdam"
	cfg.Meetup.TimeoutSeconds = 5
	cfg.Meetup.RequestsPerMinute = 600
	cfg.Scheduling.TestDelayMillis = 5000
	cfg.Scheduling.RemoveDelayMillis = 2500
	cfg.Scheduling.AdvanceDays = 7
	cfg.Scheduling.MaxExtras = 10
	cfg.Scheduling.MaxEvents = 50
	cfg.Scheduling.LedgerSize = 100
	cfg.Users = map[string]config.UserConfig{
		"alice": {Cookie: "session=alice"},
		"bob":   {Cookie: "session=bob"},
	}
	return cfg
}

// newTestServer wires a server against an optional upstream Meetup stub
func newTestServer(t *testing.T, upstream http.HandlerFunc) (*RSVPServer, *schedule.Scheduler) {
	t.Helper()

	cfg := testConfig()
	log := zap.NewNop().Sugar()

	var gqlURL string
	if upstream != nil {
		srv := httptest.NewServer(upstream)
		t.Cleanup(srv.Close)
		gqlURL = srv.URL
	} else {
		gqlURL = "http://127.0.0.1:0"
	}
	cfg.Meetup.GraphQLURL = gqlURL
	cfg.Meetup.Gql2URL = gqlURL

	client := meetup.NewClient(cfg.Meetup, log)
	modes := flags.NewController(log)
	scheduler := schedule.NewScheduler(&recordingSubmitter{}, modes, schedule.DefaultConfig(), log)
	t.Cleanup(scheduler.Stop)

	srv := New(cfg, scheduler, modes, client, users.NewStore(cfg.Users), log)
	return srv, scheduler
}

func postJSON(t *testing.T, handler http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func get(handler http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func validRSVPBody() map[string]interface{} {
	return map[string]interface{}{
		"eventId":      "evt-123",
		"eventDateObj": "2030-07-08T18:00:00Z",
		"userName":     "alice",
		"extras":       2,
	}
}

func TestScheduleRSVP(t *testing.T) {
	srv, scheduler := newTestServer(t, nil)

	w := postJSON(t, srv.Handler(), "/api/rsvp", validRSVPBody())
	require.Equal(t, http.StatusOK, w.Code)

	var resp ScheduleRSVPResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "RSVP scheduled successfully", resp.Message)
	assert.Equal(t, "alice Mon 8 Jul Extras: 2", resp.JobName)
	assert.Equal(t, time.Date(2030, 7, 1, 18, 0, 0, 0, time.UTC), resp.ScheduledFor.UTC())

	assert.Equal(t, 1, scheduler.JobCount())
}

func TestScheduleRSVPValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	tests := []struct {
		name   string
		mutate func(map[string]interface{})
		field  string
	}{
		{"missing event id", func(b map[string]interface{}) { delete(b, "eventId") }, "eventId"},
		{"missing event date", func(b map[string]interface{}) { delete(b, "eventDateObj") }, "eventDateObj"},
		{"malformed event date", func(b map[string]interface{}) { b["eventDateObj"] = "tomorrow" }, "eventDateObj"},
		{"missing user", func(b map[string]interface{}) { delete(b, "userName") }, "userName"},
		{"unknown user", func(b map[string]interface{}) { b["userName"] = "mallory" }, "userName"},
		{"missing extras", func(b map[string]interface{}) { delete(b, "extras") }, "extras"},
		{"negative extras", func(b map[string]interface{}) { b["extras"] = -1 }, "extras"},
		{"too many extras", func(b map[string]interface{}) { b["extras"] = 11 }, "extras"},
		{"bad action", func(b map[string]interface{}) { b["action"] = "maybe" }, "action"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := validRSVPBody()
			tt.mutate(body)

			w := postJSON(t, srv.Handler(), "/api/rsvp", body)
			require.Equal(t, http.StatusBadRequest, w.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.field, resp["field"])
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestScheduleRSVPZeroExtras(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	body := validRSVPBody()
	body["extras"] = 0

	w := postJSON(t, srv.Handler(), "/api/rsvp", body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ScheduleRSVPResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alice Mon 8 Jul Extras: 0", resp.JobName)
}

func TestScheduleRSVPMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := get(srv.Handler(), "/api/rsvp")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestPendingJobs(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for i := 0; i < 2; i++ {
		body := validRSVPBody()
		body["userName"] = []string{"alice", "bob"}[i]
		w := postJSON(t, srv.Handler(), "/api/rsvp", body)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := get(srv.Handler(), "/api/jobs/pending")
	require.Equal(t, http.StatusOK, w.Code)

	var resp PendingJobsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Jobs, 2)
}

func TestExecutedJobsEmpty(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := get(srv.Handler(), "/api/jobs/executed")
	require.Equal(t, http.StatusOK, w.Code)

	var resp ExecutedJobsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Count)
}

func TestJobSummary(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := postJSON(t, srv.Handler(), "/api/rsvp", validRSVPBody())
	require.Equal(t, http.StatusOK, w.Code)

	resp := get(srv.Handler(), "/api/jobs/summary")
	require.Equal(t, http.StatusOK, resp.Code)

	var summary struct {
		Pending struct {
			Count int `json:"count"`
		} `json:"pending"`
		Executed struct {
			Count int `json:"count"`
		} `json:"executed"`
		System struct {
			Goroutines int `json:"goroutines"`
		} `json:"system"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Pending.Count)
	assert.Equal(t, 0, summary.Executed.Count)
	assert.Greater(t, summary.System.Goroutines, 0)
}

func TestCancelJob(t *testing.T) {
	srv, scheduler := newTestServer(t, nil)

	w := postJSON(t, srv.Handler(), "/api/rsvp", validRSVPBody())
	require.Equal(t, http.StatusOK, w.Code)

	var scheduled ScheduleRSVPResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &scheduled))

	w = postJSON(t, srv.Handler(), "/api/jobs/cancel", map[string]string{"jobName": scheduled.JobName})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, fmt.Sprintf("Job %s cancelled successfully", scheduled.JobName), resp["message"])
	assert.Equal(t, scheduled.JobName, resp["jobName"])
	assert.Equal(t, 0, scheduler.JobCount())
}

func TestCancelJobNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := postJSON(t, srv.Handler(), "/api/jobs/cancel", map[string]string{"jobName": "nobody Mon 8 Jul Extras: 0"})
	require.Equal(t, http.StatusNotFound, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Job not found", resp["error"])
	assert.Equal(t, "nobody Mon 8 Jul Extras: 0", resp["jobName"])
}

func TestUpcomingEvents(t *testing.T) {
	upstream := func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"data":{"groupByUrlname":{"id":"g1","upcomingEvents":{"edges":[
			{"node":{"id":"evt-1","dateTime":"2030-07-08T18:00:00Z","rsvpState":"OPEN","going":12}}
		]}}}}`)
	}
	srv, _ := newTestServer(t, upstream)

	w := get(srv.Handler(), "/api/events/upcoming/1?userName=alice")
	require.Equal(t, http.StatusOK, w.Code)

	var resp UpcomingEventsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "evt-1", resp.Events[0].EventID)
	assert.Equal(t, "Mon, 8 Jul, 18:00 UTC", resp.Events[0].EventDateHuman)
}

func TestUpcomingEventsValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	// Out-of-range count
	w := get(srv.Handler(), "/api/events/upcoming/0?userName=alice")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = get(srv.Handler(), "/api/events/upcoming/51?userName=alice")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = get(srv.Handler(), "/api/events/upcoming/abc?userName=alice")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing and unknown users
	w = get(srv.Handler(), "/api/events/upcoming/3")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = get(srv.Handler(), "/api/events/upcoming/3?userName=mallory")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventDetails(t *testing.T) {
	upstream := func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"data":{"event":{"id":"evt-1","going":{"totalCount":9}}}}`)
	}
	srv, _ := newTestServer(t, upstream)

	w := get(srv.Handler(), "/api/events/evt-1?userName=alice")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"event":{"id":"evt-1","going":{"totalCount":9}}}`, w.Body.String())
}

func TestEventAttendeesByStatus(t *testing.T) {
	var captured struct {
		Variables map[string]interface{} `json:"variables"`
	}
	upstream := func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = fmt.Fprint(w, `{"data":{"event":{"id":"evt-1"}}}`)
	}
	srv, _ := newTestServer(t, upstream)

	w := get(srv.Handler(), "/api/events/evt-1/attendees?userName=alice&status=NO_SHOW&first=5")
	require.Equal(t, http.StatusOK, w.Code)

	filter, ok := captured.Variables["filter"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{"NO_SHOW"}, filter["rsvpStatus"])
	assert.Equal(t, float64(5), captured.Variables["first"])
}

func TestEventSubResourceNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := get(srv.Handler(), "/api/events/evt-1/guestbook?userName=alice")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUsers(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := get(srv.Handler(), "/api/users")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Users []string `json:"users"`
		Count int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, []string{"alice", "bob"}, resp.Users)

	// Cookies never leave the server
	assert.NotContains(t, w.Body.String(), "session=")
}

func TestServerTime(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	srv.modes.HandleUpdate(flags.Update{Flag: flags.FlagTimeOffset, Value: 2})

	w := get(srv.Handler(), "/api/time")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ServerTime      string `json:"serverTime"`
		TestMode        bool   `json:"testMode"`
		TimeOffsetHours int    `json:"timeOffsetHours"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	_, err := time.Parse(time.RFC3339, resp.ServerTime)
	assert.NoError(t, err)
	assert.False(t, resp.TestMode)
	assert.Equal(t, 2, resp.TimeOffsetHours)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := get(srv.Handler(), "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status      string `json:"status"`
		PendingJobs int    `json:"pendingJobs"`
		Clients     int    `json:"clients"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.PendingJobs)
	assert.Equal(t, 0, resp.Clients)
}

func TestCORSPreflightAndHeaders(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/rsvp", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	// The request still completes; the browser enforces the missing header
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
