// Package meetup implements the outbound GraphQL client for the Meetup
// platform: upcoming-event queries and RSVP mutations.
package meetup

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/courtside/rsvpd/config"
	"github.com/courtside/rsvpd/errors"
	"github.com/courtside/rsvpd/internal/httpclient"
	"github.com/courtside/rsvpd/schedule"
)

// Fixed header set sent with every request. The per-user session cookie
// is added per call.
var baseHeaders = map[string]string{
	"accept":                    "*/*",
	"accept-language":           "en-GB,en;q=0.9",
	"apollographql-client-name": "nextjs-web",
	"content-type":              "application/json",
	"sec-fetch-dest":            "empty",
	"sec-fetch-mode":            "cors",
	"sec-fetch-site":            "same-origin",
	"sec-gpc":                   "1",
	"x-meetup-view-id":          "dc2379c6-fa32-4897-86f6-32bb6c6be47f",
}

const upcomingEventsQuery = `query getUpcomingEvents($urlname: String!, $first: Int, $after: String) {
  groupByUrlname(urlname: $urlname) {
    id
    upcomingEvents(input: {first: $first, after: $after}) {
      pageInfo { hasNextPage endCursor __typename }
      edges {
        node {
          id
          title
          dateTime
          timezone
          eventUrl
          going
          eventType
          rsvpState
          __typename
        }
        __typename
      }
      __typename
    }
    __typename
  }
}`

const rsvpMutation = `mutation rsvpToEvent($input: RsvpInput!) {
  rsvp(input: $input) {
    ticket { id status __typename }
    errors { code field message __typename }
    __typename
  }
}`

// Persisted query hash for getEventByIdForAttendees on the gql2 endpoint
const attendeesQueryHash = "477fb61d34976b3de86e8bd096e845d4a85d8fc0be4ff74c7f5188dfc91d3101"

// Client talks to the Meetup GraphQL API. One outbound network call per
// method invocation, no retries.
type Client struct {
	gqlURL  string
	gql2URL string
	urlname string
	http    *httpclient.Client
	limiter *rate.Limiter
	logger  *zap.SugaredLogger
}

// NewClient creates a Meetup client from configuration
func NewClient(cfg config.MeetupConfig, log *zap.SugaredLogger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	perMinute := cfg.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 30
	}
	return &Client{
		gqlURL:  cfg.GraphQLURL,
		gql2URL: cfg.Gql2URL,
		urlname: cfg.GroupURLName,
		http:    httpclient.New(timeout),
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
		logger:  log,
	}
}

// post sends a GraphQL request with the fixed header set plus the user's
// session cookie and decodes the response envelope.
func (c *Client) post(ctx context.Context, url string, body graphqlRequest, cookie string) (*envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limiter wait")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	for k, v := range baseHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("cookie", cookie)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "request to %s failed", url)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, errors.Wrapf(errors.ErrRemoteAPI, "failed to decode response: %v", err)
	}
	return &env, nil
}

// FetchUpcomingEvents returns up to count upcoming events for the
// configured group
func (c *Client) FetchUpcomingEvents(ctx context.Context, count int, cookie string) ([]EventSummary, error) {
	env, err := c.post(ctx, c.gqlURL, graphqlRequest{
		OperationName: "getUpcomingEvents",
		Variables: map[string]interface{}{
			"first":   count,
			"urlname": c.urlname,
		},
		Query: upcomingEventsQuery,
	}, cookie)
	if err != nil {
		return nil, err
	}
	if len(env.Errors) > 0 {
		return nil, errors.Wrapf(errors.ErrRemoteAPI, "meetup API error: %s", env.Errors[0].Message)
	}

	var data upcomingEventsData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, errors.Wrapf(errors.ErrRemoteAPI, "failed to decode events payload: %v", err)
	}
	if data.GroupByURLName == nil || data.GroupByURLName.UpcomingEvents == nil {
		return nil, errors.Wrap(errors.ErrRemoteAPI, "invalid response structure from Meetup API")
	}

	edges := data.GroupByURLName.UpcomingEvents.Edges
	events := make([]EventSummary, 0, len(edges))
	for _, edge := range edges {
		eventTime, err := time.Parse(time.RFC3339, edge.Node.DateTime)
		if err != nil {
			c.logger.Warnw("Skipping event with unparseable dateTime",
				"event_id", edge.Node.ID,
				"date_time", edge.Node.DateTime)
			continue
		}
		events = append(events, EventSummary{
			EventDateHuman: schedule.FormatHuman(eventTime),
			EventDateObj:   eventTime,
			EventID:        edge.Node.ID,
			RSVPState:      edge.Node.RSVPState,
			Going:          edge.Node.Going,
		})
	}
	return events, nil
}

// SubmitRSVP sends the rsvpToEvent mutation and interprets the envelope:
//
//   - top-level errors present: remote API error (transport-level failure)
//   - data.rsvp.errors is JSON null: accepted
//   - data.rsvp.errors is a non-empty list: rejected, first entry returned
//   - any other shape: rejected with code "unexpected_response"
func (c *Client) SubmitRSVP(ctx context.Context, eventID string, extras int, response, cookie string) (*RSVPResult, error) {
	env, err := c.post(ctx, c.gqlURL, graphqlRequest{
		OperationName: "rsvpToEvent",
		Variables: map[string]interface{}{
			"input": map[string]interface{}{
				"eventId":            eventID,
				"guestsCount":        extras,
				"response":           response,
				"proEmailShareOptin": false,
				"proSurveyAnswers":   []interface{}{},
			},
		},
		Query: rsvpMutation,
	}, cookie)
	if err != nil {
		return nil, err
	}
	if len(env.Errors) > 0 {
		return nil, errors.Wrapf(errors.ErrRemoteAPI, "meetup API error: %s", env.Errors[0].Message)
	}

	var data rsvpData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.RSVP == nil {
		return &RSVPResult{
			Success:    false,
			ErrCode:    CodeUnexpectedResponse,
			ErrMessage: "unexpected response structure from Meetup API",
		}, nil
	}

	raw := data.RSVP.Errors
	if string(raw) == "null" {
		return &RSVPResult{Success: true}, nil
	}

	var rsvpErrs []rsvpError
	if err := json.Unmarshal(raw, &rsvpErrs); err != nil || len(rsvpErrs) == 0 {
		return &RSVPResult{
			Success:    false,
			ErrCode:    CodeUnexpectedResponse,
			ErrMessage: "unexpected response structure from Meetup API",
		}, nil
	}

	first := rsvpErrs[0]
	code := first.Code
	if code == "" {
		code = "unknown_error"
	}
	msg := first.Message
	if msg == "" {
		msg = "unknown error occurred"
	}
	return &RSVPResult{
		Success:    false,
		ErrCode:    code,
		ErrField:   first.Field,
		ErrMessage: msg,
	}, nil
}

// EventDetails fetches event details (attendees, RSVP stats) via the
// persisted getEventByIdForAttendees query. The payload is passed through
// to callers unmodified.
func (c *Client) EventDetails(ctx context.Context, eventID, cookie string) (json.RawMessage, error) {
	return c.attendeesQuery(ctx, eventID, cookie, map[string]interface{}{
		"eventId": eventID,
		"first":   20,
		"filter": map[string]interface{}{
			"rsvpStatus": []string{"YES", "ATTENDED"},
		},
		"sort": map[string]interface{}{
			"sortField":  "SHARED_GROUPS",
			"sortOrder":  "DESC",
			"hostsFirst": true,
		},
	})
}

// AttendeesByStatus fetches attendees filtered by RSVP status
func (c *Client) AttendeesByStatus(ctx context.Context, eventID string, statuses []string, sortField, sortOrder string, first int, cookie string) (json.RawMessage, error) {
	return c.attendeesQuery(ctx, eventID, cookie, map[string]interface{}{
		"eventId": eventID,
		"filter": map[string]interface{}{
			"rsvpStatus": statuses,
		},
		"sort": map[string]interface{}{
			"sortField": sortField,
			"sortOrder": sortOrder,
		},
		"first": first,
	})
}

// WaitlistAttendees fetches the event waitlist
func (c *Client) WaitlistAttendees(ctx context.Context, eventID, cookie string) (json.RawMessage, error) {
	return c.AttendeesByStatus(ctx, eventID, []string{"WAITLIST"}, "LOCAL_TIME", "ASC", 10, cookie)
}

// NotAttending fetches attendees who declined or missed the event
func (c *Client) NotAttending(ctx context.Context, eventID, cookie string) (json.RawMessage, error) {
	return c.AttendeesByStatus(ctx, eventID, []string{"EXCUSED_ABSENCE", "NO_SHOW", "NO"}, "LOCAL_TIME", "DESC", 10, cookie)
}

func (c *Client) attendeesQuery(ctx context.Context, eventID, cookie string, variables map[string]interface{}) (json.RawMessage, error) {
	env, err := c.post(ctx, c.gql2URL, graphqlRequest{
		OperationName: "getEventByIdForAttendees",
		Variables:     variables,
		Extensions: &extensions{
			PersistedQuery: persistedQuery{Version: 1, Sha256Hash: attendeesQueryHash},
		},
	}, cookie)
	if err != nil {
		return nil, err
	}
	if len(env.Errors) > 0 {
		return nil, errors.Wrapf(errors.ErrRemoteAPI, "meetup API error: %s", env.Errors[0].Message)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, errors.Wrap(errors.ErrRemoteAPI, "invalid response structure from Meetup API")
	}
	return env.Data, nil
}
