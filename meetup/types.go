package meetup

import (
	"encoding/json"
	"time"
)

// EventSummary is the trimmed view of an upcoming event returned to callers
type EventSummary struct {
	EventDateHuman string    `json:"eventDateHuman"`
	EventDateObj   time.Time `json:"eventDateObj"`
	EventID        string    `json:"eventId"`
	RSVPState      string    `json:"rsvpState"`
	Going          int       `json:"going"`
}

// RSVPResult is the interpreted outcome of an rsvpToEvent mutation.
// Success means the upstream accepted the RSVP with no domain errors;
// otherwise the Err* fields carry the first upstream rejection.
type RSVPResult struct {
	Success    bool
	ErrCode    string
	ErrField   string
	ErrMessage string
}

// Error code used when the response envelope has an unrecognized shape
const CodeUnexpectedResponse = "unexpected_response"

// graphqlRequest is the wire shape of an outbound GraphQL call
type graphqlRequest struct {
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
	Query         string                 `json:"query,omitempty"`
	Extensions    *extensions            `json:"extensions,omitempty"`
}

// extensions carries a persisted-query hash for the gql2 endpoint
type extensions struct {
	PersistedQuery persistedQuery `json:"persistedQuery"`
}

type persistedQuery struct {
	Version    int    `json:"version"`
	Sha256Hash string `json:"sha256Hash"`
}

// envelope is the standard GraphQL {data, errors} response wrapper
type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []topLevelError `json:"errors"`
}

type topLevelError struct {
	Message string `json:"message"`
}

// rsvpData is the data payload of the rsvpToEvent mutation.
// Errors is kept raw: an explicit JSON null means success, a non-empty
// list means rejection, and anything else is an unexpected shape.
type rsvpData struct {
	RSVP *struct {
		Errors json.RawMessage `json:"errors"`
	} `json:"rsvp"`
}

type rsvpError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// upcomingEventsData is the nested payload of the getUpcomingEvents query
type upcomingEventsData struct {
	GroupByURLName *struct {
		UpcomingEvents *struct {
			Edges []struct {
				Node struct {
					ID        string `json:"id"`
					DateTime  string `json:"dateTime"`
					RSVPState string `json:"rsvpState"`
					Going     int    `json:"going"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"upcomingEvents"`
	} `json:"groupByUrlname"`
}
