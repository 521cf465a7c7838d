package server

import (
	"context"

	"github.com/courtside/rsvpd/meetup"
	"github.com/courtside/rsvpd/schedule"
)

// rsvpSubmitter adapts meetup.Client to the scheduler's Submitter interface
type rsvpSubmitter struct {
	client *meetup.Client
}

// NewSubmitter wraps a Meetup client for use by the scheduler
func NewSubmitter(client *meetup.Client) schedule.Submitter {
	return rsvpSubmitter{client: client}
}

func (a rsvpSubmitter) SubmitRSVP(ctx context.Context, eventID string, extras int, response, authToken string) (schedule.Outcome, error) {
	res, err := a.client.SubmitRSVP(ctx, eventID, extras, response, authToken)
	if err != nil {
		return schedule.Outcome{}, err
	}
	if res.Success {
		return schedule.Outcome{Success: true}, nil
	}
	return schedule.Outcome{
		Success: false,
		Err: &schedule.Result{
			Code:    res.ErrCode,
			Field:   res.ErrField,
			Message: res.ErrMessage,
		},
	}, nil
}
