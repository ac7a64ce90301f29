package friends

import (
	"bchat/internal/domain/shared/events"
)

const (
	EventRequestSent     = "friends.request.sent"
	EventRequestAccepted = "friends.request.accepted"
)

type RequestSent struct {
	events.BaseEvent
	RequestID string `json:"request_id"`
	From      string `json:"from"`
	To        string `json:"to"`
}

func NewRequestSent(r *Request) RequestSent {
	return RequestSent{
		BaseEvent: events.BaseEvent{Name: EventRequestSent, Aggregate: string(r.ID), Time: r.CreatedAt},
		RequestID: string(r.ID),
		From:      string(r.From),
		To:        string(r.To),
	}
}

type RequestAccepted struct {
	events.BaseEvent
	RequestID string `json:"request_id"`
	From      string `json:"from"`
	To        string `json:"to"`
}

func NewRequestAccepted(r *Request) RequestAccepted {
	return RequestAccepted{
		BaseEvent: events.BaseEvent{Name: EventRequestAccepted, Aggregate: string(r.ID), Time: r.RespondedAt},
		RequestID: string(r.ID),
		From:      string(r.From),
		To:        string(r.To),
	}
}
