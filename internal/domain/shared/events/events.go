package events

import "time"

// DomainEvent is anything the outbox can carry to the broker.
type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// BaseEvent supplies the DomainEvent plumbing for concrete event structs.
type BaseEvent struct {
	Name      string    `json:"-"`
	Aggregate string    `json:"-"`
	Time      time.Time `json:"time"`
}

func (e BaseEvent) EventName() string { return e.Name }

func (e BaseEvent) AggregateID() string { return e.Aggregate }

func (e BaseEvent) OccurredAt() time.Time { return e.Time }
