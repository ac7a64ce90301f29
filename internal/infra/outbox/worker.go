// Package outbox drains event records staged by units of work and publishes
// them to the broker. Delivery is at-least-once; consumers dedupe on event id.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrWorkerNotConfigured = errors.New("outbox: worker requires store and producer")

// Status values of a stored event document.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
)

// EventDocument is the stored form of a staged event.
type EventDocument struct {
	ID          string
	Name        string
	Aggregate   string
	Payload     []byte
	Headers     map[string]string
	OccurredAt  time.Time
	Status      string
	Attempts    int
	NextAttempt time.Time
	ClaimedBy   string
	LastError   string
}

// ClaimStore hands out pending documents one at a time.
type ClaimStore interface {
	Claim(ctx context.Context, workerID string) (*EventDocument, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

// Producer publishes a payload to a broker topic.
type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

type Worker struct {
	Store       ClaimStore
	Producer    Producer
	Interval    time.Duration
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ProcessOnce(ctx); err != nil {
				return err
			}
		}
	}
}

// ProcessOnce claims and publishes at most one pending document.
func (w *Worker) ProcessOnce(ctx context.Context) error {
	doc, err := w.Store.Claim(ctx, w.workerID())
	if err != nil || doc == nil {
		return err
	}
	payload, headers, err := w.formatPayload(doc)
	if err != nil {
		_ = w.Store.MarkFailed(ctx, doc.ID, w.nextRetry(doc.Attempts), err.Error())
		return nil
	}
	if err := w.Producer.Publish(ctx, w.topicFor(doc.Name), doc.Aggregate, payload, headers); err != nil {
		_ = w.Store.MarkFailed(ctx, doc.ID, w.nextRetry(doc.Attempts), err.Error())
		return nil
	}
	return w.Store.MarkSent(ctx, doc.ID)
}

func (w *Worker) formatPayload(doc *EventDocument) ([]byte, map[string]string, error) {
	data := map[string]any{}
	if err := json.Unmarshal(doc.Payload, &data); err != nil {
		return nil, nil, err
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              doc.ID,
		"type":            doc.Name + ".v1",
		"source":          w.source(),
		"time":            doc.OccurredAt,
		"datacontenttype": "application/json",
		"data":            data,
	}
	out, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{"content-type": "application/cloudevents+json"}
	for k, v := range doc.Headers {
		headers[k] = v
	}
	return out, headers, nil
}

func (w *Worker) topicFor(name string) string {
	topic := strings.ReplaceAll(name, ".", "-")
	if w.TopicPrefix != "" {
		topic = w.TopicPrefix + "." + topic
	}
	return topic
}

func (w *Worker) interval() time.Duration {
	if w.Interval > 0 {
		return w.Interval
	}
	return 500 * time.Millisecond
}

func (w *Worker) source() string {
	if w.Source != "" {
		return w.Source
	}
	return "bchat"
}

func (w *Worker) workerID() string {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return w.ID
}

// nextRetry picks the backoff tier for a document that has now failed
// `attempts` times. Claim counts the in-flight attempt, so the first
// failure lands on the first tier.
func (w *Worker) nextRetry(attempts int) time.Time {
	backoff := w.Backoff
	if len(backoff) == 0 {
		backoff = []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}
	}
	tier := attempts - 1
	if tier < 0 {
		tier = 0
	}
	if tier >= len(backoff) {
		tier = len(backoff) - 1
	}
	return time.Now().Add(backoff[tier])
}
