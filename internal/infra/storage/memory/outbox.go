package memory

import (
	"context"
	"time"

	appoutbox "bchat/internal/app/outbox"
	infraoutbox "bchat/internal/infra/outbox"
)

type eventDocument = infraoutbox.EventDocument

// OutboxStore stages event records in the same unit of work as the state
// change that produced them and serves the drain worker.
type OutboxStore struct {
	store *Store
	unit  *Unit
}

func NewOutboxStore(store *Store) *OutboxStore {
	return &OutboxStore{store: store}
}

var _ appoutbox.Outbox = (*OutboxStore)(nil)
var _ infraoutbox.ClaimStore = (*OutboxStore)(nil)

func (o *OutboxStore) Add(ctx context.Context, record appoutbox.EventRecord) error {
	doc := &eventDocument{
		ID:         record.ID,
		Name:       record.Name,
		Aggregate:  record.Aggregate,
		Payload:    append([]byte(nil), record.Payload...),
		Headers:    record.Headers,
		OccurredAt: record.OccurredAt,
		Status:     infraoutbox.StatusPending,
	}
	mutation := op{
		collection: "outbox",
		path:       "outbox/" + record.ID,
		operation:  "create",
		payload:    doc,
		apply: func(st *state) error {
			st.outbox = append(st.outbox, doc)
			return nil
		},
	}
	if o.unit != nil {
		return o.unit.stage(mutation)
	}
	return o.store.run(mutation)
}

func (o *OutboxStore) Claim(ctx context.Context, workerID string) (*eventDocument, error) {
	s := o.store
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, doc := range s.st.outbox {
		if doc.Status != infraoutbox.StatusPending {
			continue
		}
		if !doc.NextAttempt.IsZero() && doc.NextAttempt.After(now) {
			continue
		}
		claimed := *doc
		claimed.ClaimedBy = workerID
		claimed.Attempts++
		*doc = claimed
		out := claimed
		return &out, nil
	}
	return nil, nil
}

func (o *OutboxStore) MarkSent(ctx context.Context, id string) error {
	return o.setStatus(id, func(doc *eventDocument) {
		doc.Status = infraoutbox.StatusSent
		doc.LastError = ""
	})
}

func (o *OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	return o.setStatus(id, func(doc *eventDocument) {
		doc.NextAttempt = next
		doc.LastError = errMsg
	})
}

func (o *OutboxStore) setStatus(id string, update func(doc *eventDocument)) error {
	s := o.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range s.st.outbox {
		if doc.ID == id {
			update(doc)
			return nil
		}
	}
	return nil
}

// Pending reports documents still awaiting publication; used by tests and
// the readiness probe.
func (o *OutboxStore) Pending() int {
	s := o.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, doc := range s.st.outbox {
		if doc.Status == infraoutbox.StatusPending {
			n++
		}
	}
	return n
}
