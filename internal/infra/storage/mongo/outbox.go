package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	appoutbox "bchat/internal/app/outbox"
	infraoutbox "bchat/internal/infra/outbox"
)

type eventDocument struct {
	ID          string            `bson:"_id"`
	Name        string            `bson:"name"`
	Aggregate   string            `bson:"aggregate"`
	Payload     []byte            `bson:"payload"`
	Headers     map[string]string `bson:"headers,omitempty"`
	OccurredAt  int64             `bson:"occurred_at"`
	Status      string            `bson:"status"`
	Attempts    int               `bson:"attempts"`
	NextAttempt int64             `bson:"next_attempt"`
	ClaimedBy   string            `bson:"claimed_by,omitempty"`
	LastError   string            `bson:"last_error,omitempty"`
}

// OutboxStore stages event records in the same transaction as the state
// change and serves them to the publishing worker.
type OutboxStore struct {
	db *mongo.Database
}

func NewOutboxStore(db *mongo.Database) *OutboxStore {
	return &OutboxStore{db: db}
}

func (s *OutboxStore) collection() *mongo.Collection {
	return s.db.Collection(collectionOutbox)
}

func (s *OutboxStore) Add(ctx context.Context, record appoutbox.EventRecord) error {
	doc := eventDocument{
		ID:         record.ID,
		Name:       record.Name,
		Aggregate:  record.Aggregate,
		Payload:    record.Payload,
		Headers:    record.Headers,
		OccurredAt: record.OccurredAt.UnixMilli(),
		Status:     infraoutbox.StatusPending,
	}
	_, err := s.collection().InsertOne(ctx, doc)
	return wrapErr(collectionOutbox+"/"+record.ID, "create", err)
}

func (s *OutboxStore) Claim(ctx context.Context, workerID string) (*infraoutbox.EventDocument, error) {
	filter := bson.M{
		"status":       infraoutbox.StatusPending,
		"next_attempt": bson.M{"$lte": time.Now().UnixMilli()},
	}
	update := bson.M{
		"$set": bson.M{"claimed_by": workerID},
		"$inc": bson.M{"attempts": 1},
	}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "occurred_at", Value: 1}}).
		SetReturnDocument(options.After)
	var doc eventDocument
	err := s.collection().FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr(collectionOutbox, "update", err)
	}
	return &infraoutbox.EventDocument{
		ID:          doc.ID,
		Name:        doc.Name,
		Aggregate:   doc.Aggregate,
		Payload:     doc.Payload,
		Headers:     doc.Headers,
		OccurredAt:  time.UnixMilli(doc.OccurredAt),
		Status:      doc.Status,
		Attempts:    doc.Attempts,
		NextAttempt: time.UnixMilli(doc.NextAttempt),
		ClaimedBy:   doc.ClaimedBy,
		LastError:   doc.LastError,
	}, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	update := bson.M{"$set": bson.M{"status": infraoutbox.StatusSent, "last_error": ""}}
	_, err := s.collection().UpdateOne(ctx, bson.M{"_id": id}, update)
	return wrapErr(collectionOutbox+"/"+id, "update", err)
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	update := bson.M{"$set": bson.M{
		"next_attempt": next.UnixMilli(),
		"last_error":   errMsg,
		"claimed_by":   "",
	}}
	_, err := s.collection().UpdateOne(ctx, bson.M{"_id": id}, update)
	return wrapErr(collectionOutbox+"/"+id, "update", err)
}
