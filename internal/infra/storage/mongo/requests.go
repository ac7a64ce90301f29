package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainfriends "bchat/internal/domain/friends"
	domainuser "bchat/internal/domain/user"
)

type RequestRepository struct {
	db *mongo.Database
}

func NewRequestRepository(db *mongo.Database) *RequestRepository {
	return &RequestRepository{db: db}
}

func (r *RequestRepository) collection() *mongo.Collection {
	return r.db.Collection(collectionRequests)
}

func (r *RequestRepository) ByID(ctx context.Context, id domainfriends.RequestID) (*domainfriends.Request, error) {
	var doc requestDocument
	err := r.collection().FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domainfriends.ErrRequestNotFound
	}
	if err != nil {
		return nil, wrapErr(collectionRequests+"/"+string(id), "get", err)
	}
	return requestFromDocument(doc), nil
}

func (r *RequestRepository) Create(ctx context.Context, req *domainfriends.Request) error {
	_, err := r.collection().InsertOne(ctx, requestToDocument(req))
	if mongo.IsDuplicateKeyError(err) {
		return domainfriends.ErrAlreadyExists
	}
	return wrapErr(collectionRequests+"/"+string(req.ID), "create", err)
}

func (r *RequestRepository) SetStatus(ctx context.Context, id domainfriends.RequestID, status domainfriends.Status, at time.Time) error {
	update := bson.M{"$set": bson.M{
		"status":       string(status),
		"responded_at": at.UnixMilli(),
	}}
	res, err := r.collection().UpdateOne(ctx, bson.M{"_id": string(id)}, update)
	if err != nil {
		return wrapErr(collectionRequests+"/"+string(id), "update", err)
	}
	if res.MatchedCount == 0 {
		return domainfriends.ErrRequestNotFound
	}
	return nil
}

func (r *RequestRepository) Delete(ctx context.Context, id domainfriends.RequestID) error {
	res, err := r.collection().DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return wrapErr(collectionRequests+"/"+string(id), "delete", err)
	}
	if res.DeletedCount == 0 {
		return domainfriends.ErrRequestNotFound
	}
	return nil
}

func (r *RequestRepository) ListIncoming(ctx context.Context, to domainuser.ID) ([]*domainfriends.Request, error) {
	filter := bson.M{"to": string(to), "status": string(domainfriends.StatusPending)}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapErr(collectionRequests, "list", err)
	}
	defer cursor.Close(ctx)
	requests := make([]*domainfriends.Request, 0)
	for cursor.Next(ctx) {
		var doc requestDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		requests = append(requests, requestFromDocument(doc))
	}
	return requests, wrapErr(collectionRequests, "list", cursor.Err())
}
