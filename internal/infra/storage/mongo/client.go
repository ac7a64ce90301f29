// Package mongo implements the record store on MongoDB: keyed documents,
// session transactions behind the unit-of-work port, and change streams
// feeding the realtime layer.
package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Client struct {
	DB *mongo.Database
}

func New(uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	opts := options.Client().ApplyURI(uri).SetRetryWrites(true)
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Client{DB: m.Database(database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, nil)
}

// EnsureIndexes creates the indexes the repositories rely on.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	users := c.DB.Collection(collectionUsers)
	if _, err := users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "friend_code", Value: 1}}},
		{Keys: bson.D{{Key: "display_name", Value: 1}}},
	}); err != nil {
		return err
	}
	messages := c.DB.Collection(collectionMessages)
	if _, err := messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}},
	}); err != nil {
		return err
	}
	conversations := c.DB.Collection(collectionConversations)
	if _, err := conversations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "participants", Value: 1}},
	}); err != nil {
		return err
	}
	requests := c.DB.Collection(collectionRequests)
	if _, err := requests.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "to", Value: 1}, {Key: "status", Value: 1}},
	}); err != nil {
		return err
	}
	outbox := c.DB.Collection(collectionOutbox)
	_, err := outbox.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "next_attempt", Value: 1}},
	})
	return err
}
