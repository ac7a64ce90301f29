package mongo

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchat "bchat/internal/domain/chat"
	domainuser "bchat/internal/domain/user"
)

type ConversationRepository struct {
	db *mongo.Database
}

func NewConversationRepository(db *mongo.Database) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) collection() *mongo.Collection {
	return r.db.Collection(collectionConversations)
}

func (r *ConversationRepository) ByID(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	var doc conversationDocument
	err := r.collection().FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domainchat.ErrConversationNotFound
	}
	if err != nil {
		return nil, wrapErr(collectionConversations+"/"+string(id), "get", err)
	}
	return conversationFromDocument(doc), nil
}

func (r *ConversationRepository) Create(ctx context.Context, c *domainchat.Conversation) error {
	_, err := r.collection().InsertOne(ctx, conversationToDocument(c))
	if mongo.IsDuplicateKeyError(err) {
		return domainchat.ErrConversationExists
	}
	return wrapErr(collectionConversations+"/"+string(c.ID), "create", err)
}

func (r *ConversationRepository) ListForUser(ctx context.Context, id domainuser.ID) ([]*domainchat.Conversation, error) {
	cursor, err := r.collection().Find(ctx, bson.M{"participants": string(id)})
	if err != nil {
		return nil, wrapErr(collectionConversations, "list", err)
	}
	defer cursor.Close(ctx)
	conversations := make([]*domainchat.Conversation, 0)
	for cursor.Next(ctx) {
		var doc conversationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		conversations = append(conversations, conversationFromDocument(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, wrapErr(collectionConversations, "list", err)
	}
	// Most recent activity first. Sorted here rather than in the query so
	// conversations without messages fall back to their creation time.
	sort.SliceStable(conversations, func(i, j int) bool {
		return activityOf(conversations[i]).After(activityOf(conversations[j]))
	})
	return conversations, nil
}

func (r *ConversationRepository) SetLastMessage(ctx context.Context, id domainchat.ConversationID, last domainchat.LastMessage) error {
	update := bson.M{"$set": bson.M{"last_message": lastMessageDocument{
		Text:      last.Text,
		SenderID:  string(last.SenderID),
		Timestamp: last.Timestamp.UnixMilli(),
	}}}
	res, err := r.collection().UpdateOne(ctx, bson.M{"_id": string(id)}, update)
	if err != nil {
		return wrapErr(collectionConversations+"/"+string(id), "update", err)
	}
	if res.MatchedCount == 0 {
		return domainchat.ErrConversationNotFound
	}
	return nil
}

func activityOf(c *domainchat.Conversation) time.Time {
	if c.LastMessage != nil {
		return c.LastMessage.Timestamp
	}
	return c.CreatedAt
}

type MessageRepository struct {
	db *mongo.Database
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) collection() *mongo.Collection {
	return r.db.Collection(collectionMessages)
}

func (r *MessageRepository) Insert(ctx context.Context, m *domainchat.Message) error {
	_, err := r.collection().InsertOne(ctx, messageToDocument(m))
	return wrapErr(collectionMessages+"/"+string(m.ID), "create", err)
}

func (r *MessageRepository) ByID(ctx context.Context, conversation domainchat.ConversationID, id domainchat.MessageID) (*domainchat.Message, error) {
	var doc messageDocument
	filter := bson.M{"_id": string(id), "conversation_id": string(conversation)}
	err := r.collection().FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domainchat.ErrMessageNotFound
	}
	if err != nil {
		return nil, wrapErr(collectionMessages+"/"+string(id), "get", err)
	}
	return messageFromDocument(doc), nil
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversation domainchat.ConversationID) ([]*domainchat.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection().Find(ctx, bson.M{"conversation_id": string(conversation)}, opts)
	if err != nil {
		return nil, wrapErr(collectionMessages, "list", err)
	}
	defer cursor.Close(ctx)
	messages := make([]*domainchat.Message, 0)
	for cursor.Next(ctx) {
		var doc messageDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		messages = append(messages, messageFromDocument(doc))
	}
	return messages, wrapErr(collectionMessages, "list", cursor.Err())
}

func (r *MessageRepository) MarkDeleted(ctx context.Context, conversation domainchat.ConversationID, id domainchat.MessageID, placeholder string) error {
	filter := bson.M{"_id": string(id), "conversation_id": string(conversation)}
	update := bson.M{"$set": bson.M{"text": placeholder, "deleted": true}}
	res, err := r.collection().UpdateOne(ctx, filter, update)
	if err != nil {
		return wrapErr(collectionMessages+"/"+string(id), "update", err)
	}
	if res.MatchedCount == 0 {
		return domainchat.ErrMessageNotFound
	}
	return nil
}
