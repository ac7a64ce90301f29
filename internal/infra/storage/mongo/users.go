package mongo

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainuser "bchat/internal/domain/user"
)

type UserRepository struct {
	db *mongo.Database
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) collection() *mongo.Collection {
	return r.db.Collection(collectionUsers)
}

func (r *UserRepository) ByID(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	var doc userDocument
	err := r.collection().FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domainuser.ErrNotFound
	}
	if err != nil {
		return nil, wrapErr(collectionUsers+"/"+string(id), "get", err)
	}
	return userFromDocument(doc), nil
}

func (r *UserRepository) ByEmail(ctx context.Context, email string) (*domainuser.User, error) {
	var doc userDocument
	err := r.collection().FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domainuser.ErrNotFound
	}
	if err != nil {
		return nil, wrapErr(collectionUsers, "get", err)
	}
	return userFromDocument(doc), nil
}

func (r *UserRepository) ByIDs(ctx context.Context, ids []domainuser.ID) ([]*domainuser.User, error) {
	if len(ids) == 0 {
		return []*domainuser.User{}, nil
	}
	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, string(id))
	}
	cursor, err := r.collection().Find(ctx, bson.M{"_id": bson.M{"$in": raw}})
	if err != nil {
		return nil, wrapErr(collectionUsers, "list", err)
	}
	defer cursor.Close(ctx)
	found := make(map[string]*domainuser.User, len(ids))
	for cursor.Next(ctx) {
		var doc userDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		found[doc.ID] = userFromDocument(doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, wrapErr(collectionUsers, "list", err)
	}
	// Preserve request order; missing ids are skipped.
	users := make([]*domainuser.User, 0, len(found))
	for _, id := range raw {
		if u, ok := found[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func (r *UserRepository) Save(ctx context.Context, u *domainuser.User) error {
	doc := userToDocument(u)
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection().ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts)
	if mongo.IsDuplicateKeyError(err) {
		return domainuser.ErrEmailAlreadyUsed
	}
	return wrapErr(collectionUsers+"/"+doc.ID, "write", err)
}

func (r *UserRepository) Search(ctx context.Context, params domainuser.SearchParams) ([]*domainuser.User, error) {
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return []*domainuser.User{}, nil
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	filter := bson.M{
		"$or": bson.A{
			bson.M{"display_name": primitive.Regex{Pattern: "^" + regexp.QuoteMeta(query), Options: "i"}},
			bson.M{"friend_code": strings.ToUpper(query)},
		},
	}
	if params.Exclude != "" {
		filter["_id"] = bson.M{"$ne": string(params.Exclude)}
	}
	opts := options.Find().SetSort(bson.D{{Key: "display_name", Value: 1}}).SetLimit(int64(limit))
	cursor, err := r.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapErr(collectionUsers, "list", err)
	}
	defer cursor.Close(ctx)
	users := make([]*domainuser.User, 0)
	for cursor.Next(ctx) {
		var doc userDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		users = append(users, userFromDocument(doc))
	}
	return users, wrapErr(collectionUsers, "list", cursor.Err())
}

func (r *UserRepository) SetPresence(ctx context.Context, id domainuser.ID, online bool, at time.Time) error {
	update := bson.M{"$set": bson.M{
		"online":      online,
		"last_active": at.UnixMilli(),
		"updated_at":  at.UnixMilli(),
	}}
	res, err := r.collection().UpdateOne(ctx, bson.M{"_id": string(id)}, update)
	if err != nil {
		return wrapErr(collectionUsers+"/"+string(id), "update", err)
	}
	if res.MatchedCount == 0 {
		return domainuser.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id domainuser.ID, update domainuser.ProfileUpdate) error {
	fields := bson.M{"updated_at": time.Now().UnixMilli()}
	if update.DisplayName != nil {
		fields["display_name"] = *update.DisplayName
	}
	if update.PhotoURL != nil {
		fields["photo_url"] = *update.PhotoURL
	}
	if update.Bio != nil {
		fields["bio"] = *update.Bio
	}
	if update.Status != nil {
		fields["status"] = *update.Status
	}
	res, err := r.collection().UpdateOne(ctx, bson.M{"_id": string(id)}, bson.M{"$set": fields})
	if err != nil {
		return wrapErr(collectionUsers+"/"+string(id), "update", err)
	}
	if res.MatchedCount == 0 {
		return domainuser.ErrNotFound
	}
	return nil
}

func (r *UserRepository) AddFriend(ctx context.Context, id, friend domainuser.ID) error {
	update := bson.M{
		"$addToSet": bson.M{"friends": string(friend)},
		"$set":      bson.M{"updated_at": time.Now().UnixMilli()},
	}
	res, err := r.collection().UpdateOne(ctx, bson.M{"_id": string(id)}, update)
	if err != nil {
		return wrapErr(collectionUsers+"/"+string(id), "update", err)
	}
	if res.MatchedCount == 0 {
		return domainuser.ErrNotFound
	}
	return nil
}
