package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Protocol-Lattice/go-recap/src/model"
)

// MongoStore implements MessageStore on a MongoDB collection.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

const mongoCloseTimeout = 5 * time.Second

// NewMongoStore connects to MongoDB and ensures the timestamp index exists.
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if database == "" {
		return nil, errors.New("mongo database name is required")
	}
	if collection == "" {
		return nil, errors.New("mongo collection name is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	coll := client.Database(database).Collection(collection)

	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "timestamp", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return &MongoStore{client: client, collection: coll}, nil
}

// StoreMessage upserts one message by id.
func (ms *MongoStore) StoreMessage(ctx context.Context, msg model.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if ms == nil || ms.collection == nil {
		return nil
	}
	doc := bson.M{
		"_id":       msg.ID,
		"content":   msg.Content,
		"author":    msg.Author,
		"group_id":  msg.GroupID,
		"timestamp": msg.TimestampUnix,
	}
	_, err := ms.collection.ReplaceOne(ctx, bson.M{"_id": msg.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

// QueryMessages returns messages within [start, end] in ascending timestamp order.
func (ms *MongoStore) QueryMessages(ctx context.Context, start, end time.Time, userFilter string, limit int) ([]model.Message, error) {
	if ms == nil || ms.collection == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	filter := bson.M{
		"timestamp": bson.M{"$gte": start.Unix(), "$lte": end.Unix()},
	}
	if userFilter != "" {
		filter["author"] = userFilter
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: 1}}).
		SetLimit(int64(limit))

	cur, err := ms.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var msgs []model.Message
	for cur.Next(ctx) {
		var doc struct {
			ID        string `bson:"_id"`
			Content   string `bson:"content"`
			Author    string `bson:"author"`
			GroupID   string `bson:"group_id"`
			Timestamp int64  `bson:"timestamp"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		msgs = append(msgs, model.Message{
			ID:            doc.ID,
			Content:       doc.Content,
			Author:        doc.Author,
			GroupID:       doc.GroupID,
			TimestampUnix: doc.Timestamp,
		})
	}
	return msgs, cur.Err()
}

// Close disconnects the underlying client.
func (ms *MongoStore) Close(ctx context.Context) error {
	if ms == nil || ms.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, mongoCloseTimeout)
	defer cancel()
	return ms.client.Disconnect(ctx)
}
