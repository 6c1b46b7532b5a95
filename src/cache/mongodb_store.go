package cache

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on a MongoDB collection with a TTL index, so
// the server expires entries on its own schedule.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type mongoCacheDoc struct {
	Key        string    `bson:"_id"`
	Value      string    `bson:"value"`
	InsertedAt time.Time `bson:"inserted_at"`
	ExpiresAt  time.Time `bson:"expires_at,omitempty"`
}

// NewMongoStore connects to MongoDB and ensures the TTL index exists.
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

	// expireAfterSeconds 0 makes Mongo expire at the expires_at value.
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return &MongoStore{client: client, collection: coll}, nil
}

func (ms *MongoStore) Get(ctx context.Context, key string) (string, bool, error) {
	if ms == nil || ms.collection == nil {
		return "", false, nil
	}
	var doc mongoCacheDoc
	err := ms.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	// Mongo's TTL monitor runs every minute; filter expired docs ourselves.
	if !doc.ExpiresAt.IsZero() && time.Now().After(doc.ExpiresAt) {
		return "", false, nil
	}
	return doc.Value, true, nil
}

func (ms *MongoStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ms == nil || ms.collection == nil {
		return nil
	}
	doc := mongoCacheDoc{Key: key, Value: value, InsertedAt: time.Now().UTC()}
	if ttl > 0 {
		doc.ExpiresAt = doc.InsertedAt.Add(ttl)
	}
	_, err := ms.collection.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	return err
}

func (ms *MongoStore) Delete(ctx context.Context, key string) error {
	if ms == nil || ms.collection == nil {
		return nil
	}
	_, err := ms.collection.DeleteOne(ctx, bson.M{"_id": key})
	return err
}

// Close disconnects the underlying client.
func (ms *MongoStore) Close(ctx context.Context) error {
	if ms == nil || ms.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return ms.client.Disconnect(ctx)
}
