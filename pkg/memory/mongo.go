package memory

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoDatabase   = "aria"
	mongoCollection = "memories"
	mongoOpTimeout  = 5 * time.Second
)

// MongoStore implements Store backed by MongoDB: one document per
// device URID in the aria.memories collection, upserted on save.
// Devices sharing a URID share their memory.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	urid   string
}

// mongoDoc is the wire shape of a stored memory snapshot.
type mongoDoc struct {
	URID      string    `bson:"_id"`
	Data      string    `bson:"data"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// NewMongoStore connects to MongoDB and verifies the connection.
// The urid keys this device's memory document.
func NewMongoStore(ctx context.Context, uri, urid string) (*MongoStore, error) {
	if uri == "" {
		return nil, fmt.Errorf("memory: mongo uri is required")
	}
	if urid == "" {
		return nil, fmt.Errorf("memory: urid is required")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("memory: mongo connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("memory: mongo ping: %w", err)
	}

	return &MongoStore{
		client: client,
		coll:   client.Database(mongoDatabase).Collection(mongoCollection),
		urid:   urid,
	}, nil
}

// Save upserts this device's memory document.
func (s *MongoStore) Save(data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"data":       string(data),
		"updated_at": time.Now(),
	}}
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": s.urid}, update,
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("memory: mongo save: %w", err)
	}
	return nil
}

// Load fetches this device's memory document. Returns nil data when
// the device has never saved.
func (s *MongoStore) Load() ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()

	var doc mongoDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": s.urid}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: mongo load: %w", err)
	}
	return []byte(doc.Data), nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
