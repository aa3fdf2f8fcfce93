package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/vovakirdan/formrelay-server/internal/record"
)

const serverSelectionTimeout = 5 * time.Second

// Config holds connection settings for the document store.
type Config struct {
	URI        string
	Database   string
	Collection string
}

// MongoStore implements store.Store over a MongoDB collection.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// New connects to MongoDB and verifies reachability with a ping.
// Callers treat an error here as fatal: the relay must not start
// serving without a working store.
func New(ctx context.Context, cfg Config) (*MongoStore, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(serverSelectionTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, serverSelectionTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &MongoStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// InsertMessage writes the record as one document.
func (s *MongoStore) InsertMessage(ctx context.Context, rec *record.Record) error {
	if _, err := s.collection.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// Ping verifies the primary is reachable.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects from the cluster.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), serverSelectionTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
