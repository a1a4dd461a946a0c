package audit

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoOptions configures a MongoStore. Client and Database are
// required; Collection and Timeout default when left unset.
type MongoOptions struct {
	Client     *mongo.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// MongoStore persists audit entries to MongoDB, append-only. It is
// the production Store implementation; MemoryStore backs tests and
// standalone runs.
type MongoStore struct {
	coll    *mongo.Collection
	timeout time.Duration
}

// NewMongoStore validates opts and constructs a MongoStore, creating
// a descending-timestamp index so Recent queries are index-backed.
func NewMongoStore(ctx context.Context, opts MongoOptions) (*MongoStore, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("audit: mongo client is required")
	}
	if opts.Database == "" {
		return nil, fmt.Errorf("audit: mongo database is required")
	}
	if opts.Collection == "" {
		opts.Collection = "audit_log"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}

	coll := opts.Client.Database(opts.Database).Collection(opts.Collection)
	s := &MongoStore{coll: coll, timeout: opts.Timeout}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("audit: ensure indexes: %w", err)
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "timestamp", Value: -1}},
	})
	return err
}

// Append inserts e into the collection.
func (s *MongoStore) Append(ctx context.Context, e Entry) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.coll.InsertOne(ctx, e)
	return err
}

// Recent returns up to limit entries ordered by timestamp descending.
func (s *MongoStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if limit <= 0 {
		limit = 100
	}
	cur, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Entry
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
