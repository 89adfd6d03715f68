package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps the journal in a MongoDB collection. The unique index on
// prev_hash rejects a second event claiming the same chain head.
type MongoStore struct {
	col *mongo.Collection
	mu  sync.Mutex
}

// NewMongoStore creates a MongoStore using the "journal" collection.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection("journal")}
}

type mongoEvent struct {
	ID       string    `bson:"_id"`
	Type     string    `bson:"type"`
	TS       time.Time `bson:"timestamp"`
	Source   string    `bson:"source"`
	Content  string    `bson:"content"`
	Hash     string    `bson:"hash"`
	PrevHash string    `bson:"prev_hash"`
}

func (m mongoEvent) event() (Event, error) {
	e := Event{ID: m.ID, Type: m.Type, Timestamp: m.TS, Source: m.Source, Hash: m.Hash, PrevHash: m.PrevHash}
	if err := json.Unmarshal([]byte(m.Content), &e.Content); err != nil {
		return Event{}, fmt.Errorf("unmarshal content: %w", err)
	}
	return e, nil
}

func (s *MongoStore) EnsureTable(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "prev_hash", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "type", Value: 1}}},
	})
	return err
}

func (s *MongoStore) head(ctx context.Context) (string, error) {
	var m mongoEvent
	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	err := s.col.FindOne(ctx, bson.D{}, opts).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	return m.Hash, err
}

func (s *MongoStore) Append(ctx context.Context, eventType, source string, content map[string]any) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		prevHash, err := s.head(ctx)
		if err != nil {
			return nil, fmt.Errorf("chain head: %w", err)
		}
		e, contentJSON, err := newEvent(prevHash, eventType, source, content)
		if err != nil {
			return nil, err
		}
		_, err = s.col.InsertOne(ctx, mongoEvent{
			ID: e.ID, Type: e.Type, TS: e.Timestamp, Source: e.Source,
			Content: string(contentJSON), Hash: e.Hash, PrevHash: e.PrevHash,
		})
		if err == nil {
			return e, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("insert event: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("insert event: chain head kept moving: %w", lastErr)
}

func (s *MongoStore) find(ctx context.Context, filter bson.D, asc bool, limit int) ([]Event, error) {
	dir := -1
	if asc {
		dir = 1
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: dir}, {Key: "_id", Value: dir}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []mongoEvent
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(docs))
	for _, d := range docs {
		e, err := d.event()
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

func (s *MongoStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	return s.find(ctx, bson.D{}, false, limit)
}

func (s *MongoStore) ByType(ctx context.Context, eventType string, limit int) ([]Event, error) {
	return s.find(ctx, bson.D{{Key: "type", Value: eventType}}, false, limit)
}

func (s *MongoStore) Since(ctx context.Context, afterID string, limit int) ([]Event, error) {
	var anchor mongoEvent
	if err := s.col.FindOne(ctx, bson.D{{Key: "_id", Value: afterID}}).Decode(&anchor); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	filter := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "timestamp", Value: bson.D{{Key: "$gt", Value: anchor.TS}}}},
		bson.D{{Key: "timestamp", Value: anchor.TS}, {Key: "_id", Value: bson.D{{Key: "$gt", Value: anchor.ID}}}},
	}}}
	return s.find(ctx, filter, true, limit)
}

func (s *MongoStore) Count(ctx context.Context) (int, error) {
	n, err := s.col.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return int(n), nil
}

func (s *MongoStore) VerifyChain(ctx context.Context) error {
	events, err := s.find(ctx, bson.D{}, true, 0)
	if err != nil {
		return fmt.Errorf("verify chain query: %w", err)
	}
	var v chainVerifier
	for i := range events {
		if err := v.check(&events[i]); err != nil {
			return err
		}
	}
	return nil
}
