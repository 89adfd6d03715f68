package tracker

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps the household document in MongoDB and guards updates
// with a compare-and-swap on the version field.
type MongoStore struct {
	col  *mongo.Collection
	seed int
}

// NewMongoStore creates a MongoStore using the "household" collection.
func NewMongoStore(db *mongo.Database, seed int) *MongoStore {
	return &MongoStore{col: db.Collection("household"), seed: seed}
}

type householdDoc struct {
	ID        string    `bson:"_id"`
	Version   int64     `bson:"version"`
	State     string    `bson:"state"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// EnsureTable creates the household document if it is missing.
func (s *MongoStore) EnsureTable(ctx context.Context) error {
	_, err := s.col.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: HouseholdID}},
		bson.D{{Key: "$setOnInsert", Value: bson.D{
			{Key: "version", Value: int64(0)},
			{Key: "state", Value: ""},
			{Key: "updated_at", Value: time.Now()},
		}}},
		options.Update().SetUpsert(true))
	return err
}

func (s *MongoStore) read(ctx context.Context) (householdDoc, error) {
	var d householdDoc
	err := s.col.FindOne(ctx, bson.D{{Key: "_id", Value: HouseholdID}}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return householdDoc{ID: HouseholdID}, nil
	}
	if err != nil {
		return d, unavailable("load household", err)
	}
	return d, nil
}

func (s *MongoStore) Load(ctx context.Context) (*State, error) {
	d, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return load([]byte(d.State), d.Version, s.seed)
}

func (s *MongoStore) Update(ctx context.Context, fn func(*State) error) (*State, error) {
	return retry(ctx, func() (*State, error) {
		d, err := s.read(ctx)
		if err != nil {
			return nil, err
		}
		st, out, err := apply([]byte(d.State), d.Version, s.seed, fn)
		if err != nil {
			return nil, err
		}
		res, err := s.col.UpdateOne(ctx,
			bson.D{{Key: "_id", Value: HouseholdID}, {Key: "version", Value: d.Version}},
			bson.D{{Key: "$set", Value: bson.D{
				{Key: "version", Value: st.Version},
				{Key: "state", Value: string(out)},
				{Key: "updated_at", Value: time.Now()},
			}}})
		if err != nil {
			return nil, unavailable("save household", err)
		}
		if res.MatchedCount == 0 {
			return nil, errConflict
		}
		return st, nil
	})
}
