package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"weekly-stars/pkg/ledger"
)

// MongoStore keeps challenges in a MongoDB collection.
type MongoStore struct {
	col *mongo.Collection
}

// NewMongoStore creates a MongoStore using the "challenges" collection.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection("challenges")}
}

type mongoProblem struct {
	Question      string   `bson:"question"`
	CorrectAnswer string   `bson:"correct_answer"`
	Options       []string `bson:"options,omitempty"`
	Type          string   `bson:"question_type"`
	UserAnswer    *string  `bson:"user_answer,omitempty"`
	IsCorrect     *bool    `bson:"is_correct,omitempty"`
}

type mongoChallenge struct {
	ID          string         `bson:"_id"`
	Subject     string         `bson:"subject"`
	Grade       int            `bson:"grade"`
	Problems    []mongoProblem `bson:"problems"`
	Completed   bool           `bson:"completed"`
	Score       float64        `bson:"score"`
	StarsEarned int            `bson:"stars_earned"`
	CreatedAt   time.Time      `bson:"created_at"`
	CompletedAt *time.Time     `bson:"completed_at,omitempty"`
}

func toMongo(c *Challenge) mongoChallenge {
	m := mongoChallenge{
		ID: c.ID, Subject: string(c.Subject), Grade: c.Grade, Completed: c.Completed,
		Score: c.Score, StarsEarned: c.StarsEarned, CreatedAt: c.CreatedAt, CompletedAt: c.CompletedAt,
	}
	for _, p := range c.Problems {
		m.Problems = append(m.Problems, mongoProblem(p))
	}
	return m
}

func (m mongoChallenge) challenge() Challenge {
	c := Challenge{
		ID: m.ID, Subject: Subject(m.Subject), Grade: m.Grade, Completed: m.Completed,
		Score: m.Score, StarsEarned: m.StarsEarned, CreatedAt: m.CreatedAt, CompletedAt: m.CompletedAt,
	}
	for _, p := range m.Problems {
		c.Problems = append(c.Problems, Problem(p))
	}
	return c
}

// EnsureTable creates the subject index.
func (s *MongoStore) EnsureTable(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "subject", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}

func (s *MongoStore) Create(ctx context.Context, c *Challenge) error {
	if _, err := s.col.InsertOne(ctx, toMongo(c)); err != nil {
		return fmt.Errorf("create challenge: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*Challenge, error) {
	var m mongoChallenge
	err := s.col.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("challenge %s: %w", id, ledger.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge %s: %w", id, err)
	}
	c := m.challenge()
	return &c, nil
}

func (s *MongoStore) Complete(ctx context.Context, c *Challenge) error {
	res, err := s.col.ReplaceOne(ctx, bson.D{{Key: "_id", Value: c.ID}, {Key: "completed", Value: false}}, toMongo(c))
	if err != nil {
		return fmt.Errorf("complete challenge: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, err := s.Get(ctx, c.ID); err != nil {
			return err
		}
		return fmt.Errorf("challenge %s: %w", c.ID, ledger.ErrAlreadySubmitted)
	}
	return nil
}

func (s *MongoStore) Recent(ctx context.Context, subject Subject, limit int) ([]Challenge, error) {
	filter := bson.D{}
	if subject != "" {
		filter = bson.D{{Key: "subject", Value: string(subject)}}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(int64(limit))
	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("recent challenges: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoChallenge
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode challenges: %w", err)
	}
	out := make([]Challenge, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.challenge())
	}
	return out, nil
}
