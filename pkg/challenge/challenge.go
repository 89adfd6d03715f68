// Package challenge generates practice quizzes, scores submissions and
// turns the score into a star award through a tier table.
package challenge

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"weekly-stars/pkg/ledger"
)

// Subject is a quiz topic.
type Subject string

const (
	Math    Subject = "math"
	German  Subject = "german"
	English Subject = "english"
)

// Subjects lists every supported subject.
var Subjects = []Subject{Math, German, English}

// ParseSubject validates a subject name.
func ParseSubject(s string) (Subject, error) {
	for _, subj := range Subjects {
		if strings.EqualFold(s, string(subj)) {
			return subj, nil
		}
	}
	return "", fmt.Errorf("%w: unknown subject %q", ledger.ErrInvalidInput, s)
}

// ValidateGrade accepts school grades 2 and 3.
func ValidateGrade(grade int) error {
	if grade != 2 && grade != 3 {
		return fmt.Errorf("%w: grade must be 2 or 3, got %d", ledger.ErrInvalidInput, grade)
	}
	return nil
}

// Problem is one question of a challenge.
type Problem struct {
	Question      string   `json:"question"`
	CorrectAnswer string   `json:"correct_answer"`
	Options       []string `json:"options,omitempty"`
	Type          string   `json:"question_type"`
	UserAnswer    *string  `json:"user_answer,omitempty"`
	IsCorrect     *bool    `json:"is_correct,omitempty"`
}

// Challenge is a generated quiz and, once submitted, its result.
type Challenge struct {
	ID          string     `json:"id"`
	Subject     Subject    `json:"subject"`
	Grade       int        `json:"grade"`
	Problems    []Problem  `json:"problems"`
	Completed   bool       `json:"completed"`
	Score       float64    `json:"score"`
	StarsEarned int        `json:"stars_earned"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// New wraps generated problems in a fresh challenge.
func New(subject Subject, grade int, problems []Problem) *Challenge {
	return &Challenge{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Subject:   subject,
		Grade:     grade,
		Problems:  problems,
		CreatedAt: time.Now().Truncate(time.Microsecond),
	}
}

// Result is the outcome of scoring a submission.
type Result struct {
	Correct    int     `json:"correct_answers"`
	Total      int     `json:"total_problems"`
	Percentage float64 `json:"percentage"`
}

// Score compares answers (keyed by problem index) against the problem set.
// Unanswered problems count as wrong.
func Score(problems []Problem, answers map[int]string) Result {
	r := Result{Total: len(problems)}
	for i, p := range problems {
		if a, ok := answers[i]; ok && matches(p.CorrectAnswer, a) {
			r.Correct++
		}
	}
	if r.Total > 0 {
		r.Percentage = float64(r.Correct*100) / float64(r.Total)
	}
	return r
}

func matches(want, got string) bool {
	want, got = strings.TrimSpace(want), strings.TrimSpace(got)
	if want == got {
		return true
	}
	w, err1 := strconv.Atoi(want)
	g, err2 := strconv.Atoi(got)
	return err1 == nil && err2 == nil && w == g
}

// Mark scores the submission, marks every problem, and records the award
// according to tiers. It refuses a challenge that was already submitted.
func (c *Challenge) Mark(answers map[int]string, tiers Tiers, now time.Time) (Result, error) {
	if c.Completed {
		return Result{}, fmt.Errorf("challenge %s: %w", c.ID, ledger.ErrAlreadySubmitted)
	}
	r := Score(c.Problems, answers)
	for i := range c.Problems {
		p := &c.Problems[i]
		a, ok := answers[i]
		if !ok {
			continue
		}
		correct := matches(p.CorrectAnswer, a)
		p.UserAnswer = &a
		p.IsCorrect = &correct
	}
	c.Score = r.Percentage
	c.StarsEarned = tiers.Award(r.Percentage)
	c.Completed = true
	c.CompletedAt = &now
	return r, nil
}

// Store is the contract for challenge persistence.
type Store interface {
	Create(ctx context.Context, c *Challenge) error
	Get(ctx context.Context, id string) (*Challenge, error)
	// Complete persists a graded challenge. It fails with
	// ledger.ErrAlreadySubmitted if the stored copy is already completed.
	Complete(ctx context.Context, c *Challenge) error
	Recent(ctx context.Context, subject Subject, limit int) ([]Challenge, error)
	EnsureTable(ctx context.Context) error
}
