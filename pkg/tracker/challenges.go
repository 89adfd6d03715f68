package tracker

import (
	"context"
	"fmt"
	"time"

	"weekly-stars/pkg/challenge"
	"weekly-stars/pkg/ledger"
)

// SubmitResult is the outcome of a submitted challenge.
type SubmitResult struct {
	Challenge   *challenge.Challenge `json:"challenge"`
	Correct     int                  `json:"correct_answers"`
	Total       int                  `json:"total_problems"`
	Percentage  float64              `json:"percentage"`
	StarsEarned int                  `json:"stars_earned"`
	Progress    ledger.Snapshot      `json:"progress"`
}

// CreateChallenge generates a quiz for subject and grade using the stored
// subject settings.
func (s *Service) CreateChallenge(ctx context.Context, subject challenge.Subject, grade int) (*challenge.Challenge, error) {
	if err := challenge.ValidateGrade(grade); err != nil {
		return nil, err
	}
	settings, err := s.Settings(ctx, subject)
	if err != nil {
		return nil, err
	}
	problems, err := s.generator.Generate(ctx, subject, grade, settings)
	if err != nil {
		return nil, fmt.Errorf("generate %s challenge: %w", subject, err)
	}
	c := challenge.New(subject, grade, problems)
	if err := s.challenges.Create(ctx, c); err != nil {
		return nil, err
	}
	s.log.Info("challenge.created", "challenge_id", c.ID, "subject", subject, "grade", grade, "problems", len(problems))
	return c, nil
}

// GetChallenge returns a stored challenge.
func (s *Service) GetChallenge(ctx context.Context, id string) (*challenge.Challenge, error) {
	return s.challenges.Get(ctx, id)
}

// RecentChallenges lists the latest challenges, optionally of one subject.
func (s *Service) RecentChallenges(ctx context.Context, subject challenge.Subject, limit int) ([]challenge.Challenge, error) {
	return s.challenges.Recent(ctx, subject, limit)
}

// SubmitChallenge grades answers, credits the award to the available pool
// and updates the subject statistics, then marks the challenge completed.
// The household remembers which challenges it credited, so a retry after a
// failed completion finishes the submission without crediting twice.
func (s *Service) SubmitChallenge(ctx context.Context, id string, answers map[int]string) (*SubmitResult, error) {
	c, err := s.challenges.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	settings, err := s.Settings(ctx, c.Subject)
	if err != nil {
		return nil, err
	}
	r, err := c.Mark(answers, settings.StarTiers, s.now().Truncate(time.Microsecond))
	if err != nil {
		s.reject("challenge.submitted", map[string]any{"challenge_id": id}, err)
		return nil, err
	}

	st, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if prior, ok := st.Credited[c.ID]; ok {
		c.StarsEarned = prior
	} else {
		attrs := map[string]any{
			"challenge_id": c.ID,
			"subject":      string(c.Subject),
			"percentage":   r.Percentage,
			"stars":        c.StarsEarned,
		}
		st, err = s.mutate(ctx, "challenge.submitted", attrs, func(st *State) error {
			credited, err := st.creditChallenge(c, r)
			if err != nil {
				return err
			}
			if !credited {
				return fmt.Errorf("challenge %s: %w", c.ID, ledger.ErrAlreadySubmitted)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if err := s.challenges.Complete(ctx, c); err != nil {
		s.reject("challenge.submitted", map[string]any{"challenge_id": id}, err)
		return nil, err
	}
	return &SubmitResult{
		Challenge:   c,
		Correct:     r.Correct,
		Total:       r.Total,
		Percentage:  r.Percentage,
		StarsEarned: c.StarsEarned,
		Progress:    st.Ledger.Snapshot(),
	}, nil
}
