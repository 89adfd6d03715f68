package challenge

import (
	"fmt"

	"weekly-stars/pkg/ledger"
)

// Settings configures quiz generation and scoring for one subject.
type Settings struct {
	ProblemCount      int   `json:"problem_count"`
	StarTiers         Tiers `json:"star_tiers"`
	MaxNumber         int   `json:"max_number,omitempty"`
	MaxMultiplication int   `json:"max_multiplication,omitempty"`
}

// DefaultSettings returns the built-in settings for subject.
func DefaultSettings(subject Subject) Settings {
	s := Settings{StarTiers: DefaultTiers()}
	switch subject {
	case Math:
		s.ProblemCount = 15
		s.MaxNumber = 100
		s.MaxMultiplication = 10
	case German:
		s.ProblemCount = 20
	default:
		s.ProblemCount = 15
	}
	return s
}

// Validate rejects settings that cannot produce a sensible quiz.
func (s Settings) Validate(subject Subject) error {
	if s.ProblemCount < 1 || s.ProblemCount > 100 {
		return fmt.Errorf("%w: problem_count must be within 1..100, got %d", ledger.ErrInvalidInput, s.ProblemCount)
	}
	if subject == Math {
		if s.MaxNumber < 10 {
			return fmt.Errorf("%w: max_number must be at least 10, got %d", ledger.ErrInvalidInput, s.MaxNumber)
		}
		if s.MaxMultiplication < 1 {
			return fmt.Errorf("%w: max_multiplication must be positive, got %d", ledger.ErrInvalidInput, s.MaxMultiplication)
		}
	}
	return s.StarTiers.Validate()
}

// TypeStats counts answers per question type.
type TypeStats struct {
	Correct int `json:"correct"`
	Wrong   int `json:"wrong"`
}

// Statistics aggregates every submitted challenge of a subject.
type Statistics struct {
	TotalAttempts    int                   `json:"total_attempts"`
	Grade2Attempts   int                   `json:"grade_2_attempts"`
	Grade3Attempts   int                   `json:"grade_3_attempts"`
	TotalCorrect     int                   `json:"total_correct"`
	TotalWrong       int                   `json:"total_wrong"`
	AverageScore     float64               `json:"average_score"`
	BestScore        float64               `json:"best_score"`
	TotalStarsEarned int                   `json:"total_stars_earned"`
	ProblemTypeStats map[string]*TypeStats `json:"problem_type_stats"`
}

// Record folds a graded challenge into the statistics.
func (s *Statistics) Record(c *Challenge, r Result) {
	s.TotalAttempts++
	switch c.Grade {
	case 2:
		s.Grade2Attempts++
	case 3:
		s.Grade3Attempts++
	}
	s.TotalCorrect += r.Correct
	s.TotalWrong += r.Total - r.Correct
	s.AverageScore += (r.Percentage - s.AverageScore) / float64(s.TotalAttempts)
	s.BestScore = max(s.BestScore, r.Percentage)
	s.TotalStarsEarned += c.StarsEarned

	if s.ProblemTypeStats == nil {
		s.ProblemTypeStats = map[string]*TypeStats{}
	}
	for _, p := range c.Problems {
		ts := s.ProblemTypeStats[p.Type]
		if ts == nil {
			ts = &TypeStats{}
			s.ProblemTypeStats[p.Type] = ts
		}
		if p.IsCorrect != nil && *p.IsCorrect {
			ts.Correct++
		} else {
			ts.Wrong++
		}
	}
}

// Profile is the per-subject state kept with the household.
type Profile struct {
	Settings   Settings   `json:"settings"`
	Statistics Statistics `json:"statistics"`
}

// DefaultProfiles returns a fresh profile for every subject.
func DefaultProfiles() map[Subject]*Profile {
	m := make(map[Subject]*Profile, len(Subjects))
	for _, s := range Subjects {
		m[s] = &Profile{Settings: DefaultSettings(s)}
	}
	return m
}
