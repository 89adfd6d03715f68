// Package tracker owns the household document: the star ledger together with
// the chores, rewards and quiz profiles it refers to. Every change goes
// through Store.Update so a rejected operation never leaves partial state.
package tracker

import (
	"encoding/json"
	"fmt"
	"time"

	"weekly-stars/pkg/challenge"
	"weekly-stars/pkg/ledger"
	"weekly-stars/pkg/reward"
	"weekly-stars/pkg/task"
)

// HouseholdID keys the single household document in every backend.
const HouseholdID = "household"

// State is the household document.
type State struct {
	Version   int64                                    `json:"version"`
	WeekStart time.Time                                `json:"week_start"`
	Ledger    *ledger.Ledger                           `json:"ledger"`
	Tasks     task.List                                `json:"tasks"`
	Rewards   reward.Catalog                           `json:"rewards"`
	Subjects  map[challenge.Subject]*challenge.Profile `json:"subjects"`
	// Credited maps submitted challenge IDs to the stars they were awarded.
	Credited  map[string]int                           `json:"credited_challenges,omitempty"`
	UpdatedAt time.Time                                `json:"updated_at"`
}

// NewState returns an empty household whose safe holds seed stars.
func NewState(seed int, now time.Time) *State {
	return &State{
		WeekStart: ledger.WeekStart(now),
		Ledger:    ledger.New(seed),
		Tasks:     task.List{},
		Rewards:   reward.Catalog{},
		Subjects:  challenge.DefaultProfiles(),
		Credited:  map[string]int{},
		UpdatedAt: now,
	}
}

// Profile returns the quiz profile of subject, creating the default one if
// the document predates it.
func (s *State) Profile(subject challenge.Subject) *challenge.Profile {
	if s.Subjects == nil {
		s.Subjects = map[challenge.Subject]*challenge.Profile{}
	}
	p := s.Subjects[subject]
	if p == nil {
		p = &challenge.Profile{Settings: challenge.DefaultSettings(subject)}
		s.Subjects[subject] = p
	}
	return p
}

// DecodeState parses a household document and fills in anything missing.
func DecodeState(doc []byte, seed int) (*State, error) {
	st := NewState(seed, time.Now())
	if err := json.Unmarshal(doc, st); err != nil {
		return nil, fmt.Errorf("decode household: %w", err)
	}
	if st.Ledger == nil {
		st.Ledger = ledger.New(seed)
	}
	if st.Ledger.Entries == nil {
		st.Ledger.Entries = []ledger.Entry{}
	}
	if st.Tasks == nil {
		st.Tasks = task.List{}
	}
	if st.Rewards == nil {
		st.Rewards = reward.Catalog{}
	}
	if st.Credited == nil {
		st.Credited = map[string]int{}
	}
	for _, subj := range challenge.Subjects {
		st.Profile(subj)
	}
	return st, nil
}

// Encode serializes the document.
func (s *State) Encode() ([]byte, error) {
	doc, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode household: %w", err)
	}
	return doc, nil
}

// Validate checks a document before it replaces the stored one.
func (s *State) Validate() error {
	if s.Ledger == nil {
		return fmt.Errorf("%w: household has no ledger", ledger.ErrInvalidInput)
	}
	if err := s.Ledger.Audit(); err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrInvalidInput, err)
	}
	for _, e := range s.Ledger.Entries {
		if _, err := s.Tasks.Get(e.TaskID); err != nil {
			return fmt.Errorf("%w: entry refers to unknown task %s", ledger.ErrInvalidInput, e.TaskID)
		}
	}
	return nil
}

// creditChallenge credits a graded challenge to the available pool and its
// subject statistics unless it was credited before. It reports false for a
// repeat, in which case nothing changes.
func (s *State) creditChallenge(c *challenge.Challenge, r challenge.Result) (bool, error) {
	if _, ok := s.Credited[c.ID]; ok {
		return false, nil
	}
	if c.StarsEarned > 0 {
		if err := s.Ledger.CreditChallengeReward(c.StarsEarned); err != nil {
			return false, err
		}
	}
	s.Profile(c.Subject).Statistics.Record(c, r)
	if s.Credited == nil {
		s.Credited = map[string]int{}
	}
	s.Credited[c.ID] = c.StarsEarned
	return true, nil
}
