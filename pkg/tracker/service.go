package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"weekly-stars/pkg/challenge"
	"weekly-stars/pkg/journal"
	"weekly-stars/pkg/ledger"
	"weekly-stars/pkg/reward"
	"weekly-stars/pkg/task"
)

// RewardPolicy decides what resetAll does to the reward catalog.
type RewardPolicy string

const (
	// RewardsUnclaim clears every claimed flag and keeps the rewards.
	RewardsUnclaim RewardPolicy = "unclaim"
	// RewardsKeep leaves the catalog untouched.
	RewardsKeep RewardPolicy = "keep"
	// RewardsDeleteClaimed removes rewards that were claimed.
	RewardsDeleteClaimed RewardPolicy = "delete"
)

// ParseRewardPolicy validates a policy name. Empty selects RewardsUnclaim.
func ParseRewardPolicy(s string) (RewardPolicy, error) {
	switch p := RewardPolicy(s); p {
	case "":
		return RewardsUnclaim, nil
	case RewardsUnclaim, RewardsKeep, RewardsDeleteClaimed:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown reset-all reward policy %q", ledger.ErrInvalidInput, s)
}

// Options tunes a Service.
type Options struct {
	ResetAllRewards RewardPolicy
}

// Service exposes every household operation. Each mutation runs inside one
// Store.Update and, once committed, is appended to the journal.
type Service struct {
	store      Store
	challenges challenge.Store
	generator  challenge.Generator
	events     journal.EventStore
	log        *slog.Logger
	opts       Options
	source     string
	now        func() time.Time
}

// NewService wires a Service. events may be nil to disable journaling.
func NewService(store Store, challenges challenge.Store, generator challenge.Generator, events journal.EventStore, log *slog.Logger, opts Options) *Service {
	if log == nil {
		log = slog.Default()
	}
	if opts.ResetAllRewards == "" {
		opts.ResetAllRewards = RewardsUnclaim
	}
	return &Service{
		store:      store,
		challenges: challenges,
		generator:  generator,
		events:     events,
		log:        log,
		opts:       opts,
		source:     "api",
		now:        time.Now,
	}
}

// WithSource returns a Service that tags journal events with source.
func (s *Service) WithSource(source string) *Service {
	c := *s
	c.source = source
	c.log = s.log.With("source", source)
	return &c
}

// mutate commits fn and journals the result under eventType.
func (s *Service) mutate(ctx context.Context, eventType string, attrs map[string]any, fn func(*State) error) (*State, error) {
	st, err := s.store.Update(ctx, fn)
	if err != nil {
		s.reject(eventType, attrs, err)
		return nil, err
	}
	snap := st.Ledger.Snapshot()
	s.log.Info(eventType,
		"attrs", attrs,
		"task_stars", snap.TotalStars,
		"available", snap.AvailableStars,
		"safe", snap.StarsInSafe,
		"version", st.Version)
	s.record(ctx, eventType, attrs, snap)
	return st, nil
}

func (s *Service) reject(op string, attrs map[string]any, err error) {
	if errors.Is(err, ledger.ErrUnavailable) {
		s.log.Error(op+" failed", "attrs", attrs, "err", err)
		return
	}
	s.log.Warn(op+" rejected", "attrs", attrs, "kind", Kind(err), "err", err)
}

func (s *Service) record(ctx context.Context, eventType string, attrs map[string]any, snap ledger.Snapshot) {
	if s.events == nil {
		return
	}
	content := map[string]any{"snapshot": snap}
	for k, v := range attrs {
		content[k] = v
	}
	if _, err := s.events.Append(ctx, eventType, s.source, content); err != nil {
		s.log.Error("journal append failed", "type", eventType, "err", err)
	}
}

// Kind names the error kind of err for logs and API payloads.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ledger.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ledger.ErrInsufficientStars):
		return "insufficient_stars"
	case errors.Is(err, ledger.ErrNotFound):
		return "not_found"
	case errors.Is(err, ledger.ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, ledger.ErrAlreadySubmitted):
		return "already_submitted"
	case errors.Is(err, ledger.ErrUnavailable):
		return "unavailable"
	}
	return "internal"
}

func snapshotOf(st *State, err error) (ledger.Snapshot, error) {
	if err != nil {
		return ledger.Snapshot{}, err
	}
	return st.Ledger.Snapshot(), nil
}

// State returns the whole household document.
func (s *Service) State(ctx context.Context) (*State, error) {
	return s.store.Load(ctx)
}

// Progress returns the current balances.
func (s *Service) Progress(ctx context.Context) (ledger.Snapshot, error) {
	return snapshotOf(s.store.Load(ctx))
}

// Audit verifies the ledger's invariants.
func (s *Service) Audit(ctx context.Context) error {
	st, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	return st.Ledger.Audit()
}

// Stars returns the recorded task stars of the current week.
func (s *Service) Stars(ctx context.Context) ([]ledger.Entry, error) {
	st, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return st.Ledger.Entries, nil
}

// RecordTaskStars sets the stars of a task on a day.
func (s *Service) RecordTaskStars(ctx context.Context, taskID, day string, stars int) (ledger.Snapshot, error) {
	attrs := map[string]any{"task_id": taskID, "day": day, "stars": stars}
	return snapshotOf(s.mutate(ctx, "stars.recorded", attrs, func(st *State) error {
		d, err := ledger.ParseDay(day)
		if err != nil {
			return err
		}
		if _, err := st.Tasks.Get(taskID); err != nil {
			return err
		}
		return st.Ledger.RecordTaskStars(taskID, d, stars)
	}))
}

// TransferTaskStarsToSafe moves task stars into the safe.
func (s *Service) TransferTaskStarsToSafe(ctx context.Context, amount int) (ledger.Snapshot, error) {
	return snapshotOf(s.mutate(ctx, "safe.deposited", map[string]any{"amount": amount}, func(st *State) error {
		return st.Ledger.TransferTaskStarsToSafe(amount)
	}))
}

// TransferAvailableToSafe moves reward-eligible stars into the safe.
func (s *Service) TransferAvailableToSafe(ctx context.Context, amount int) (ledger.Snapshot, error) {
	return snapshotOf(s.mutate(ctx, "available.deposited_to_safe", map[string]any{"amount": amount}, func(st *State) error {
		return st.Ledger.TransferAvailableToSafe(amount)
	}))
}

// WithdrawFromSafe moves stars out of the safe into the available pool.
func (s *Service) WithdrawFromSafe(ctx context.Context, amount int) (ledger.Snapshot, error) {
	return snapshotOf(s.mutate(ctx, "safe.withdrawn", map[string]any{"amount": amount}, func(st *State) error {
		return st.Ledger.WithdrawFromSafe(amount)
	}))
}

// TransferTaskStarsToAvailable makes task stars spendable.
func (s *Service) TransferTaskStarsToAvailable(ctx context.Context, amount int) (ledger.Snapshot, error) {
	return snapshotOf(s.mutate(ctx, "task_stars.moved_to_available", map[string]any{"amount": amount}, func(st *State) error {
		return st.Ledger.TransferTaskStarsToAvailable(amount)
	}))
}

// CreditChallengeReward adds an already computed award to the available pool.
func (s *Service) CreditChallengeReward(ctx context.Context, stars int) (ledger.Snapshot, error) {
	return snapshotOf(s.mutate(ctx, "challenge.credited", map[string]any{"stars": stars}, func(st *State) error {
		return st.Ledger.CreditChallengeReward(stars)
	}))
}

// ResetWeek clears the week's task and available stars.
func (s *Service) ResetWeek(ctx context.Context) (ledger.Snapshot, error) {
	now := s.now()
	return snapshotOf(s.mutate(ctx, "week.reset", nil, func(st *State) error {
		st.Ledger.ResetWeek()
		st.WeekStart = ledger.WeekStart(now)
		return nil
	}))
}

// RolloverIfDue runs ResetWeek when now falls in a later week than the one
// the household was last reset in. It reports whether a reset happened.
func (s *Service) RolloverIfDue(ctx context.Context, now time.Time) (bool, error) {
	current := ledger.WeekStart(now)
	st, err := s.store.Load(ctx)
	if err != nil {
		return false, err
	}
	if !current.After(st.WeekStart) {
		return false, nil
	}
	attrs := map[string]any{"week_start": current.Format(time.DateOnly)}
	st, err = s.store.Update(ctx, func(st *State) error {
		if !current.After(st.WeekStart) {
			return errNotDue
		}
		st.Ledger.ResetWeek()
		st.WeekStart = current
		return nil
	})
	switch {
	case errors.Is(err, errNotDue):
		return false, nil
	case err != nil:
		s.reject("week.reset", attrs, err)
		return false, err
	}
	snap := st.Ledger.Snapshot()
	s.log.Info("week.reset", "attrs", attrs, "available", snap.AvailableStars, "safe", snap.StarsInSafe, "version", st.Version)
	s.record(ctx, "week.reset", attrs, snap)
	return true, nil
}

// errNotDue aborts a rollover another writer already performed.
var errNotDue = errors.New("rollover not due")

// ResetSafe returns safe stars above the seed to the task pool.
func (s *Service) ResetSafe(ctx context.Context) (ledger.Snapshot, error) {
	return snapshotOf(s.mutate(ctx, "safe.reset", nil, func(st *State) error {
		st.Ledger.ResetSafe()
		return nil
	}))
}

// ResetAll wipes every pool and applies the configured reward policy.
func (s *Service) ResetAll(ctx context.Context) (ledger.Snapshot, error) {
	now := s.now()
	policy := s.opts.ResetAllRewards
	return snapshotOf(s.mutate(ctx, "all.reset", map[string]any{"reward_policy": string(policy)}, func(st *State) error {
		st.Ledger.ResetAll()
		st.WeekStart = ledger.WeekStart(now)
		switch policy {
		case RewardsUnclaim:
			st.Rewards.Unclaim()
		case RewardsDeleteClaimed:
			st.Rewards = st.Rewards.WithoutClaimed()
		}
		return nil
	}))
}

// Restore replaces the household with a previously exported document.
func (s *Service) Restore(ctx context.Context, candidate *State) (ledger.Snapshot, error) {
	if err := candidate.Validate(); err != nil {
		return ledger.Snapshot{}, err
	}
	return snapshotOf(s.mutate(ctx, "household.restored", map[string]any{"from_version": candidate.Version}, func(st *State) error {
		version := st.Version
		*st = *candidate
		st.Version = version
		for _, subj := range challenge.Subjects {
			st.Profile(subj)
		}
		return nil
	}))
}

// ListTasks returns every chore.
func (s *Service) ListTasks(ctx context.Context) (task.List, error) {
	st, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return st.Tasks, nil
}

// CreateTask adds a chore.
func (s *Service) CreateTask(ctx context.Context, name string) (*task.Task, error) {
	t, err := task.New(name)
	if err != nil {
		return nil, err
	}
	if _, err := s.mutate(ctx, "task.created", map[string]any{"task_id": t.ID, "name": t.Name}, func(st *State) error {
		st.Tasks = append(st.Tasks, t)
		return nil
	}); err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteTask removes a chore and its recorded stars.
func (s *Service) DeleteTask(ctx context.Context, id string) (ledger.Snapshot, error) {
	return snapshotOf(s.mutate(ctx, "task.deleted", map[string]any{"task_id": id}, func(st *State) error {
		tasks, err := st.Tasks.Remove(id)
		if err != nil {
			return err
		}
		if err := st.Ledger.RemoveTask(id); err != nil {
			return err
		}
		st.Tasks = tasks
		return nil
	}))
}

// ListRewards returns the catalog, fuzzy-filtered by query when non-empty.
func (s *Service) ListRewards(ctx context.Context, query string) (reward.Catalog, error) {
	st, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return st.Rewards.Search(query), nil
}

// CreateReward adds a reward to the catalog.
func (s *Service) CreateReward(ctx context.Context, name string, requiredStars int) (*reward.Reward, error) {
	r, err := reward.New(name, requiredStars)
	if err != nil {
		return nil, err
	}
	if _, err := s.mutate(ctx, "reward.created", map[string]any{"reward_id": r.ID, "required_stars": r.RequiredStars}, func(st *State) error {
		st.Rewards = append(st.Rewards, r)
		return nil
	}); err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteReward removes one reward.
func (s *Service) DeleteReward(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, "reward.deleted", map[string]any{"reward_id": id}, func(st *State) error {
		rewards, err := st.Rewards.Remove(id)
		if err != nil {
			return err
		}
		st.Rewards = rewards
		return nil
	})
	return err
}

// ClaimReward spends available stars on a reward.
func (s *Service) ClaimReward(ctx context.Context, id string) (ledger.Snapshot, error) {
	now := s.now().Truncate(time.Microsecond)
	return snapshotOf(s.mutate(ctx, "reward.claimed", map[string]any{"reward_id": id}, func(st *State) error {
		_, err := st.Rewards.Claim(st.Ledger, id, now)
		return err
	}))
}

// DeleteAllRewards empties the catalog. Star pools are not touched.
func (s *Service) DeleteAllRewards(ctx context.Context) error {
	_, err := s.mutate(ctx, "rewards.deleted_all", nil, func(st *State) error {
		st.Rewards = reward.Catalog{}
		return nil
	})
	return err
}

// Settings returns the quiz settings of subject.
func (s *Service) Settings(ctx context.Context, subject challenge.Subject) (challenge.Settings, error) {
	st, err := s.store.Load(ctx)
	if err != nil {
		return challenge.Settings{}, err
	}
	return st.Profile(subject).Settings, nil
}

// UpdateSettings validates and stores the quiz settings of subject.
func (s *Service) UpdateSettings(ctx context.Context, subject challenge.Subject, settings challenge.Settings) (challenge.Settings, error) {
	if err := settings.Validate(subject); err != nil {
		return challenge.Settings{}, err
	}
	_, err := s.mutate(ctx, "settings.updated", map[string]any{"subject": string(subject), "problem_count": settings.ProblemCount}, func(st *State) error {
		st.Profile(subject).Settings = settings
		return nil
	})
	return settings, err
}

// Statistics returns the quiz statistics of subject.
func (s *Service) Statistics(ctx context.Context, subject challenge.Subject) (challenge.Statistics, error) {
	st, err := s.store.Load(ctx)
	if err != nil {
		return challenge.Statistics{}, err
	}
	return st.Profile(subject).Statistics, nil
}

// ResetStatistics zeroes the quiz statistics of subject.
func (s *Service) ResetStatistics(ctx context.Context, subject challenge.Subject) error {
	_, err := s.mutate(ctx, "statistics.reset", map[string]any{"subject": string(subject)}, func(st *State) error {
		st.Profile(subject).Statistics = challenge.Statistics{}
		return nil
	})
	return err
}
