// Package ledger tracks the three star pools of a household: stars earned
// from weekly tasks, stars available for rewards, and stars parked in the
// safe. Every operation validates before it mutates, so a rejected call
// leaves the ledger exactly as it was.
package ledger

import (
	"fmt"
)

// DefaultSeed is the number of stars a fresh safe starts with.
const DefaultSeed = 3

// Entry is the star count recorded for one task on one day.
type Entry struct {
	TaskID string `json:"task_id"`
	Day    Day    `json:"day"`
	Stars  int    `json:"stars"`
}

// Ledger is the persisted state of the star pools.
//
// The task pool is never stored; TaskStarsAvailable derives it from the
// entries and the three task counters. Granted, Awarded, Spent, Retired and
// Forfeited only feed Audit.
type Ledger struct {
	Seed    int     `json:"seed"`
	Entries []Entry `json:"entries"`

	UsedForRewards   int `json:"used_for_rewards"`
	MovedToSafe      int `json:"moved_to_safe"`
	ReturnedFromSafe int `json:"returned_from_safe"`
	Available        int `json:"available"`
	Safe             int `json:"safe"`

	Granted   int `json:"granted"`
	Awarded   int `json:"awarded"`
	Spent     int `json:"spent"`
	Retired   int `json:"retired"`
	Forfeited int `json:"forfeited"`
}

// New returns a ledger whose safe holds seed stars.
func New(seed int) *Ledger {
	if seed < 0 {
		seed = 0
	}
	return &Ledger{Seed: seed, Safe: seed, Granted: seed, Entries: []Entry{}}
}

// Snapshot is the read model returned after every operation.
type Snapshot struct {
	TotalStars       int `json:"total_stars"`
	TotalStarsEarned int `json:"total_stars_earned"`
	TotalStarsUsed   int `json:"total_stars_used"`
	AvailableStars   int `json:"available_stars"`
	StarsInSafe      int `json:"stars_in_safe"`
	StarsMovedToSafe int `json:"stars_moved_to_safe"`
	StarsSpent       int `json:"stars_spent"`
	ChallengeStars   int `json:"challenge_stars"`
	SafeSeed         int `json:"safe_seed"`
}

// Clone returns a deep copy.
func (l *Ledger) Clone() *Ledger {
	c := *l
	c.Entries = make([]Entry, len(l.Entries))
	copy(c.Entries, l.Entries)
	return &c
}

// Earned is the sum of all recorded task stars.
func (l *Ledger) Earned() int {
	n := 0
	for _, e := range l.Entries {
		n += e.Stars
	}
	return n
}

// TaskStarsAvailable is the only place the task pool is computed.
func (l *Ledger) TaskStarsAvailable() int {
	return taskPool(l.Earned(), l.ReturnedFromSafe, l.UsedForRewards, l.MovedToSafe)
}

func taskPool(earned, returned, used, moved int) int {
	return max(0, earned+returned-used-moved)
}

// Snapshot reports the current balances.
func (l *Ledger) Snapshot() Snapshot {
	return Snapshot{
		TotalStars:       l.TaskStarsAvailable(),
		TotalStarsEarned: l.Earned(),
		TotalStarsUsed:   l.UsedForRewards,
		AvailableStars:   l.Available,
		StarsInSafe:      l.Safe,
		StarsMovedToSafe: l.MovedToSafe,
		StarsSpent:       l.Spent,
		ChallengeStars:   l.Awarded,
		SafeSeed:         l.Seed,
	}
}

// Stars returns the recorded value for (taskID, day), zero when absent.
func (l *Ledger) Stars(taskID string, day Day) int {
	if i := l.find(taskID, day); i >= 0 {
		return l.Entries[i].Stars
	}
	return 0
}

func (l *Ledger) find(taskID string, day Day) int {
	for i, e := range l.Entries {
		if e.TaskID == taskID && e.Day == day {
			return i
		}
	}
	return -1
}

// RecordTaskStars sets the stars for (taskID, day). Zero removes the entry.
// Lowering a value is refused when the task pool no longer holds the stars
// being taken away.
func (l *Ledger) RecordTaskStars(taskID string, day Day, stars int) error {
	if taskID == "" {
		return invalid("task id is required")
	}
	if stars < 0 || stars > 2 {
		return invalid("stars must be 0, 1 or 2, got %d", stars)
	}
	day, err := ParseDay(string(day))
	if err != nil {
		return err
	}

	i := l.find(taskID, day)
	old := 0
	if i >= 0 {
		old = l.Entries[i].Stars
	}
	if drop := old - stars; drop > 0 {
		if avail := l.TaskStarsAvailable(); drop > avail {
			return &InsufficientBalanceError{Pool: PoolTask, Required: drop, Available: avail, Reason: ReasonStarsCommitted}
		}
	}

	switch {
	case i >= 0 && stars == 0:
		l.Entries = append(l.Entries[:i], l.Entries[i+1:]...)
	case i >= 0:
		l.Entries[i].Stars = stars
	case stars > 0:
		l.Entries = append(l.Entries, Entry{TaskID: taskID, Day: day, Stars: stars})
	}
	return nil
}

// RemoveTask deletes every entry belonging to taskID.
func (l *Ledger) RemoveTask(taskID string) error {
	drop := 0
	for _, e := range l.Entries {
		if e.TaskID == taskID {
			drop += e.Stars
		}
	}
	if avail := l.TaskStarsAvailable(); drop > avail {
		return &InsufficientBalanceError{Pool: PoolTask, Required: drop, Available: avail, Reason: ReasonStarsCommitted}
	}
	kept := l.Entries[:0]
	for _, e := range l.Entries {
		if e.TaskID != taskID {
			kept = append(kept, e)
		}
	}
	l.Entries = kept
	return nil
}

func positive(amount int) error {
	if amount <= 0 {
		return invalid("amount must be positive, got %d", amount)
	}
	return nil
}

func (l *Ledger) require(pool Pool, amount int) error {
	var have int
	switch pool {
	case PoolTask:
		have = l.TaskStarsAvailable()
	case PoolAvailable:
		have = l.Available
	case PoolSafe:
		have = l.Safe
	default:
		return fmt.Errorf("unknown pool %q", pool)
	}
	if amount > have {
		return &InsufficientBalanceError{Pool: pool, Required: amount, Available: have}
	}
	return nil
}

// TransferTaskStarsToSafe parks task stars in the safe.
func (l *Ledger) TransferTaskStarsToSafe(amount int) error {
	if err := positive(amount); err != nil {
		return err
	}
	if err := l.require(PoolTask, amount); err != nil {
		return err
	}
	l.MovedToSafe += amount
	l.Safe += amount
	return nil
}

// TransferAvailableToSafe parks reward-eligible stars in the safe.
func (l *Ledger) TransferAvailableToSafe(amount int) error {
	if err := positive(amount); err != nil {
		return err
	}
	if err := l.require(PoolAvailable, amount); err != nil {
		return err
	}
	l.Available -= amount
	l.Safe += amount
	return nil
}

// WithdrawFromSafe moves stars from the safe into the available pool.
// Withdrawn stars never flow back into the task pool: the part that came
// from tasks is re-booked as used so TaskStarsAvailable does not change.
func (l *Ledger) WithdrawFromSafe(amount int) error {
	if err := positive(amount); err != nil {
		return err
	}
	if err := l.require(PoolSafe, amount); err != nil {
		return err
	}
	l.Safe -= amount
	l.Available += amount
	k := min(amount, l.MovedToSafe)
	l.MovedToSafe -= k
	l.UsedForRewards += k
	return nil
}

// TransferTaskStarsToAvailable makes task stars spendable on rewards.
func (l *Ledger) TransferTaskStarsToAvailable(amount int) error {
	if err := positive(amount); err != nil {
		return err
	}
	if err := l.require(PoolTask, amount); err != nil {
		return err
	}
	l.UsedForRewards += amount
	l.Available += amount
	return nil
}

// CreditChallengeReward adds a challenge award to the available pool.
func (l *Ledger) CreditChallengeReward(stars int) error {
	if stars < 0 {
		return invalid("award must not be negative, got %d", stars)
	}
	l.Available += stars
	l.Awarded += stars
	return nil
}

// Redeem pays cost stars out of the available pool.
func (l *Ledger) Redeem(rewardID string, cost int) error {
	if cost <= 0 {
		return invalid("reward cost must be positive, got %d", cost)
	}
	if cost > l.Available {
		return &InsufficientStarsError{RewardID: rewardID, Required: cost, Available: l.Available}
	}
	l.Available -= cost
	l.Spent += cost
	return nil
}

// ResetWeek clears the week's task stars and available stars. The safe is
// left alone.
func (l *Ledger) ResetWeek() {
	l.Retired += l.Earned()
	l.Forfeited += l.TaskStarsAvailable() + l.Available
	l.Entries = []Entry{}
	l.UsedForRewards = 0
	l.MovedToSafe = 0
	l.ReturnedFromSafe = 0
	l.Available = 0
}

// ResetSafe returns everything above the seed to the task pool and puts
// the safe back to the seed. A safe below the seed is topped up.
func (l *Ledger) ResetSafe() {
	excess := max(0, l.Safe-l.Seed)
	l.ReturnedFromSafe += excess - l.MovedToSafe
	l.MovedToSafe = 0
	if l.Safe < l.Seed {
		l.Granted += l.Seed - l.Safe
	}
	l.Safe = l.Seed
}

// ResetAll wipes every pool and counter and reseeds the safe.
func (l *Ledger) ResetAll() {
	*l = *New(l.Seed)
}

// Audit checks that no pool is negative and that every star is accounted
// for: stars that came in (earned, retired, awarded, granted) equal stars
// held (task, available, safe) plus stars gone (spent, forfeited).
func (l *Ledger) Audit() error {
	earned := l.Earned()
	raw := earned + l.ReturnedFromSafe - l.UsedForRewards - l.MovedToSafe
	switch {
	case raw < 0:
		return fmt.Errorf("task pool is negative: %d", raw)
	case l.Available < 0:
		return fmt.Errorf("available pool is negative: %d", l.Available)
	case l.Safe < 0:
		return fmt.Errorf("safe is negative: %d", l.Safe)
	case l.MovedToSafe < 0:
		return fmt.Errorf("moved_to_safe is negative: %d", l.MovedToSafe)
	}
	for _, e := range l.Entries {
		if e.Stars < 0 || e.Stars > 2 {
			return fmt.Errorf("entry %s/%s holds %d stars", e.TaskID, e.Day, e.Stars)
		}
	}

	in := earned + l.Retired + l.Awarded + l.Granted
	out := raw + l.Available + l.Safe + l.Spent + l.Forfeited
	if in != out {
		return fmt.Errorf("conservation violated: %d stars in, %d accounted for", in, out)
	}
	return nil
}
