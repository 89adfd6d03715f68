package ledger

import (
	"errors"
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"time"
)

func seeded(t *testing.T, taskStars int) *Ledger {
	t.Helper()
	l := New(DefaultSeed)
	for i := 0; taskStars > 0; i++ {
		n := min(2, taskStars)
		if err := l.RecordTaskStars("t1", Days[i%7], n); err != nil {
			t.Fatalf("record: %v", err)
		}
		taskStars -= n
		if i == 6 && taskStars > 0 {
			t.Fatalf("seeded supports at most 14 stars")
		}
	}
	return l
}

func TestNewLedger(t *testing.T) {
	l := New(DefaultSeed)
	s := l.Snapshot()
	if s.StarsInSafe != 3 || s.TotalStars != 0 || s.AvailableStars != 0 {
		t.Fatalf("unexpected fresh snapshot: %+v", s)
	}
	if err := l.Audit(); err != nil {
		t.Fatalf("fresh ledger audit: %v", err)
	}
}

func TestTransferTaskStarsToSafe(t *testing.T) {
	l := seeded(t, 5)
	if err := l.TransferTaskStarsToSafe(3); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := l.TaskStarsAvailable(); got != 2 {
		t.Errorf("task stars = %d, want 2", got)
	}
	if l.Safe != 6 {
		t.Errorf("safe = %d, want 6", l.Safe)
	}
}

func TestRedeemMoreThanAvailable(t *testing.T) {
	l := New(DefaultSeed)
	before := l.Clone()
	err := l.Redeem("r1", 5)
	var ise *InsufficientStarsError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InsufficientStarsError, got %v", err)
	}
	if ise.Required != 5 || ise.Available != 0 {
		t.Errorf("got required=%d available=%d", ise.Required, ise.Available)
	}
	if !errors.Is(err, ErrInsufficientStars) {
		t.Errorf("errors.Is(err, ErrInsufficientStars) = false")
	}
	if !reflect.DeepEqual(before, l) {
		t.Errorf("ledger mutated by failed redeem")
	}
}

func TestWithdrawFromSafe(t *testing.T) {
	l := seeded(t, 3)
	if err := l.TransferTaskStarsToSafe(3); err != nil {
		t.Fatal(err)
	}
	if l.Safe != 6 {
		t.Fatalf("safe = %d, want 6", l.Safe)
	}
	if err := l.WithdrawFromSafe(4); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if l.Safe != 2 || l.Available != 4 {
		t.Errorf("safe=%d available=%d, want 2 and 4", l.Safe, l.Available)
	}
	if l.MovedToSafe != 0 {
		t.Errorf("moved_to_safe = %d, want 0", l.MovedToSafe)
	}
	if got := l.TaskStarsAvailable(); got != 0 {
		t.Errorf("withdraw changed task pool to %d", got)
	}
	if err := l.Audit(); err != nil {
		t.Errorf("audit: %v", err)
	}
}

func TestResetWeekKeepsSafe(t *testing.T) {
	l := seeded(t, 14)
	if err := l.TransferTaskStarsToSafe(3); err != nil {
		t.Fatal(err)
	}
	if err := l.TransferTaskStarsToAvailable(1); err != nil {
		t.Fatal(err)
	}
	if err := l.CreditChallengeReward(3); err != nil {
		t.Fatal(err)
	}
	if l.Available != 4 || l.Safe != 6 {
		t.Fatalf("setup: available=%d safe=%d", l.Available, l.Safe)
	}

	l.ResetWeek()
	s := l.Snapshot()
	if s.TotalStarsEarned != 0 || s.AvailableStars != 0 || s.TotalStars != 0 {
		t.Errorf("week not cleared: %+v", s)
	}
	if s.StarsInSafe != 6 {
		t.Errorf("safe = %d, want 6", s.StarsInSafe)
	}
	if l.UsedForRewards != 0 || l.MovedToSafe != 0 || len(l.Entries) != 0 {
		t.Errorf("counters not cleared: %+v", l)
	}
	if err := l.Audit(); err != nil {
		t.Errorf("audit: %v", err)
	}
}

func TestResetSafeReturnsExcess(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*Ledger) error
	}{
		{"from tasks", func(l *Ledger) error {
			return l.TransferTaskStarsToSafe(5)
		}},
		{"from available", func(l *Ledger) error {
			if err := l.CreditChallengeReward(5); err != nil {
				return err
			}
			return l.TransferAvailableToSafe(5)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := seeded(t, 5)
			if err := tt.setup(l); err != nil {
				t.Fatal(err)
			}
			if l.Safe != 8 {
				t.Fatalf("safe = %d, want 8", l.Safe)
			}
			before := l.TaskStarsAvailable()
			l.ResetSafe()
			if l.Safe != 3 {
				t.Errorf("safe = %d, want 3", l.Safe)
			}
			if got := l.TaskStarsAvailable() - before; got != 5 {
				t.Errorf("task pool grew by %d, want 5", got)
			}
			if l.MovedToSafe != 0 {
				t.Errorf("moved_to_safe = %d, want 0", l.MovedToSafe)
			}
			if err := l.Audit(); err != nil {
				t.Errorf("audit: %v", err)
			}
		})
	}
}

func TestResetSafeBelowSeed(t *testing.T) {
	l := New(DefaultSeed)
	if err := l.WithdrawFromSafe(2); err != nil {
		t.Fatal(err)
	}
	l.ResetSafe()
	if l.Safe != 3 || l.Available != 2 || l.TaskStarsAvailable() != 0 {
		t.Errorf("got safe=%d available=%d task=%d", l.Safe, l.Available, l.TaskStarsAvailable())
	}
	if err := l.Audit(); err != nil {
		t.Errorf("audit: %v", err)
	}
}

func TestResetAll(t *testing.T) {
	l := seeded(t, 6)
	_ = l.TransferTaskStarsToSafe(2)
	_ = l.CreditChallengeReward(4)
	_ = l.Redeem("r", 3)
	l.ResetAll()
	if !reflect.DeepEqual(l, New(DefaultSeed)) {
		t.Errorf("reset all left state behind: %+v", l)
	}
}

func TestRecordTaskStarsIdempotent(t *testing.T) {
	l := New(DefaultSeed)
	for i := 0; i < 2; i++ {
		if err := l.RecordTaskStars("t", "monday", 2); err != nil {
			t.Fatal(err)
		}
	}
	if l.Earned() != 2 || len(l.Entries) != 1 {
		t.Errorf("earned=%d entries=%d", l.Earned(), len(l.Entries))
	}
	if err := l.RecordTaskStars("t", "mon", 0); err != nil {
		t.Fatal(err)
	}
	if len(l.Entries) != 0 {
		t.Errorf("zero should remove the entry, have %v", l.Entries)
	}
}

func TestRecordTaskStarsValidation(t *testing.T) {
	l := New(DefaultSeed)
	for _, tc := range []struct {
		task  string
		day   Day
		stars int
	}{
		{"t", Monday, 3},
		{"t", Monday, -1},
		{"t", "someday", 1},
		{"", Monday, 1},
	} {
		err := l.RecordTaskStars(tc.task, tc.day, tc.stars)
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("RecordTaskStars(%q, %q, %d) = %v, want ErrInvalidInput", tc.task, tc.day, tc.stars, err)
		}
	}
}

func TestLoweringCommittedStarsRejected(t *testing.T) {
	l := seeded(t, 2)
	if err := l.TransferTaskStarsToSafe(2); err != nil {
		t.Fatal(err)
	}
	before := l.Clone()
	err := l.RecordTaskStars("t1", Monday, 0)
	var ibe *InsufficientBalanceError
	if !errors.As(err, &ibe) || ibe.Pool != PoolTask || ibe.Reason != ReasonStarsCommitted {
		t.Fatalf("expected task pool InsufficientBalanceError, got %v", err)
	}
	if !strings.Contains(err.Error(), "already moved") {
		t.Errorf("message does not explain the refusal: %q", err)
	}
	if !reflect.DeepEqual(before, l) {
		t.Errorf("ledger mutated")
	}
	if err := l.RemoveTask("t1"); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("RemoveTask = %v, want ErrInsufficientBalance", err)
	}
}

func TestTransferAtomicity(t *testing.T) {
	ops := map[string]func(*Ledger) error{
		"task to safe":      func(l *Ledger) error { return l.TransferTaskStarsToSafe(3) },
		"available to safe": func(l *Ledger) error { return l.TransferAvailableToSafe(2) },
		"withdraw":          func(l *Ledger) error { return l.WithdrawFromSafe(4) },
		"task to available": func(l *Ledger) error { return l.TransferTaskStarsToAvailable(3) },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			l := seeded(t, 2)
			_ = l.CreditChallengeReward(1)
			before := l.Clone()
			err := op(l)
			if !errors.Is(err, ErrInsufficientBalance) {
				t.Fatalf("expected ErrInsufficientBalance, got %v", err)
			}
			if !reflect.DeepEqual(before, l) {
				t.Errorf("ledger mutated by failed transfer")
			}
		})
	}
}

func TestNonPositiveAmounts(t *testing.T) {
	l := seeded(t, 4)
	for _, n := range []int{0, -2} {
		for _, err := range []error{
			l.TransferTaskStarsToSafe(n),
			l.TransferAvailableToSafe(n),
			l.WithdrawFromSafe(n),
			l.TransferTaskStarsToAvailable(n),
		} {
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("amount %d: got %v, want ErrInvalidInput", n, err)
			}
		}
	}
	if err := l.CreditChallengeReward(-1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative credit: %v", err)
	}
	if err := l.CreditChallengeReward(0); err != nil {
		t.Errorf("zero credit should be accepted: %v", err)
	}
}

// TestConservation drives random operation sequences and checks the
// balance identity and non-negativity after every step.
func TestConservation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tasks := []string{"a", "b", "c"}
	for run := 0; run < 200; run++ {
		l := New(DefaultSeed)
		awards, spent := 0, 0
		for step := 0; step < 60; step++ {
			n := rng.Intn(5)
			switch rng.Intn(8) {
			case 0, 1:
				_ = l.RecordTaskStars(tasks[rng.Intn(3)], Days[rng.Intn(7)], rng.Intn(3))
			case 2:
				_ = l.TransferTaskStarsToSafe(n)
			case 3:
				_ = l.TransferAvailableToSafe(n)
			case 4:
				_ = l.WithdrawFromSafe(n)
			case 5:
				_ = l.TransferTaskStarsToAvailable(n)
			case 6:
				if l.CreditChallengeReward(n) == nil {
					awards += n
				}
			case 7:
				if l.Redeem("r", n+1) == nil {
					spent += n + 1
				}
			}
			s := l.Snapshot()
			if s.TotalStars < 0 || s.AvailableStars < 0 || s.StarsInSafe < 0 {
				t.Fatalf("run %d step %d: negative balance %+v", run, step, s)
			}
			lhs := s.TotalStars + s.AvailableStars + s.StarsInSafe + spent
			rhs := s.TotalStarsEarned + awards + DefaultSeed
			if lhs != rhs {
				t.Fatalf("run %d step %d: held %d != earned %d (%+v)", run, step, lhs, rhs, l)
			}
			if err := l.Audit(); err != nil {
				t.Fatalf("run %d step %d: %v", run, step, err)
			}
		}
		l.ResetSafe()
		l.ResetWeek()
		if err := l.Audit(); err != nil {
			t.Fatalf("run %d after resets: %v", run, err)
		}
	}
}

func TestAuditDetectsTampering(t *testing.T) {
	l := seeded(t, 4)
	l.Available += 2
	if err := l.Audit(); err == nil {
		t.Fatal("expected audit to fail on minted stars")
	}
}

func TestParseDay(t *testing.T) {
	for in, want := range map[string]Day{"Monday": Monday, "tue": Tuesday, " SUN ": Sunday} {
		got, err := ParseDay(in)
		if err != nil || got != want {
			t.Errorf("ParseDay(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseDay("mo"); err == nil {
		t.Error("expected error for two-letter day")
	}
}

func TestWeekStart(t *testing.T) {
	sun := time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC)
	want := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	if got := WeekStart(sun); !got.Equal(want) {
		t.Errorf("WeekStart(%v) = %v, want %v", sun, got, want)
	}
	if got := WeekStart(want); !got.Equal(want) {
		t.Errorf("WeekStart(monday) = %v", got)
	}
}
