package ledger

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match them with errors.Is; the typed balance errors
// carry the figures needed to render a shortfall message.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientStars   = errors.New("insufficient stars")
	ErrNotFound            = errors.New("not found")
	ErrAlreadyClaimed      = errors.New("reward already claimed")
	ErrAlreadySubmitted    = errors.New("challenge already submitted")
	ErrUnavailable         = errors.New("storage unavailable")
)

// Pool names one of the three star pools.
type Pool string

const (
	PoolTask      Pool = "task"
	PoolAvailable Pool = "available"
	PoolSafe      Pool = "safe"
)

// ReasonStarsCommitted explains a refused star reduction: the stars were
// already moved to the safe, made available or spent.
const ReasonStarsCommitted = "stars_committed"

// InsufficientBalanceError is returned when a transfer, withdrawal or star
// reduction would overdraw a pool. Reason is set when the shortfall comes
// from lowering recorded stars rather than from a transfer.
type InsufficientBalanceError struct {
	Pool      Pool
	Required  int
	Available int
	Reason    string
}

func (e *InsufficientBalanceError) Error() string {
	if e.Reason == ReasonStarsCommitted {
		return fmt.Sprintf("cannot remove %d recorded stars: only %d are still in the task pool, the rest were already moved to the safe, made available or spent",
			e.Required, e.Available)
	}
	return fmt.Sprintf("insufficient %s balance: required %d, available %d", e.Pool, e.Required, e.Available)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// InsufficientStarsError is returned when a reward costs more than the
// available pool holds.
type InsufficientStarsError struct {
	RewardID  string
	Required  int
	Available int
}

func (e *InsufficientStarsError) Error() string {
	return fmt.Sprintf("not enough stars for reward %s: required %d, available %d", e.RewardID, e.Required, e.Available)
}

func (e *InsufficientStarsError) Is(target error) bool {
	return target == ErrInsufficientStars
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
