// Package reward holds the catalog of rewards stars can be spent on.
package reward

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sahilm/fuzzy"

	"weekly-stars/pkg/ledger"
)

// Reward is something a child can claim once in exchange for stars.
type Reward struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	RequiredStars int        `json:"required_stars"`
	IsClaimed     bool       `json:"is_claimed"`
	ClaimedAt     *time.Time `json:"claimed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Catalog is the ordered list of rewards.
type Catalog []Reward

// New validates and builds a reward.
func New(name string, requiredStars int) (Reward, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Reward{}, fmt.Errorf("%w: reward name is required", ledger.ErrInvalidInput)
	}
	if requiredStars <= 0 {
		return Reward{}, fmt.Errorf("%w: required stars must be positive, got %d", ledger.ErrInvalidInput, requiredStars)
	}
	return Reward{
		ID:            uuid.Must(uuid.NewV7()).String(),
		Name:          name,
		RequiredStars: requiredStars,
		CreatedAt:     time.Now().Truncate(time.Microsecond),
	}, nil
}

func (c Catalog) index(id string) int {
	for i := range c {
		if c[i].ID == id {
			return i
		}
	}
	return -1
}

// Get returns the reward with the given id.
func (c Catalog) Get(id string) (*Reward, error) {
	i := c.index(id)
	if i < 0 {
		return nil, fmt.Errorf("reward %s: %w", id, ledger.ErrNotFound)
	}
	return &c[i], nil
}

// Claim pays for the reward out of l and marks it claimed. Nothing changes
// unless every precondition holds.
func (c Catalog) Claim(l *ledger.Ledger, id string, now time.Time) (*Reward, error) {
	r, err := c.Get(id)
	if err != nil {
		return nil, err
	}
	if r.IsClaimed {
		return nil, fmt.Errorf("reward %s: %w", id, ledger.ErrAlreadyClaimed)
	}
	if err := l.Redeem(r.ID, r.RequiredStars); err != nil {
		return nil, err
	}
	r.IsClaimed = true
	r.ClaimedAt = &now
	return r, nil
}

// Remove drops the reward with the given id.
func (c Catalog) Remove(id string) (Catalog, error) {
	i := c.index(id)
	if i < 0 {
		return c, fmt.Errorf("reward %s: %w", id, ledger.ErrNotFound)
	}
	return append(c[:i], c[i+1:]...), nil
}

// Unclaim clears every claimed flag.
func (c Catalog) Unclaim() {
	for i := range c {
		c[i].IsClaimed = false
		c[i].ClaimedAt = nil
	}
}

// WithoutClaimed returns the rewards that have not been claimed.
func (c Catalog) WithoutClaimed() Catalog {
	out := Catalog{}
	for _, r := range c {
		if !r.IsClaimed {
			out = append(out, r)
		}
	}
	return out
}

func (c Catalog) String(i int) string { return c[i].Name }
func (c Catalog) Len() int            { return len(c) }

// Search ranks rewards by fuzzy match of query against their names. An
// empty query returns the catalog unchanged.
func (c Catalog) Search(query string) Catalog {
	query = strings.TrimSpace(query)
	if query == "" {
		return c
	}
	matches := fuzzy.FindFrom(query, c)
	out := make(Catalog, 0, len(matches))
	for _, m := range matches {
		out = append(out, c[m.Index])
	}
	return out
}
