package challenge

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"weekly-stars/pkg/ledger"
)

// Tier awards Stars for a score of at least Threshold percent.
type Tier struct {
	Threshold int
	Stars     int
}

// Tiers is a star tier table, kept sorted by threshold, highest first.
// On the wire it is an object of threshold to stars: {"90":3,"80":2}.
type Tiers []Tier

// DefaultTiers is used for every subject until configured otherwise.
func DefaultTiers() Tiers {
	return Tiers{{90, 3}, {80, 2}, {70, 1}}
}

// Award returns the stars of the highest threshold not above percentage,
// or zero when no threshold is met.
func (t Tiers) Award(percentage float64) int {
	for _, tier := range t.sorted() {
		if percentage >= float64(tier.Threshold) {
			return tier.Stars
		}
	}
	return 0
}

func (t Tiers) sorted() Tiers {
	if sort.SliceIsSorted(t, func(i, j int) bool { return t[i].Threshold > t[j].Threshold }) {
		return t
	}
	s := append(Tiers(nil), t...)
	sort.Slice(s, func(i, j int) bool { return s[i].Threshold > s[j].Threshold })
	return s
}

// Validate checks thresholds are percentages, stars are not negative and no
// threshold appears twice.
func (t Tiers) Validate() error {
	seen := map[int]bool{}
	for _, tier := range t {
		if tier.Threshold < 0 || tier.Threshold > 100 {
			return fmt.Errorf("%w: tier threshold %d outside 0..100", ledger.ErrInvalidInput, tier.Threshold)
		}
		if tier.Stars < 0 {
			return fmt.Errorf("%w: tier %d awards negative stars", ledger.ErrInvalidInput, tier.Threshold)
		}
		if seen[tier.Threshold] {
			return fmt.Errorf("%w: duplicate tier threshold %d", ledger.ErrInvalidInput, tier.Threshold)
		}
		seen[tier.Threshold] = true
	}
	return nil
}

func (t Tiers) MarshalJSON() ([]byte, error) {
	m := make(map[string]int, len(t))
	for _, tier := range t {
		m[strconv.Itoa(tier.Threshold)] = tier.Stars
	}
	return json.Marshal(m)
}

func (t *Tiers) UnmarshalJSON(data []byte) error {
	var m map[string]int
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	out := make(Tiers, 0, len(m))
	for k, v := range m {
		threshold, err := strconv.Atoi(k)
		if err != nil {
			return fmt.Errorf("%w: tier threshold %q is not a number", ledger.ErrInvalidInput, k)
		}
		out = append(out, Tier{Threshold: threshold, Stars: v})
	}
	*t = out.sorted()
	return nil
}
