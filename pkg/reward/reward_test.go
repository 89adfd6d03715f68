package reward

import (
	"errors"
	"testing"
	"time"

	"weekly-stars/pkg/ledger"
)

func catalog(t *testing.T) Catalog {
	t.Helper()
	var c Catalog
	for _, tc := range []struct {
		name string
		cost int
	}{
		{"Kino", 10},
		{"Eis essen", 5},
		{"Extra Spielzeit", 3},
	} {
		r, err := New(tc.name, tc.cost)
		if err != nil {
			t.Fatalf("new reward: %v", err)
		}
		c = append(c, r)
	}
	return c
}

func TestNewValidation(t *testing.T) {
	if _, err := New("  ", 3); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Errorf("blank name: %v", err)
	}
	if _, err := New("Kino", 0); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Errorf("zero cost: %v", err)
	}
}

func TestClaim(t *testing.T) {
	c := catalog(t)
	l := ledger.New(ledger.DefaultSeed)
	_ = l.CreditChallengeReward(6)
	now := time.Now()

	r, err := c.Claim(l, c[1].ID, now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !r.IsClaimed || r.ClaimedAt == nil || !c[1].IsClaimed {
		t.Errorf("reward not marked claimed: %+v", c[1])
	}
	if l.Available != 1 || l.Spent != 5 {
		t.Errorf("available=%d spent=%d", l.Available, l.Spent)
	}

	if _, err := c.Claim(l, c[1].ID, now); !errors.Is(err, ledger.ErrAlreadyClaimed) {
		t.Errorf("second claim: %v", err)
	}
}

func TestClaimInsufficient(t *testing.T) {
	c := catalog(t)
	l := ledger.New(ledger.DefaultSeed)

	_, err := c.Claim(l, c[1].ID, time.Now())
	var ise *ledger.InsufficientStarsError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InsufficientStarsError, got %v", err)
	}
	if ise.Required != 5 || ise.Available != 0 {
		t.Errorf("required=%d available=%d", ise.Required, ise.Available)
	}
	if c[1].IsClaimed {
		t.Error("reward claimed despite failure")
	}
}

func TestClaimUnknown(t *testing.T) {
	c := catalog(t)
	if _, err := c.Claim(ledger.New(3), "nope", time.Now()); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestRemoveAndUnclaim(t *testing.T) {
	c := catalog(t)
	c[0].IsClaimed = true
	c.Unclaim()
	if c[0].IsClaimed {
		t.Error("unclaim left flag set")
	}

	c[2].IsClaimed = true
	if got := c.WithoutClaimed(); len(got) != 2 {
		t.Errorf("WithoutClaimed kept %d", len(got))
	}

	c, err := c.Remove(c[0].ID)
	if err != nil || len(c) != 2 {
		t.Fatalf("remove: %v (len %d)", err, len(c))
	}
	if _, err := c.Remove("nope"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("remove unknown: %v", err)
	}
}

func TestSearch(t *testing.T) {
	c := catalog(t)
	got := c.Search("eis")
	if len(got) == 0 || got[0].Name != "Eis essen" {
		t.Fatalf("search eis = %+v", got)
	}
	if len(c.Search("")) != 3 {
		t.Error("empty query should return everything")
	}
	if len(c.Search("zzz")) != 0 {
		t.Error("unexpected match for zzz")
	}
}
