package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"weekly-stars/pkg/ledger"
)

func TestTierAward(t *testing.T) {
	tiers := DefaultTiers()
	tests := []struct {
		pct  float64
		want int
	}{
		{100, 3},
		{90, 3},
		{85, 2},
		{80, 2},
		{79.9, 1},
		{70, 1},
		{69.99, 0},
		{0, 0},
	}
	for _, tt := range tests {
		if got := tiers.Award(tt.pct); got != tt.want {
			t.Errorf("Award(%v) = %d, want %d", tt.pct, got, tt.want)
		}
	}
}

func TestTierAwardUnsorted(t *testing.T) {
	tiers := Tiers{{50, 1}, {100, 5}, {75, 2}}
	if got := tiers.Award(80); got != 2 {
		t.Errorf("Award(80) = %d, want 2", got)
	}
}

func TestTiersJSON(t *testing.T) {
	var tiers Tiers
	if err := json.Unmarshal([]byte(`{"70":1,"90":3,"80":2}`), &tiers); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tiers[0].Threshold != 90 || tiers[2].Threshold != 70 {
		t.Errorf("tiers not sorted: %+v", tiers)
	}
	out, err := json.Marshal(tiers)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"70":1,"80":2,"90":3}` {
		t.Errorf("marshal = %s", out)
	}
	if err := json.Unmarshal([]byte(`{"abc":1}`), &tiers); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Errorf("bad key: %v", err)
	}
}

func TestTiersValidate(t *testing.T) {
	for _, bad := range []Tiers{{{101, 1}}, {{-1, 1}}, {{50, -1}}, {{50, 1}, {50, 2}}} {
		if err := bad.Validate(); !errors.Is(err, ledger.ErrInvalidInput) {
			t.Errorf("Validate(%+v) = %v", bad, err)
		}
	}
	if err := DefaultTiers().Validate(); err != nil {
		t.Errorf("default tiers invalid: %v", err)
	}
}

func problems(n int) []Problem {
	ps := make([]Problem, n)
	for i := range ps {
		ps[i] = Problem{Question: "q", CorrectAnswer: strconv.Itoa(i), Type: "addition"}
	}
	return ps
}

// An 85% score against the default tiers earns two stars.
func TestMarkEightyFivePercent(t *testing.T) {
	c := New(Math, 2, problems(20))
	answers := map[int]string{}
	for i := 0; i < 17; i++ {
		answers[i] = strconv.Itoa(i)
	}
	answers[17] = "wrong"

	r, err := c.Mark(answers, DefaultTiers(), time.Now())
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if r.Correct != 17 || r.Total != 20 || r.Percentage != 85 {
		t.Errorf("result = %+v", r)
	}
	if c.StarsEarned != 2 || !c.Completed || c.CompletedAt == nil {
		t.Errorf("challenge = %+v", c)
	}
	if c.Problems[17].IsCorrect == nil || *c.Problems[17].IsCorrect {
		t.Error("problem 17 should be marked wrong")
	}
	if c.Problems[19].UserAnswer != nil {
		t.Error("unanswered problem has a user answer")
	}

	if _, err := c.Mark(answers, DefaultTiers(), time.Now()); !errors.Is(err, ledger.ErrAlreadySubmitted) {
		t.Errorf("second grade: %v", err)
	}
}

func TestScoreNumericAnswers(t *testing.T) {
	ps := []Problem{{CorrectAnswer: "12"}, {CorrectAnswer: "Haus"}}
	r := Score(ps, map[int]string{0: " 012", 1: "haus"})
	if r.Correct != 1 || r.Percentage != 50 {
		t.Errorf("result = %+v", r)
	}
}

func TestSettingsValidate(t *testing.T) {
	for _, s := range Subjects {
		if err := DefaultSettings(s).Validate(s); err != nil {
			t.Errorf("default %s settings invalid: %v", s, err)
		}
	}
	bad := DefaultSettings(Math)
	bad.ProblemCount = 0
	if err := bad.Validate(Math); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Errorf("zero problems: %v", err)
	}
	bad = DefaultSettings(Math)
	bad.MaxNumber = 5
	if err := bad.Validate(Math); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Errorf("max_number 5: %v", err)
	}
}

func TestStatisticsRecord(t *testing.T) {
	var s Statistics
	c := New(German, 3, problems(4))
	r, _ := c.Mark(map[int]string{0: "0", 1: "1", 2: "x"}, DefaultTiers(), time.Now())
	s.Record(c, r)

	c2 := New(German, 2, problems(4))
	r2, _ := c2.Mark(map[int]string{0: "0", 1: "1", 2: "2", 3: "3"}, DefaultTiers(), time.Now())
	s.Record(c2, r2)

	if s.TotalAttempts != 2 || s.Grade2Attempts != 1 || s.Grade3Attempts != 1 {
		t.Errorf("attempts = %+v", s)
	}
	if s.TotalCorrect != 6 || s.TotalWrong != 2 {
		t.Errorf("correct=%d wrong=%d", s.TotalCorrect, s.TotalWrong)
	}
	if s.AverageScore != 75 || s.BestScore != 100 {
		t.Errorf("average=%v best=%v", s.AverageScore, s.BestScore)
	}
	if s.TotalStarsEarned != 3 {
		t.Errorf("stars = %d, want 3", s.TotalStarsEarned)
	}
	if ts := s.ProblemTypeStats["addition"]; ts == nil || ts.Correct != 6 || ts.Wrong != 2 {
		t.Errorf("type stats = %+v", ts)
	}
}

func TestSimpleGenerator(t *testing.T) {
	g := NewSimpleGenerator(7)
	ctx := context.Background()
	for _, subj := range Subjects {
		for _, grade := range []int{2, 3} {
			settings := DefaultSettings(subj)
			ps, err := g.Generate(ctx, subj, grade, settings)
			if err != nil {
				t.Fatalf("%s grade %d: %v", subj, grade, err)
			}
			if len(ps) != settings.ProblemCount {
				t.Errorf("%s: got %d problems, want %d", subj, len(ps), settings.ProblemCount)
			}
			for i, p := range ps {
				if p.Question == "" || p.CorrectAnswer == "" {
					t.Fatalf("%s problem %d incomplete: %+v", subj, i, p)
				}
				if len(p.Options) > 0 && !contains(p.Options, p.CorrectAnswer) {
					t.Errorf("%s problem %d: options %v miss answer %q", subj, i, p.Options, p.CorrectAnswer)
				}
			}
		}
	}
	if _, err := g.Generate(ctx, Math, 4, DefaultSettings(Math)); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Errorf("grade 4: %v", err)
	}
}

func TestMathProblemsAreSolvable(t *testing.T) {
	g := NewSimpleGenerator(1)
	ps, err := g.Generate(context.Background(), Math, 2, DefaultSettings(Math))
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range ps {
		n, err := strconv.Atoi(p.CorrectAnswer)
		if err != nil || n < 0 {
			t.Errorf("%q has answer %q", p.Question, p.CorrectAnswer)
		}
	}
}

func TestParseMathProblems(t *testing.T) {
	reply := "Here you go:\n[{\"question\": \"Was ist 2 + 2?\", \"answer\": 4}, {\"question\": \"Was ist 3 × 3?\", \"answer\": 9}]"
	ps, err := parseMathProblems(reply, 2)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ps[1].CorrectAnswer != "9" {
		t.Errorf("answer = %q", ps[1].CorrectAnswer)
	}
	if _, err := parseMathProblems(reply, 3); err == nil {
		t.Error("expected error for short reply")
	}
	if _, err := parseMathProblems("no json", 1); err == nil {
		t.Error("expected error without array")
	}
}

type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, Subject, int, Settings) ([]Problem, error) {
	return nil, errors.New("boom")
}

func TestLLMGeneratorDelegatesLanguages(t *testing.T) {
	fallback := NewSimpleGenerator(3)
	g := NewLLMGenerator("test-key", "", fallback, nil)
	ps, err := g.Generate(context.Background(), German, 2, DefaultSettings(German))
	if err != nil || len(ps) != 20 {
		t.Fatalf("german via fallback: %v (%d problems)", err, len(ps))
	}

	g = NewLLMGenerator("test-key", "", failingGenerator{}, nil)
	if _, err := g.Generate(context.Background(), English, 2, DefaultSettings(English)); err == nil {
		t.Error("expected fallback error to surface")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
