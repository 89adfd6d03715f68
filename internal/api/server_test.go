package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"weekly-stars/internal/backup"
	"weekly-stars/pkg/challenge"
	"weekly-stars/pkg/journal"
	"weekly-stars/pkg/ledger"
	"weekly-stars/pkg/task"
	"weekly-stars/pkg/tracker"
)

type fixture struct {
	t   *testing.T
	srv *Server
	svc *tracker.Service
	bus *journal.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := journal.NewBus(journal.NewMemStore())
	svc := tracker.NewService(tracker.NewMemStore(ledger.DefaultSeed), challenge.NewMemStore(),
		challenge.NewSimpleGenerator(7), bus, log, tracker.Options{})
	srv := New(svc, bus, &backup.DirTarget{Dir: t.TempDir()}, log, Options{CORSOrigin: "*", Backend: "memory", StaticDir: t.TempDir()})
	return &fixture{t: t, srv: srv, svc: svc, bus: bus}
}

// do sends a request and decodes the JSON response into out (if non-nil).
func (f *fixture) do(method, path, body string, out any) int {
	f.t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			f.t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

func (f *fixture) task(name string) task.Task {
	f.t.Helper()
	var tk task.Task
	if code := f.do("POST", "/api/tasks", `{"name":"`+name+`"}`, &tk); code != 201 {
		f.t.Fatalf("create task: %d", code)
	}
	return tk
}

func TestProgressFlow(t *testing.T) {
	f := newFixture(t)
	tk := f.task("Blumen gießen")

	var snap ledger.Snapshot
	if code := f.do("POST", "/api/stars/"+tk.ID+"/monday?stars=2", "", &snap); code != 200 {
		t.Fatalf("record: %d", code)
	}
	f.do("POST", "/api/stars/"+tk.ID+"/Tue", `{"stars":2}`, &snap)
	f.do("POST", "/api/stars/"+tk.ID+"/wednesday?stars=1", "", &snap)
	if snap.TotalStars != 5 || snap.TotalStarsEarned != 5 {
		t.Fatalf("after recording: %+v", snap)
	}

	if code := f.do("POST", "/api/progress/add-to-safe?stars=3", "", &snap); code != 200 {
		t.Fatalf("add to safe: %d", code)
	}
	if snap.TotalStars != 2 || snap.StarsInSafe != 6 {
		t.Errorf("after deposit: %+v", snap)
	}
	f.do("POST", "/api/progress/withdraw-from-safe", `{"stars":4}`, &snap)
	if snap.TotalStars != 2 || snap.StarsInSafe != 2 || snap.AvailableStars != 4 {
		t.Errorf("withdraw: %+v", snap)
	}
	f.do("POST", "/api/progress/move-reward-to-safe?stars=1", "", &snap)
	f.do("POST", "/api/progress/move-to-available?stars=2", "", &snap)
	if snap.TotalStars != 0 || snap.AvailableStars != 5 || snap.StarsInSafe != 3 {
		t.Errorf("moves: %+v", snap)
	}

	var audit map[string]any
	f.do("GET", "/api/progress/audit", "", &audit)
	if audit["ok"] != true {
		t.Errorf("audit: %v", audit)
	}

	f.do("POST", "/api/progress/reset-safe", "", &snap)
	f.do("POST", "/api/progress/reset", "", &snap)
	if snap.TotalStars != 0 || snap.AvailableStars != 0 || snap.StarsInSafe != 3 {
		t.Errorf("after resets: %+v", snap)
	}
}

func TestErrorMapping(t *testing.T) {
	f := newFixture(t)
	tk := f.task("Hund füttern")
	f.do("POST", "/api/stars/"+tk.ID+"/fri?stars=1", "", nil)

	var body errorBody
	if code := f.do("POST", "/api/progress/add-to-safe?stars=5", "", &body); code != 400 {
		t.Errorf("overdraw status = %d", code)
	}
	if body.Kind != "insufficient_balance" || body.Pool != "task" || *body.Required != 5 || *body.Available != 1 {
		t.Errorf("overdraw body = %+v", body)
	}

	tests := []struct {
		method, path, body string
		status             int
		kind               string
	}{
		{"POST", "/api/progress/add-to-safe?stars=0", "", 400, "invalid_input"},
		{"POST", "/api/progress/add-to-safe?stars=x", "", 400, "invalid_input"},
		{"POST", "/api/progress/add-to-safe", "", 400, "invalid_input"},
		{"POST", "/api/stars/" + tk.ID + "/fri?stars=3", "", 400, "invalid_input"},
		{"POST", "/api/stars/" + tk.ID + "/someday?stars=1", "", 400, "invalid_input"},
		{"POST", "/api/stars/nope/fri?stars=1", "", 404, "not_found"},
		{"POST", "/api/rewards/nope/claim", "", 404, "not_found"},
		{"DELETE", "/api/tasks/nope", "", 404, "not_found"},
		{"POST", "/api/math/challenge/5", "", 400, "invalid_input"},
		{"POST", "/api/math/challenge/nope/submit", `{"answers":{}}`, 404, "not_found"},
	}
	for _, tt := range tests {
		var got errorBody
		if code := f.do(tt.method, tt.path, tt.body, &got); code != tt.status || got.Kind != tt.kind {
			t.Errorf("%s %s = %d %q, want %d %q", tt.method, tt.path, code, got.Kind, tt.status, tt.kind)
		}
	}
}

func TestLoweringCommittedStarsExplained(t *testing.T) {
	f := newFixture(t)
	tk := f.task("Blumen gießen")
	f.do("POST", "/api/stars/"+tk.ID+"/mon?stars=2", "", nil)
	if code := f.do("POST", "/api/progress/add-to-safe?stars=2", "", nil); code != 200 {
		t.Fatalf("deposit = %d", code)
	}

	var body errorBody
	if code := f.do("POST", "/api/stars/"+tk.ID+"/mon?stars=0", "", &body); code != 400 {
		t.Fatalf("lowering status = %d", code)
	}
	if body.Kind != "insufficient_balance" || body.Pool != "task" || body.Reason != ledger.ReasonStarsCommitted {
		t.Errorf("lowering body = %+v", body)
	}
	if !strings.Contains(body.Error, "already moved") {
		t.Errorf("message = %q", body.Error)
	}

	var snap ledger.Snapshot
	f.do("GET", "/api/progress", "", &snap)
	if snap.TotalStarsEarned != 2 || snap.StarsInSafe != 5 {
		t.Errorf("state changed: %+v", snap)
	}
}

func TestRewardClaim(t *testing.T) {
	f := newFixture(t)
	var rw struct {
		ID string `json:"id"`
	}
	if code := f.do("POST", "/api/rewards", `{"name":"Kinoabend","required_stars":5}`, &rw); code != 201 {
		t.Fatalf("create reward: %d", code)
	}

	var body errorBody
	if code := f.do("POST", "/api/rewards/"+rw.ID+"/claim", "", &body); code != 400 {
		t.Fatalf("claim without stars: %d", code)
	}
	if body.Kind != "insufficient_stars" || *body.Required != 5 || *body.Available != 0 || body.RewardID != rw.ID {
		t.Errorf("body = %+v", body)
	}

	tk := f.task("Spülmaschine")
	for _, d := range []string{"mon", "tue", "wed"} {
		f.do("POST", "/api/stars/"+tk.ID+"/"+d+"?stars=2", "", nil)
	}
	f.do("POST", "/api/progress/move-to-available?stars=6", "", nil)

	var snap ledger.Snapshot
	if code := f.do("POST", "/api/rewards/"+rw.ID+"/claim", "", &snap); code != 200 {
		t.Fatalf("claim: %d", code)
	}
	if snap.AvailableStars != 1 {
		t.Errorf("available = %d", snap.AvailableStars)
	}
	if code := f.do("POST", "/api/rewards/"+rw.ID+"/claim", "", &body); code != 409 || body.Kind != "already_claimed" {
		t.Errorf("second claim = %d %q", code, body.Kind)
	}

	var list []map[string]any
	f.do("GET", "/api/rewards?q=Kino", "", &list)
	if len(list) != 1 || list[0]["is_claimed"] != true {
		t.Errorf("search = %v", list)
	}
	if code := f.do("DELETE", "/api/rewards/all", "", &snap); code != 200 || snap.AvailableStars != 1 {
		t.Errorf("delete all = %d %+v", code, snap)
	}
	f.do("GET", "/api/rewards", "", &list)
	if len(list) != 0 {
		t.Errorf("rewards left: %v", list)
	}
}

func TestChallengeRoundTrip(t *testing.T) {
	f := newFixture(t)
	if code := f.do("PUT", "/api/math/settings", `{"problem_count":10}`, nil); code != 200 {
		t.Fatalf("put settings: %d", code)
	}
	var settings challenge.Settings
	f.do("GET", "/api/math/settings", "", &settings)
	if settings.ProblemCount != 10 || settings.MaxNumber != 100 || settings.StarTiers.Award(90) != 3 {
		t.Errorf("settings = %+v", settings)
	}

	var c challenge.Challenge
	if code := f.do("POST", "/api/math/challenge/2", "", &c); code != 201 {
		t.Fatalf("create challenge: %d", code)
	}
	answers := make([]string, len(c.Problems))
	for i, p := range c.Problems {
		answers[i] = p.CorrectAnswer
	}
	answers[0] = "wrong"
	raw, _ := json.Marshal(map[string]any{"answers": answers})

	var wrongSubject errorBody
	if code := f.do("POST", "/api/german/challenge/"+c.ID+"/submit", string(raw), &wrongSubject); code != 404 {
		t.Errorf("wrong subject submit = %d", code)
	}

	var res tracker.SubmitResult
	if code := f.do("POST", "/api/math/challenge/"+c.ID+"/submit", string(raw), &res); code != 200 {
		t.Fatalf("submit: %d", code)
	}
	if res.Correct != 9 || res.Total != 10 || res.StarsEarned != 3 || res.Progress.AvailableStars != 3 {
		t.Errorf("result = %+v", res)
	}
	var body errorBody
	if code := f.do("POST", "/api/math/challenge/"+c.ID+"/submit", string(raw), &body); code != 409 || body.Kind != "already_submitted" {
		t.Errorf("resubmit = %d %q", code, body.Kind)
	}

	var stats challenge.Statistics
	f.do("GET", "/api/math/statistics", "", &stats)
	if stats.TotalAttempts != 1 || stats.TotalStarsEarned != 3 {
		t.Errorf("stats = %+v", stats)
	}
	f.do("POST", "/api/math/statistics/reset", "", &stats)
	if stats.TotalAttempts != 0 {
		t.Errorf("stats after reset = %+v", stats)
	}

	var list []challenge.Challenge
	f.do("GET", "/api/math/challenges", "", &list)
	if len(list) != 1 || !list[0].Completed {
		t.Errorf("challenges = %+v", list)
	}
}

func TestDecodeAnswers(t *testing.T) {
	m, err := decodeAnswers(json.RawMessage(`{"0":"4","2":"9"}`))
	if err != nil || m[0] != "4" || m[2] != "9" || len(m) != 2 {
		t.Errorf("object: %v %v", m, err)
	}
	m, err = decodeAnswers(json.RawMessage(`["a","b"]`))
	if err != nil || m[1] != "b" {
		t.Errorf("list: %v %v", m, err)
	}
	if _, err := decodeAnswers(json.RawMessage(`42`)); err == nil {
		t.Error("number accepted")
	}
}

func TestJournalAndBackup(t *testing.T) {
	f := newFixture(t)
	tk := f.task("Bett machen")
	f.do("POST", "/api/stars/"+tk.ID+"/sat?stars=2", "", nil)

	var events []journal.Event
	f.do("GET", "/api/journal?type=stars.recorded", "", &events)
	if len(events) != 1 || events[0].Source != "api" {
		t.Errorf("events = %+v", events)
	}
	var verify map[string]any
	f.do("GET", "/api/journal/verify", "", &verify)
	if verify["ok"] != true || verify["events"] != float64(2) {
		t.Errorf("verify = %v", verify)
	}

	req := httptest.NewRequest("GET", "/api/backup", nil)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("export: %d", rec.Code)
	}
	exported := rec.Body.String()

	f.do("POST", "/api/progress/reset-all-stars", "", nil)
	var snap ledger.Snapshot
	if code := f.do("POST", "/api/backup/restore", exported, &snap); code != 200 {
		t.Fatalf("restore: %d", code)
	}
	if snap.TotalStars != 2 {
		t.Errorf("restored = %+v", snap)
	}

	var body errorBody
	if code := f.do("POST", "/api/backup/restore", `{"ledger":{"safe":-1}}`, &body); code != 400 {
		t.Errorf("corrupt restore = %d %+v", code, body)
	}
}

func TestJournalStream(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/journal/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	for f.bus.Subscribers() == 0 {
		time.Sleep(time.Millisecond)
	}
	if _, err := f.svc.CreateTask(ctx, "Schuhe putzen"); err != nil {
		t.Fatal(err)
	}

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if line := sc.Text(); strings.HasPrefix(line, "event: ") {
			if line != "event: task.created" {
				t.Errorf("event line = %q", line)
			}
			return
		}
	}
	t.Fatalf("stream ended: %v", sc.Err())
}

func TestJournalStreamFiltersByType(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/journal/stream?type=reward.", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	for f.bus.Subscribers() == 0 {
		time.Sleep(time.Millisecond)
	}
	if _, err := f.svc.CreateTask(ctx, "Tisch decken"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.CreateReward(ctx, "Kino", 10); err != nil {
		t.Fatal(err)
	}

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if line := sc.Text(); strings.HasPrefix(line, "event: ") {
			if line != "event: reward.created" {
				t.Errorf("event line = %q", line)
			}
			return
		}
	}
	t.Fatalf("stream ended: %v", sc.Err())
}

func TestHealthStatusAndCORS(t *testing.T) {
	f := newFixture(t)
	var health map[string]string
	if code := f.do("GET", "/health", "", &health); code != 200 || health["status"] != "ok" {
		t.Errorf("health = %d %v", code, health)
	}
	var status map[string]any
	f.do("GET", "/api/status", "", &status)
	if status["backend"] != "memory" {
		t.Errorf("status = %v", status)
	}

	req := httptest.NewRequest("OPTIONS", "/api/progress", nil)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	if rec.Code != 204 || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight = %d %v", rec.Code, rec.Header())
	}

	var names []string
	if code := f.do("GET", "/api/backups", "", &names); code != 200 || len(names) != 0 {
		t.Errorf("backups = %d %v", code, names)
	}
}
