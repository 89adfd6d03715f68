// Package api exposes the household over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"weekly-stars/internal/backup"
	"weekly-stars/pkg/challenge"
	"weekly-stars/pkg/journal"
	"weekly-stars/pkg/ledger"
	"weekly-stars/pkg/tracker"
)

// Options configures a Server.
type Options struct {
	// CORSOrigin is sent as Access-Control-Allow-Origin. Empty disables CORS.
	CORSOrigin string
	// Backend names the storage backend in /api/status.
	Backend string
	// StaticDir serves the web UI at /. Defaults to $WASM_DIR or ./web.
	StaticDir string
}

// Server is the HTTP API server.
type Server struct {
	svc     *tracker.Service
	journal *journal.Bus
	backups backup.Target
	log     *slog.Logger
	opts    Options
	started time.Time
	mux     *http.ServeMux
	handler http.Handler
}

// New creates a new Server. backups may be nil.
func New(svc *tracker.Service, bus *journal.Bus, backups backup.Target, log *slog.Logger, opts Options) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		svc:     svc,
		journal: bus,
		backups: backups,
		log:     log,
		opts:    opts,
		started: time.Now(),
		mux:     http.NewServeMux(),
	}
	s.routes()
	s.handler = s.logRequests(s.cors(s.mux))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// Progress
	s.mux.HandleFunc("GET /api/progress", s.handleProgress)
	s.mux.HandleFunc("GET /api/progress/audit", s.handleAudit)
	s.mux.HandleFunc("POST /api/progress/add-to-safe", s.amountOp(s.svc.TransferTaskStarsToSafe))
	s.mux.HandleFunc("POST /api/progress/withdraw-from-safe", s.amountOp(s.svc.WithdrawFromSafe))
	s.mux.HandleFunc("POST /api/progress/move-reward-to-safe", s.amountOp(s.svc.TransferAvailableToSafe))
	s.mux.HandleFunc("POST /api/progress/move-to-available", s.amountOp(s.svc.TransferTaskStarsToAvailable))
	s.mux.HandleFunc("POST /api/progress/reset", s.resetOp(s.svc.ResetWeek))
	s.mux.HandleFunc("POST /api/progress/reset-safe", s.resetOp(s.svc.ResetSafe))
	s.mux.HandleFunc("POST /api/progress/reset-all-stars", s.resetOp(s.svc.ResetAll))

	// Tasks and their stars
	s.mux.HandleFunc("GET /api/tasks", s.handleTaskList)
	s.mux.HandleFunc("POST /api/tasks", s.handleTaskCreate)
	s.mux.HandleFunc("DELETE /api/tasks/{id}", s.handleTaskDelete)
	s.mux.HandleFunc("GET /api/stars", s.handleStarList)
	s.mux.HandleFunc("POST /api/stars/{task_id}/{day}", s.handleStarRecord)

	// Rewards
	s.mux.HandleFunc("GET /api/rewards", s.handleRewardList)
	s.mux.HandleFunc("POST /api/rewards", s.handleRewardCreate)
	s.mux.HandleFunc("DELETE /api/rewards/all", s.handleRewardDeleteAll)
	s.mux.HandleFunc("DELETE /api/rewards/{id}", s.handleRewardDelete)
	s.mux.HandleFunc("POST /api/rewards/{id}/claim", s.handleRewardClaim)

	// Subjects. Registered per subject so they never shadow /api/stars/...
	for _, subj := range challenge.Subjects {
		p := "/api/" + string(subj)
		s.mux.HandleFunc("GET "+p+"/settings", s.subject(subj, s.handleSettingsGet))
		s.mux.HandleFunc("PUT "+p+"/settings", s.subject(subj, s.handleSettingsPut))
		s.mux.HandleFunc("GET "+p+"/statistics", s.subject(subj, s.handleStatisticsGet))
		s.mux.HandleFunc("POST "+p+"/statistics/reset", s.subject(subj, s.handleStatisticsReset))
		s.mux.HandleFunc("GET "+p+"/challenges", s.subject(subj, s.handleChallengeList))
		s.mux.HandleFunc("POST "+p+"/challenge/{grade}", s.subject(subj, s.handleChallengeCreate))
		s.mux.HandleFunc("POST "+p+"/challenge/{id}/submit", s.subject(subj, s.handleChallengeSubmit))
	}
	s.mux.HandleFunc("GET /api/challenges/{id}", s.handleChallengeGet)

	// Journal
	s.mux.HandleFunc("GET /api/journal", s.handleJournalList)
	s.mux.HandleFunc("GET /api/journal/verify", s.handleJournalVerify)
	s.mux.HandleFunc("GET /api/journal/stream", s.handleJournalStream)

	// Backup
	s.mux.HandleFunc("GET /api/backup", s.handleBackupExport)
	s.mux.HandleFunc("POST /api/backup/restore", s.handleBackupRestore)
	s.mux.HandleFunc("GET /api/backups", s.handleBackupList)

	// System
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)

	// Static files (Gio WASM UI)
	dir := s.opts.StaticDir
	if dir == "" {
		dir = os.Getenv("WASM_DIR")
	}
	if dir == "" {
		dir = filepath.Join(".", "web")
	}
	s.mux.Handle("GET /", http.FileServer(http.Dir(dir)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg, "kind": "invalid_input"})
}

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Pool      string `json:"pool,omitempty"`
	RewardID  string `json:"reward_id,omitempty"`
	Required  *int   `json:"required,omitempty"`
	Available *int   `json:"available,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Retry     bool   `json:"retry,omitempty"`
}

// writeFailure maps err onto a status code and a body carrying enough detail
// to render an actionable message.
func writeFailure(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error(), Kind: tracker.Kind(err)}
	status := http.StatusInternalServerError

	var balance *ledger.InsufficientBalanceError
	var stars *ledger.InsufficientStarsError
	switch {
	case errors.As(err, &balance):
		status = http.StatusBadRequest
		body.Pool = string(balance.Pool)
		body.Reason = balance.Reason
		body.Required, body.Available = &balance.Required, &balance.Available
	case errors.As(err, &stars):
		status = http.StatusBadRequest
		body.RewardID = stars.RewardID
		body.Required, body.Available = &stars.Required, &stars.Available
	case errors.Is(err, ledger.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrAlreadyClaimed), errors.Is(err, ledger.ErrAlreadySubmitted):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrUnavailable):
		status = http.StatusServiceUnavailable
		body.Retry = true
	}
	writeJSON(w, status, body)
}
