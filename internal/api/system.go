package api

import (
	"encoding/json"
	"net/http"
	"time"

	"weekly-stars/internal/backup"
	"weekly-stars/pkg/ledger"
	"weekly-stars/pkg/tracker"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, err := s.svc.State(ctx)
	if err != nil {
		writeFailure(w, err)
		return
	}
	events, err := s.journal.Count(ctx)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{
		"backend":        s.opts.Backend,
		"version":        st.Version,
		"week_start":     st.WeekStart,
		"updated_at":     st.UpdatedAt,
		"tasks":          len(st.Tasks),
		"rewards":        len(st.Rewards),
		"journal_events": events,
		"subscribers":    s.journal.Subscribers(),
		"uptime":         time.Since(s.started).Round(time.Second).String(),
		"progress":       st.Ledger.Snapshot(),
	})
}

func (s *Server) handleBackupExport(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.State(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+backup.Name(time.Now())+`"`)
	writeJSON(w, 200, st)
}

func (s *Server) handleBackupRestore(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	st, err := tracker.DecodeState(raw, ledger.DefaultSeed)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	snap, err := s.svc.Restore(r.Context(), st)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, 200, snap)
}

func (s *Server) handleBackupList(w http.ResponseWriter, r *http.Request) {
	if s.backups == nil {
		writeJSON(w, 200, []string{})
		return
	}
	names, err := s.backups.List(r.Context())
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, 200, names)
}
