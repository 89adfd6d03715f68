package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"weekly-stars/pkg/ledger"
)

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Progress(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, 200, snap)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	err := s.svc.Audit(r.Context())
	if errors.Is(err, ledger.ErrUnavailable) {
		writeFailure(w, err)
		return
	}
	if err != nil {
		writeJSON(w, 200, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}

// amountOp adapts a transfer taking a star amount into a handler.
func (s *Server) amountOp(op func(context.Context, int) (ledger.Snapshot, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := starsParam(r)
		if err != nil {
			writeFailure(w, err)
			return
		}
		snap, err := op(r.Context(), n)
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, 200, snap)
	}
}

func (s *Server) resetOp(op func(context.Context) (ledger.Snapshot, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := op(r.Context())
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, 200, snap)
	}
}

// starsParam reads the star amount from ?stars=N or a {"stars": N} body.
func starsParam(r *http.Request) (int, error) {
	if v := r.URL.Query().Get("stars"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%w: stars must be an integer, got %q", ledger.ErrInvalidInput, v)
		}
		return n, nil
	}
	var req struct {
		Stars *int `json:"stars"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("%w: invalid JSON: %v", ledger.ErrInvalidInput, err)
	}
	if req.Stars == nil {
		return 0, fmt.Errorf("%w: stars is required", ledger.ErrInvalidInput)
	}
	return *req.Stars, nil
}

func (s *Server) handleStarList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.Stars(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, 200, entries)
}

func (s *Server) handleStarRecord(w http.ResponseWriter, r *http.Request) {
	n, err := starsParam(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	snap, err := s.svc.RecordTaskStars(r.Context(), r.PathValue("task_id"), r.PathValue("day"), n)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, 200, snap)
}

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.svc.ListTasks(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, 200, tasks)
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	t, err := s.svc.CreateTask(r.Context(), req.Name)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, 201, t)
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.DeleteTask(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, 200, snap)
}
