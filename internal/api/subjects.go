package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"weekly-stars/pkg/challenge"
	"weekly-stars/pkg/ledger"
)

type subjectHandler func(w http.ResponseWriter, r *http.Request, subj challenge.Subject)

func (s *Server) subject(subj challenge.Subject, h subjectHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h(w, r, subj)
	}
}

func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request, subj challenge.Subject) {
	settings, err := s.svc.Settings(r.Context(), subj)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, 200, settings)
}

func (s *Server) handleSettingsPut(w http.ResponseWriter, r *http.Request, subj challenge.Subject) {
	current, err := s.svc.Settings(r.Context(), subj)
	if err != nil {
		writeFailure(w, err)
		return
	}
	// Fields missing from the body keep their current values.
	if err := json.NewDecoder(r.Body).Decode(&current); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	settings, err := s.svc.UpdateSettings(r.Context(), subj, current)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, 200, settings)
}

func (s *Server) handleStatisticsGet(w http.ResponseWriter, r *http.Request, subj challenge.Subject) {
	stats, err := s.svc.Statistics(r.Context(), subj)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, 200, stats)
}

func (s *Server) handleStatisticsReset(w http.ResponseWriter, r *http.Request, subj challenge.Subject) {
	if err := s.svc.ResetStatistics(r.Context(), subj); err != nil {
		writeFailure(w, err)
		return
	}
	s.handleStatisticsGet(w, r, subj)
}

func (s *Server) handleChallengeList(w http.ResponseWriter, r *http.Request, subj challenge.Subject) {
	list, err := s.svc.RecentChallenges(r.Context(), subj, queryInt(r, "limit", 20))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, 200, list)
}

func (s *Server) handleChallengeCreate(w http.ResponseWriter, r *http.Request, subj challenge.Subject) {
	grade, err := strconv.Atoi(r.PathValue("grade"))
	if err != nil {
		writeFailure(w, fmt.Errorf("%w: grade must be a number", ledger.ErrInvalidInput))
		return
	}
	c, err := s.svc.CreateChallenge(r.Context(), subj, grade)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, 201, c)
}

func (s *Server) handleChallengeSubmit(w http.ResponseWriter, r *http.Request, subj challenge.Subject) {
	var req struct {
		Answers json.RawMessage `json:"answers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	answers, err := decodeAnswers(req.Answers)
	if err != nil {
		writeFailure(w, err)
		return
	}

	id := r.PathValue("id")
	c, err := s.svc.GetChallenge(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if c.Subject != subj {
		writeFailure(w, fmt.Errorf("challenge %s is %s, not %s: %w", id, c.Subject, subj, ledger.ErrNotFound))
		return
	}
	res, err := s.svc.SubmitChallenge(r.Context(), id, answers)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, 200, res)
}

// decodeAnswers accepts {"0": "12", ...} keyed by problem index or a plain
// list in problem order.
func decodeAnswers(raw json.RawMessage) (map[int]string, error) {
	answers := map[int]string{}
	if len(raw) == 0 || string(raw) == "null" {
		return answers, nil
	}
	if err := json.Unmarshal(raw, &answers); err == nil {
		return answers, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%w: answers must be an object keyed by problem index or a list", ledger.ErrInvalidInput)
	}
	for i, a := range list {
		answers[i] = a
	}
	return answers, nil
}

func (s *Server) handleChallengeGet(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.GetChallenge(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, 200, c)
}
