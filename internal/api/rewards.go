package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleRewardList(w http.ResponseWriter, r *http.Request) {
	rewards, err := s.svc.ListRewards(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, 200, rewards)
}

func (s *Server) handleRewardCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          string `json:"name"`
		RequiredStars int    `json:"required_stars"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	rw, err := s.svc.CreateReward(r.Context(), req.Name, req.RequiredStars)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, 201, rw)
}

func (s *Server) handleRewardDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteReward(r.Context(), r.PathValue("id")); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRewardDeleteAll empties the catalog and returns the unchanged balances.
func (s *Server) handleRewardDeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteAllRewards(r.Context()); err != nil {
		writeFailure(w, err)
		return
	}
	snap, err := s.svc.Progress(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, 200, snap)
}

func (s *Server) handleRewardClaim(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.ClaimReward(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, 200, snap)
}
