package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

func (s *Server) handleJournalList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := queryInt(r, "limit", 50)

	if t := r.URL.Query().Get("type"); t != "" {
		events, err := s.journal.ByType(ctx, t, limit)
		if err != nil {
			writeError(w, 500, err.Error())
			return
		}
		writeJSON(w, 200, events)
		return
	}
	if after := r.URL.Query().Get("after"); after != "" {
		events, err := s.journal.Since(ctx, after, limit)
		if err != nil {
			writeError(w, 500, err.Error())
			return
		}
		writeJSON(w, 200, events)
		return
	}

	events, err := s.journal.Recent(ctx, limit)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, events)
}

func (s *Server) handleJournalVerify(w http.ResponseWriter, r *http.Request) {
	n, err := s.journal.Count(r.Context())
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	if err := s.journal.VerifyChain(r.Context()); err != nil {
		writeJSON(w, 200, map[string]any{"ok": false, "events": n, "error": err.Error()})
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "events": n})
}

// handleJournalStream pushes new journal events as server-sent events.
// ?type=safe.,reward.claimed limits the stream to those types or families.
// When the client falls behind a "lagged" event tells it to reload.
func (s *Server) handleJournalStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, 500, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var types []string
	for _, t := range strings.Split(r.URL.Query().Get("type"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	sub := s.journal.Subscribe(types...)
	defer s.journal.Unsubscribe(sub)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.C:
			if !ok {
				return
			}
			if n := sub.Dropped(); n > 0 {
				fmt.Fprintf(w, "event: lagged\ndata: {\"dropped\":%d}\n\n", n)
			}
			data, err := json.Marshal(e)
			if err != nil {
				s.log.Error("SSE encode", "err", err)
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, data)
			flusher.Flush()
		}
	}
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}
