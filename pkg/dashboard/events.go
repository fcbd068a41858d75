package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// handleEvents streams dashboard state changes as SSE. The first event is a
// full state snapshot so a client that connects mid-session starts from a
// consistent picture; everything after is incremental.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	snapshot, err := json.Marshal(s.store.Snapshot())
	if err == nil {
		fmt.Fprintf(w, "event: state\ndata: %s\n\n", snapshot)
	}
	flusher.Flush()

	ch, unsub := s.hub.Subscribe()
	defer unsub()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", change.Type, change.Data)
			flusher.Flush()
		}
	}
}
