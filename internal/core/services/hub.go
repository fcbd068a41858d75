package services

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

type ChangeType string

const (
	ChangeJobs      ChangeType = "jobs"
	ChangeSelection ChangeType = "selection"
	ChangeResults   ChangeType = "results"
	ChangeFrame     ChangeType = "frame"
	ChangePlayback  ChangeType = "playback"
	ChangeNotice    ChangeType = "notice"
	ChangeAnalysis  ChangeType = "analysis"
)

// Change is one state-change notification. Data is a JSON payload the
// renderer can apply without re-fetching.
type Change struct {
	Type      ChangeType
	Data      string
	Timestamp int64
}

// Hub fans state changes out to renderers (SSE clients mostly). Delivery is
// best effort: a slow subscriber loses events rather than blocking the
// single-writer mutation path.
type Hub struct {
	logger *slog.Logger
	mu     sync.RWMutex
	subs   map[string]chan Change
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		subs:   make(map[string]chan Change),
	}
}

// Subscribe returns a channel of changes and an unsubscribe function.
func (h *Hub) Subscribe() (<-chan Change, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan Change, 100)
	h.subs[id] = ch

	unsub := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			close(sub)
			delete(h.subs, id)
		}
	}
	return ch, unsub
}

// Publish sends a change to every subscriber.
func (h *Hub) Publish(c Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- c:
		default:
			h.logger.Warn("change hub subscriber full, dropping event",
				"subscriber", id, "type", c.Type)
		}
	}
}
