package services

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// FrameListener is invoked synchronously for every cursor move. Both the
// trajectory viewer and the PCA plot register one and render the same value.
type FrameListener func(frame int)

// FrameSync owns the current-frame cursor shared by all visualization
// widgets. All moves funnel through SetFrame, so after it returns every
// listener has already observed the new cursor; there is no intermediate
// state in which the viewer and the plot disagree.
type FrameSync struct {
	logger *slog.Logger
	hub    *Hub

	mu        sync.Mutex
	frame     int
	total     int // 0 means unknown; seeks are then accepted unclamped
	listeners map[int]FrameListener
	nextID    int
}

func NewFrameSync(logger *slog.Logger, hub *Hub) *FrameSync {
	return &FrameSync{
		logger:    logger,
		hub:       hub,
		listeners: make(map[int]FrameListener),
	}
}

// Subscribe registers a listener and returns an unsubscribe function.
// The listener immediately receives the current cursor so a widget mounted
// mid-session starts in sync.
func (f *FrameSync) Subscribe(l FrameListener) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = l
	frame := f.frame
	f.mu.Unlock()

	l(frame)

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	}
}

// SetFrame moves the cursor. Out-of-range values clamp to [0, total-1] when
// the frame count is known; they never error. Returns the applied frame.
func (f *FrameSync) SetFrame(n int) int {
	f.mu.Lock()
	if f.total > 0 {
		if n < 0 {
			n = 0
		} else if n > f.total-1 {
			n = f.total - 1
		}
	} else if n < 0 {
		n = 0
	}
	f.frame = n
	listeners := make([]FrameListener, 0, len(f.listeners))
	for _, l := range f.listeners {
		listeners = append(listeners, l)
	}
	f.mu.Unlock()

	for _, l := range listeners {
		l(n)
	}
	f.publish(n)
	return n
}

// Frame returns the current cursor.
func (f *FrameSync) Frame() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frame
}

// Total returns the known frame count, 0 when unknown.
func (f *FrameSync) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

// Reset rebinds the cursor to a new result set: frame 0, new frame count.
// Called whenever the selected job or its result set changes.
func (f *FrameSync) Reset(total int) {
	f.mu.Lock()
	f.total = total
	f.frame = 0
	listeners := make([]FrameListener, 0, len(f.listeners))
	for _, l := range f.listeners {
		listeners = append(listeners, l)
	}
	f.mu.Unlock()

	for _, l := range listeners {
		l(0)
	}
	f.publish(0)
}

func (f *FrameSync) publish(frame int) {
	if f.hub == nil {
		return
	}
	payload, _ := json.Marshal(map[string]int{"frame": frame})
	f.hub.Publish(Change{
		Type:      ChangeFrame,
		Data:      string(payload),
		Timestamp: time.Now().UnixMilli(),
	})
}
