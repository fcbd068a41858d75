package services

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// PlaybackController advances the frame cursor at a fixed cadence while
// playing. Every advance goes through FrameSync.SetFrame, so the PCA plot
// stays synchronized with the viewer during playback. Playback stops at the
// last frame; it does not wrap, and play on the last frame pauses again
// without moving the cursor.
type PlaybackController struct {
	logger *slog.Logger
	frames *FrameSync
	hub    *Hub
	fps    int

	mu      sync.Mutex
	playing bool
	stop    chan struct{}
}

func NewPlaybackController(logger *slog.Logger, frames *FrameSync, hub *Hub, fps int) *PlaybackController {
	if fps <= 0 {
		fps = 10
	}
	return &PlaybackController{
		logger: logger,
		frames: frames,
		hub:    hub,
		fps:    fps,
	}
}

// Play starts advancing the cursor. No-op when already playing.
func (p *PlaybackController) Play() {
	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return
	}
	p.playing = true
	stop := make(chan struct{})
	p.stop = stop
	p.mu.Unlock()

	p.publish(true)
	go p.loop(stop)
}

// Pause halts playback. Safe to call from any goroutine, including the
// playback loop itself when it reaches the final frame.
func (p *PlaybackController) Pause() {
	p.mu.Lock()
	if !p.playing {
		p.mu.Unlock()
		return
	}
	p.playing = false
	close(p.stop)
	p.stop = nil
	p.mu.Unlock()

	p.publish(false)
}

// Playing reports whether the cursor is currently advancing.
func (p *PlaybackController) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Seek moves the cursor directly. Playback state is unaffected.
func (p *PlaybackController) Seek(frame int) int {
	return p.frames.SetFrame(frame)
}

func (p *PlaybackController) loop(stop chan struct{}) {
	ticker := time.NewTicker(time.Second / time.Duration(p.fps))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !p.advance() {
				p.Pause()
				return
			}
		}
	}
}

// advance moves one frame forward. Returns false once the cursor sits on the
// last frame and playback should stop. An unknown frame count means no result
// set is loaded, so there is nothing to play.
func (p *PlaybackController) advance() bool {
	total := p.frames.Total()
	if total <= 0 {
		return false
	}
	cur := p.frames.Frame()
	if cur >= total-1 {
		return false
	}
	next := p.frames.SetFrame(cur + 1)
	return next < total-1
}

func (p *PlaybackController) publish(playing bool) {
	if p.hub == nil {
		return
	}
	payload, _ := json.Marshal(map[string]bool{"playing": playing})
	p.hub.Publish(Change{
		Type:      ChangePlayback,
		Data:      string(payload),
		Timestamp: time.Now().UnixMilli(),
	})
}
