package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayback_AdvancesAndStopsAtLastFrame(t *testing.T) {
	fs := NewFrameSync(testLogger(), nil)
	fs.Reset(3)
	pc := NewPlaybackController(testLogger(), fs, nil, 100)

	pc.Play()
	require.True(t, pc.Playing())

	require.Eventually(t, func() bool {
		return fs.Frame() == 2 && !pc.Playing()
	}, time.Second, 5*time.Millisecond)

	// Stop-at-end: the cursor parks on the last frame, no wrap to 0.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, fs.Frame())
}

func TestPlayback_PlayOnLastFrameStops(t *testing.T) {
	fs := NewFrameSync(testLogger(), nil)
	fs.Reset(5)
	fs.SetFrame(4)
	pc := NewPlaybackController(testLogger(), fs, nil, 100)

	pc.Play()

	require.Eventually(t, func() bool { return !pc.Playing() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 4, fs.Frame())
}

func TestPlayback_PauseHaltsAdvance(t *testing.T) {
	fs := NewFrameSync(testLogger(), nil)
	fs.Reset(1000)
	pc := NewPlaybackController(testLogger(), fs, nil, 100)

	pc.Play()
	require.Eventually(t, func() bool { return fs.Frame() > 0 }, time.Second, time.Millisecond)

	pc.Pause()
	assert.False(t, pc.Playing())

	at := fs.Frame()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, at, fs.Frame())
}

func TestPlayback_PlotStaysSynchronizedDuringPlayback(t *testing.T) {
	fs := NewFrameSync(testLogger(), nil)
	fs.Reset(4)
	pc := NewPlaybackController(testLogger(), fs, nil, 200)

	plotHighlight := -1
	unsub := fs.Subscribe(func(f int) { plotHighlight = f })
	defer unsub()

	pc.Play()
	require.Eventually(t, func() bool { return !pc.Playing() }, time.Second, 5*time.Millisecond)

	assert.Equal(t, 3, fs.Frame())
	assert.Equal(t, 3, plotHighlight, "every advance goes through the cursor")
}

func TestPlayback_NoResultSetNothingToPlay(t *testing.T) {
	fs := NewFrameSync(testLogger(), nil)
	pc := NewPlaybackController(testLogger(), fs, nil, 100)

	// No frame count known: playback must stop itself instead of advancing
	// the cursor past data that does not exist.
	pc.Play()
	require.Eventually(t, func() bool { return !pc.Playing() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, fs.Frame())
}

func TestPlayback_SeekMovesCursorWithoutPlaying(t *testing.T) {
	fs := NewFrameSync(testLogger(), nil)
	fs.Reset(10)
	pc := NewPlaybackController(testLogger(), fs, nil, 10)

	assert.Equal(t, 7, pc.Seek(7))
	assert.False(t, pc.Playing())
	assert.Equal(t, 9, pc.Seek(99))
}
