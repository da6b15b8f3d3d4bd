package audio

import (
	"errors"
	"sync"
)

const fakeChunkBytes = 2048

// FakeCapture feeds a fixed PCM buffer to the callback synchronously on
// Start. Deterministic, for tests and the session tester CLI.
type FakeCapture struct {
	mu      sync.Mutex
	pcm     []byte
	running bool
	failure error
}

func NewFakeCapture(pcm []byte) *FakeCapture {
	return &FakeCapture{pcm: pcm}
}

// FailWith makes the next Start return err, simulating a device fault.
func (f *FakeCapture) FailWith(err error) {
	f.mu.Lock()
	f.failure = err
	f.mu.Unlock()
}

func (f *FakeCapture) Start(_ CaptureConfig, cb DataCallback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failure != nil {
		err := f.failure
		f.failure = nil
		return err
	}
	if f.running {
		return errors.New("capture already running")
	}
	f.running = true

	for pos := 0; pos < len(f.pcm); pos += fakeChunkBytes {
		end := pos + fakeChunkBytes
		if end > len(f.pcm) {
			end = len(f.pcm)
		}
		chunk := make([]byte, end-pos)
		copy(chunk, f.pcm[pos:end])
		cb(chunk, uint32(len(chunk)/2))
	}
	return nil
}

func (f *FakeCapture) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return errors.New("capture not running")
	}
	f.running = false
	return nil
}

func (f *FakeCapture) Close() {}

// FakePlayback tracks playback state in memory and reports transitions on
// the status callback. Finish simulates the clip reaching its end.
type FakePlayback struct {
	mu       sync.Mutex
	active   bool
	paused   bool
	position int64
	data     []byte
	format   string
	onStatus StatusCallback
}

func NewFakePlayback() *FakePlayback {
	return &FakePlayback{}
}

// LastClip returns the bytes and format handed to the most recent Play.
func (f *FakePlayback) LastClip() ([]byte, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data, f.format
}

func (f *FakePlayback) Play(data []byte, format string, onStatus StatusCallback) error {
	f.mu.Lock()
	if f.active {
		f.mu.Unlock()
		return errors.New("playback already active")
	}
	f.active = true
	f.paused = false
	f.position = 0
	f.data = data
	f.format = format
	f.onStatus = onStatus
	f.mu.Unlock()

	f.report(StatusPlaying)
	return nil
}

func (f *FakePlayback) Pause() error {
	f.mu.Lock()
	if !f.active || f.paused {
		f.mu.Unlock()
		return errors.New("nothing playing")
	}
	f.paused = true
	f.mu.Unlock()

	f.report(StatusPaused)
	return nil
}

func (f *FakePlayback) Resume() error {
	f.mu.Lock()
	if !f.active || !f.paused {
		f.mu.Unlock()
		return errors.New("nothing paused")
	}
	f.paused = false
	f.mu.Unlock()

	f.report(StatusPlaying)
	return nil
}

func (f *FakePlayback) Stop() error {
	f.mu.Lock()
	if !f.active {
		f.mu.Unlock()
		return errors.New("nothing playing")
	}
	f.active = false
	f.paused = false
	f.mu.Unlock()

	f.report(StatusStopped)
	return nil
}

func (f *FakePlayback) Seek(positionMs int64) error {
	f.mu.Lock()
	if !f.active {
		f.mu.Unlock()
		return errors.New("nothing playing")
	}
	f.position = positionMs
	f.mu.Unlock()
	return nil
}

// Finish drives the clip to completion, as the real device would when the
// audio runs out.
func (f *FakePlayback) Finish() {
	f.mu.Lock()
	if !f.active {
		f.mu.Unlock()
		return
	}
	f.active = false
	f.paused = false
	f.mu.Unlock()

	f.report(StatusCompleted)
}

func (f *FakePlayback) Close() {}

func (f *FakePlayback) report(state string) {
	f.mu.Lock()
	cb := f.onStatus
	pos := f.position
	f.mu.Unlock()
	if cb != nil {
		cb(PlaybackStatus{State: state, PositionMs: pos})
	}
}
