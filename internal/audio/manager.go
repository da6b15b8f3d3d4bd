package audio

import (
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/astrovoice/kundli/backend/internal/model/voice"
)

// Result is the outcome of an audio operation. Expected failures (no active
// recording, permission denied, device faults) come back as Success=false
// instead of an error return, so callers can surface them inline.
type Result struct {
	Success bool
	Error   string
}

func ok() Result { return Result{Success: true} }

func fail(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Options configures a Manager. Zero values fall back to sane defaults.
type Options struct {
	Capture  CaptureDevice
	Playback PlaybackDevice

	// Dir receives finished recordings as .wav files.
	Dir string

	SampleRate int
	Channels   int

	// Permission reports whether microphone access is granted. Nil means
	// always granted (server-side and test renditions have no OS prompt).
	Permission func() bool
}

func (o *Options) withDefaults() {
	if o.Dir == "" {
		o.Dir = "recordings"
	}
	if o.SampleRate == 0 {
		o.SampleRate = 44100
	}
	if o.Channels == 0 {
		o.Channels = 2
	}
}

// Manager serializes access to at most one active recording and at most one
// active playback. All operations return results rather than panicking;
// calling any of them with no active resource is a failure result, not a
// crash.
type Manager struct {
	opts Options

	mu        sync.Mutex
	granted   bool
	recording bool
	pcm       []byte
	startedAt time.Time
	playing   bool
}

func New(opts Options) *Manager {
	opts.withDefaults()
	return &Manager{opts: opts}
}

// RequestPermission asks for capture access. Repeated calls are cheap; the
// grant is remembered.
func (m *Manager) RequestPermission() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.granted {
		return true
	}
	if m.opts.Permission != nil && !m.opts.Permission() {
		log.Printf("[audio] capture permission denied")
		return false
	}
	m.granted = true
	return true
}

// StartRecording begins capturing PCM from the device. Fails if permission
// was never granted or a recording is already active.
func (m *Manager) StartRecording() Result {
	m.mu.Lock()
	if !m.granted {
		m.mu.Unlock()
		return fail("capture permission not granted")
	}
	if m.recording {
		m.mu.Unlock()
		return fail("a recording is already active")
	}
	if m.opts.Capture == nil {
		m.mu.Unlock()
		return fail("no capture device configured")
	}
	m.recording = true
	m.pcm = m.pcm[:0]
	m.startedAt = time.Now()
	m.mu.Unlock()

	cfg := CaptureConfig{SampleRate: m.opts.SampleRate, Channels: m.opts.Channels}
	err := m.opts.Capture.Start(cfg, func(data []byte, _ uint32) {
		m.mu.Lock()
		if m.recording {
			m.pcm = append(m.pcm, data...)
		}
		m.mu.Unlock()
	})
	if err != nil {
		m.mu.Lock()
		m.recording = false
		m.mu.Unlock()
		return fail("starting capture: %v", err)
	}
	return ok()
}

// StopRecording ends the active recording, persists it as a .wav file and
// returns its metadata. Fails if nothing is being recorded.
func (m *Manager) StopRecording() (Result, voice.AudioRecording) {
	m.mu.Lock()
	if !m.recording {
		m.mu.Unlock()
		return fail("no active recording"), voice.AudioRecording{}
	}
	m.recording = false
	pcm := m.pcm
	m.pcm = nil
	m.mu.Unlock()

	if err := m.opts.Capture.Stop(); err != nil {
		log.Printf("[audio] capture stop: %v", err)
	}

	if err := os.MkdirAll(m.opts.Dir, 0o755); err != nil {
		return fail("preparing recordings dir: %v", err), voice.AudioRecording{}
	}
	path := filepath.Join(m.opts.Dir, uuid.NewString()+".wav")

	cfg := CaptureConfig{SampleRate: m.opts.SampleRate, Channels: m.opts.Channels}
	frames, err := writeWAV(path, pcm, cfg)
	if err != nil {
		return fail("writing recording: %v", err), voice.AudioRecording{}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fail("inspecting recording: %v", err), voice.AudioRecording{}
	}

	rec := voice.AudioRecording{
		Path:       path,
		DurationMs: int64(frames) * 1000 / int64(m.opts.SampleRate),
		SizeBytes:  info.Size(),
	}
	log.Printf("[audio] recording saved path=%s duration=%dms size=%d", rec.Path, rec.DurationMs, rec.SizeBytes)
	return ok(), rec
}

// Play starts playback of a file path or a data:audio/...;base64, URI.
// Status transitions are reported on onStatus. Fails if a clip is already
// playing.
func (m *Manager) Play(uri string, onStatus StatusCallback) Result {
	m.mu.Lock()
	if m.playing {
		m.mu.Unlock()
		return fail("playback already active")
	}
	if m.opts.Playback == nil {
		m.mu.Unlock()
		return fail("no playback device configured")
	}
	m.playing = true
	m.mu.Unlock()

	data, format, err := resolvePlayable(uri)
	if err != nil {
		m.mu.Lock()
		m.playing = false
		m.mu.Unlock()
		return fail("loading audio source: %v", err)
	}

	wrapped := func(status PlaybackStatus) {
		if status.State == StatusCompleted || status.State == StatusStopped {
			m.mu.Lock()
			m.playing = false
			m.mu.Unlock()
		}
		if onStatus != nil {
			onStatus(status)
		}
	}

	if err := m.opts.Playback.Play(data, format, wrapped); err != nil {
		m.mu.Lock()
		m.playing = false
		m.mu.Unlock()
		return fail("starting playback: %v", err)
	}
	return ok()
}

// Pause suspends the active playback.
func (m *Manager) Pause() Result {
	if !m.isPlaying() {
		return fail("no active playback")
	}
	if err := m.opts.Playback.Pause(); err != nil {
		return fail("pausing playback: %v", err)
	}
	return ok()
}

// Resume continues a paused playback.
func (m *Manager) Resume() Result {
	if !m.isPlaying() {
		return fail("no active playback")
	}
	if err := m.opts.Playback.Resume(); err != nil {
		return fail("resuming playback: %v", err)
	}
	return ok()
}

// Stop ends the active playback.
func (m *Manager) Stop() Result {
	if !m.isPlaying() {
		return fail("no active playback")
	}
	if err := m.opts.Playback.Stop(); err != nil {
		return fail("stopping playback: %v", err)
	}
	m.mu.Lock()
	m.playing = false
	m.mu.Unlock()
	return ok()
}

// Seek moves the active playback to positionMs.
func (m *Manager) Seek(positionMs int64) Result {
	if positionMs < 0 {
		return fail("negative seek position %d", positionMs)
	}
	if !m.isPlaying() {
		return fail("no active playback")
	}
	if err := m.opts.Playback.Seek(positionMs); err != nil {
		return fail("seeking playback: %v", err)
	}
	return ok()
}

func (m *Manager) isPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing && m.opts.Playback != nil
}

const dataURIMarker = ";base64,"

// resolvePlayable turns a playback URI into raw bytes plus a format hint.
func resolvePlayable(uri string) ([]byte, string, error) {
	if strings.HasPrefix(uri, "data:audio/") {
		idx := strings.Index(uri, dataURIMarker)
		if idx < 0 {
			return nil, "", fmt.Errorf("unsupported data URI, expected base64 payload")
		}
		format := strings.TrimPrefix(uri[:idx], "data:audio/")
		data, err := base64.StdEncoding.DecodeString(uri[idx+len(dataURIMarker):])
		if err != nil {
			return nil, "", fmt.Errorf("decoding data URI: %w", err)
		}
		return data, format, nil
	}

	data, err := os.ReadFile(uri)
	if err != nil {
		return nil, "", err
	}
	return data, strings.TrimPrefix(filepath.Ext(uri), "."), nil
}
