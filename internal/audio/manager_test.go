package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"os"
	"testing"
)

// rampPCM builds n 16-bit mono samples with a recognizable pattern.
func rampPCM(n int) []byte {
	pcm := make([]byte, 2*n)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16(i%2048-1024)))
	}
	return pcm
}

func newRecordingManager(t *testing.T, pcm []byte) (*Manager, *FakeCapture) {
	t.Helper()
	capture := NewFakeCapture(pcm)
	m := New(Options{
		Capture:    capture,
		Playback:   NewFakePlayback(),
		Dir:        t.TempDir(),
		SampleRate: 8000,
		Channels:   1,
	})
	return m, capture
}

func TestRecordingRoundTrip(t *testing.T) {
	pcm := rampPCM(8000) // one second at 8kHz mono
	m, _ := newRecordingManager(t, pcm)

	if !m.RequestPermission() {
		t.Fatal("permission should default to granted")
	}
	if res := m.StartRecording(); !res.Success {
		t.Fatalf("StartRecording failed: %s", res.Error)
	}

	res, rec := m.StopRecording()
	if !res.Success {
		t.Fatalf("StopRecording failed: %s", res.Error)
	}
	if rec.DurationMs != 1000 {
		t.Fatalf("expected 1000ms recording, got %dms", rec.DurationMs)
	}
	if rec.SizeBytes <= int64(len(pcm)) {
		t.Fatalf("wav file should be pcm plus header, got %d bytes", rec.SizeBytes)
	}
	if _, err := os.Stat(rec.Path); err != nil {
		t.Fatalf("recording file missing: %v", err)
	}

	decoded, cfg, err := readWAV(rec.Path)
	if err != nil {
		t.Fatalf("readWAV: %v", err)
	}
	if cfg.SampleRate != 8000 || cfg.Channels != 1 {
		t.Fatalf("wav format mangled: %+v", cfg)
	}
	if !bytes.Equal(decoded, pcm) {
		t.Fatal("decoded pcm differs from captured pcm")
	}
}

func TestStartRecordingRequiresPermission(t *testing.T) {
	capture := NewFakeCapture(nil)
	m := New(Options{
		Capture:    capture,
		Dir:        t.TempDir(),
		Permission: func() bool { return false },
	})

	if m.RequestPermission() {
		t.Fatal("permission should be denied")
	}
	if res := m.StartRecording(); res.Success {
		t.Fatal("recording must fail without permission")
	}
}

func TestSingleActiveRecording(t *testing.T) {
	m, _ := newRecordingManager(t, rampPCM(100))
	m.RequestPermission()

	if res := m.StartRecording(); !res.Success {
		t.Fatalf("StartRecording failed: %s", res.Error)
	}
	if res := m.StartRecording(); res.Success {
		t.Fatal("second concurrent recording must be rejected")
	}

	if res, _ := m.StopRecording(); !res.Success {
		t.Fatalf("StopRecording failed: %s", res.Error)
	}
	// Idempotent with respect to "no active resource": failure result, no panic.
	if res, _ := m.StopRecording(); res.Success {
		t.Fatal("StopRecording with nothing active must fail")
	}
}

func TestStartRecordingDeviceFault(t *testing.T) {
	m, capture := newRecordingManager(t, nil)
	m.RequestPermission()
	capture.FailWith(errors.New("device unplugged"))

	res := m.StartRecording()
	if res.Success {
		t.Fatal("device fault must surface as failure result")
	}
	// The fault must not leave a phantom active recording behind.
	if res := m.StartRecording(); !res.Success {
		t.Fatalf("recording after recovered fault failed: %s", res.Error)
	}
}

func TestPlaybackLifecycle(t *testing.T) {
	playback := NewFakePlayback()
	m := New(Options{Playback: playback, Dir: t.TempDir()})

	payload := []byte{0x10, 0x20, 0x30}
	uri := "data:audio/mp3;base64," + base64.StdEncoding.EncodeToString(payload)

	var states []string
	onStatus := func(s PlaybackStatus) { states = append(states, s.State) }

	if res := m.Play(uri, onStatus); !res.Success {
		t.Fatalf("Play failed: %s", res.Error)
	}
	clip, format := playback.LastClip()
	if !bytes.Equal(clip, payload) || format != "mp3" {
		t.Fatalf("device got %v/%s, want %v/mp3", clip, format, payload)
	}

	if res := m.Play(uri, nil); res.Success {
		t.Fatal("second concurrent playback must be rejected")
	}

	if res := m.Pause(); !res.Success {
		t.Fatalf("Pause failed: %s", res.Error)
	}
	if res := m.Resume(); !res.Success {
		t.Fatalf("Resume failed: %s", res.Error)
	}
	if res := m.Seek(1500); !res.Success {
		t.Fatalf("Seek failed: %s", res.Error)
	}
	if res := m.Seek(-1); res.Success {
		t.Fatal("negative seek must fail")
	}
	if res := m.Stop(); !res.Success {
		t.Fatalf("Stop failed: %s", res.Error)
	}

	want := []string{StatusPlaying, StatusPaused, StatusPlaying, StatusStopped}
	if len(states) != len(want) {
		t.Fatalf("status transitions %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("status transitions %v, want %v", states, want)
		}
	}
}

func TestPlaybackOperationsWithNothingActive(t *testing.T) {
	m := New(Options{Playback: NewFakePlayback(), Dir: t.TempDir()})

	for name, res := range map[string]Result{
		"pause":  m.Pause(),
		"resume": m.Resume(),
		"stop":   m.Stop(),
		"seek":   m.Seek(100),
	} {
		if res.Success {
			t.Fatalf("%s with no active playback must fail", name)
		}
		if res.Error == "" {
			t.Fatalf("%s failure carries no message", name)
		}
	}
}

func TestPlaybackCompletionReleasesSlot(t *testing.T) {
	playback := NewFakePlayback()
	m := New(Options{Playback: playback, Dir: t.TempDir()})

	uri := "data:audio/wav;base64," + base64.StdEncoding.EncodeToString([]byte{1})
	done := false
	if res := m.Play(uri, func(s PlaybackStatus) {
		if s.State == StatusCompleted {
			done = true
		}
	}); !res.Success {
		t.Fatalf("Play failed: %s", res.Error)
	}

	playback.Finish()
	if !done {
		t.Fatal("completion status never delivered")
	}
	if res := m.Play(uri, nil); !res.Success {
		t.Fatalf("Play after completion failed: %s", res.Error)
	}
}

func TestPlayRejectsBadSources(t *testing.T) {
	m := New(Options{Playback: NewFakePlayback(), Dir: t.TempDir()})

	if res := m.Play("data:audio/mp3;base64,%%%", nil); res.Success {
		t.Fatal("malformed base64 must fail")
	}
	if res := m.Play("/definitely/missing.mp3", nil); res.Success {
		t.Fatal("missing file must fail")
	}
	// Failed loads must not hold the playback slot.
	uri := "data:audio/mp3;base64," + base64.StdEncoding.EncodeToString([]byte{9})
	if res := m.Play(uri, nil); !res.Success {
		t.Fatalf("Play after failed loads: %s", res.Error)
	}
}
