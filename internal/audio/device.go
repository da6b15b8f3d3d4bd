package audio

// DataCallback receives raw PCM from a capture device as it arrives.
type DataCallback func(data []byte, frameCount uint32)

// CaptureConfig describes the PCM the capture device should produce.
// Samples are 16-bit little-endian, interleaved.
type CaptureConfig struct {
	SampleRate int
	Channels   int
}

// CaptureDevice is a microphone-like source. Start may deliver data on the
// callback until Stop returns.
type CaptureDevice interface {
	Start(cfg CaptureConfig, cb DataCallback) error
	Stop() error
	Close()
}

// Playback status states reported on StatusCallback.
const (
	StatusPlaying   = "playing"
	StatusPaused    = "paused"
	StatusStopped   = "stopped"
	StatusCompleted = "completed"
)

// PlaybackStatus is a point-in-time report of the active playback.
type PlaybackStatus struct {
	State      string
	PositionMs int64
}

// StatusCallback receives playback status transitions.
type StatusCallback func(status PlaybackStatus)

// PlaybackDevice is a speaker-like sink for one clip at a time.
type PlaybackDevice interface {
	Play(data []byte, format string, onStatus StatusCallback) error
	Pause() error
	Resume() error
	Stop() error
	Seek(positionMs int64) error
	Close()
}
