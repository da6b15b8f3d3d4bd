package audio

import (
	"encoding/binary"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeWAV persists 16-bit little-endian interleaved PCM as a WAV file and
// returns the number of frames written.
func writeWAV(path string, pcm []byte, cfg CaptureConfig) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", path, err)
	}

	enc := wav.NewEncoder(f, cfg.SampleRate, 16, cfg.Channels, 1)

	samples := len(pcm) / 2
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			SampleRate:  cfg.SampleRate,
			NumChannels: cfg.Channels,
		},
		Data:           make([]int, samples),
		SourceBitDepth: 16,
	}
	for i := 0; i < samples; i++ {
		buf.Data[i] = int(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}

	if err := enc.Write(buf); err != nil {
		enc.Close()
		f.Close()
		return 0, fmt.Errorf("encoding wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return 0, fmt.Errorf("finalizing wav: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, err
	}

	return samples / cfg.Channels, nil
}

// readWAV decodes a WAV file back to 16-bit little-endian interleaved PCM.
func readWAV(path string) ([]byte, CaptureConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, CaptureConfig{}, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, CaptureConfig{}, fmt.Errorf("decoding wav %s: %w", path, err)
	}

	cfg := CaptureConfig{
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
	}
	pcm := make([]byte, 2*len(buf.Data))
	for i, v := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16(v)))
	}
	return pcm, cfg, nil
}
