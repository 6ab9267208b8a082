// Package speech defines the speech-to-text and text-to-speech contracts used
// by the voice loop, plus the chunked audio stream a synthesizer returns.
package speech

import (
	"context"
	"time"
)

// Utterance is one captured stretch of user speech as 16-bit little-endian PCM.
type Utterance struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// Duration is the playback length of the utterance.
func (u Utterance) Duration() time.Duration {
	if u.SampleRate <= 0 || u.Channels <= 0 {
		return 0
	}
	samples := len(u.PCM) / (2 * u.Channels)
	return time.Duration(samples) * time.Second / time.Duration(u.SampleRate)
}

// WAV returns the utterance wrapped in a RIFF/WAVE container.
func (u Utterance) WAV() ([]byte, error) {
	return EncodeWAV(u.PCM, u.Channels, u.SampleRate)
}

// Transcriber turns an utterance into text.
type Transcriber interface {
	Transcribe(ctx context.Context, utterance Utterance) (string, error)
}

// Synthesizer turns reply text into a stream of audio chunks.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*Stream, error)
}
