// Package vad detects the end of a spoken utterance in a stream of PCM16
// frames using an RMS energy threshold and a trailing-silence window.
package vad

import (
	"math"
	"time"
)

// Config holds the detector thresholds. Durations are converted to sample
// counts at the configured sample rate.
type Config struct {
	SampleRate      int
	Threshold       float64
	SilenceDuration time.Duration
	MinSpeech       time.Duration
	MaxUtterance    time.Duration
}

// DefaultConfig returns the thresholds used by the browser front end.
func DefaultConfig() Config {
	return Config{
		SampleRate:      16000,
		Threshold:       0.02,
		SilenceDuration: 800 * time.Millisecond,
		MinSpeech:       250 * time.Millisecond,
		MaxUtterance:    30 * time.Second,
	}
}

// Detector accumulates mono PCM16LE frames and reports a complete utterance
// once speech is followed by enough silence. Not safe for concurrent use.
type Detector struct {
	threshold    float64
	silenceLimit int
	minSpeech    int
	maxSamples   int

	speaking bool
	buf      []byte
	speech   int
	silence  int
	total    int
}

// New creates a detector. Zero fields in cfg fall back to DefaultConfig.
func New(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.SilenceDuration <= 0 {
		cfg.SilenceDuration = def.SilenceDuration
	}
	if cfg.MinSpeech < 0 {
		cfg.MinSpeech = 0
	}
	if cfg.MaxUtterance <= 0 {
		cfg.MaxUtterance = def.MaxUtterance
	}
	return &Detector{
		threshold:    cfg.Threshold,
		silenceLimit: samplesFor(cfg.SilenceDuration, cfg.SampleRate),
		minSpeech:    samplesFor(cfg.MinSpeech, cfg.SampleRate),
		maxSamples:   samplesFor(cfg.MaxUtterance, cfg.SampleRate),
	}
}

func samplesFor(d time.Duration, sampleRate int) int {
	return int(d * time.Duration(sampleRate) / time.Second)
}

// Feed consumes one frame. When it completes an utterance it returns the
// utterance PCM and true, and the detector starts over.
func (d *Detector) Feed(frame []byte) ([]byte, bool) {
	frame = frame[:len(frame)&^1]
	samples := len(frame) / 2
	if samples == 0 {
		return nil, false
	}
	voiced := Energy(frame) >= d.threshold

	if !d.speaking {
		if !voiced {
			return nil, false
		}
		d.speaking = true
	}

	d.buf = append(d.buf, frame...)
	d.total += samples
	if voiced {
		d.speech += samples
		d.silence = 0
	} else {
		d.silence += samples
	}

	if d.silence < d.silenceLimit && d.total < d.maxSamples {
		return nil, false
	}
	if d.speech < d.minSpeech {
		d.Reset()
		return nil, false
	}
	out := d.buf
	d.buf = nil
	d.Reset()
	return out, true
}

// Speaking reports whether the detector is inside an utterance.
func (d *Detector) Speaking() bool {
	return d.speaking
}

// Reset discards any partial utterance.
func (d *Detector) Reset() {
	d.speaking = false
	d.buf = d.buf[:0]
	d.speech = 0
	d.silence = 0
	d.total = 0
}

// Energy computes the normalized RMS energy (0.0 to 1.0) of PCM16LE audio.
func Energy(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(pcm[i]) | int16(pcm[i+1])<<8
		normalized := float64(sample) / 32768.0
		sum += normalized * normalized
	}
	return math.Sqrt(sum / float64(samples))
}
