package openai

import "github.com/stupiduntilnot/ielts-tutor/internal/speech"

func speechUtterance() speech.Utterance {
	return speechUtteranceWith(make([]byte, 3200))
}

func speechUtteranceWith(pcm []byte) speech.Utterance {
	return speech.Utterance{PCM: pcm, SampleRate: 16000, Channels: 1}
}
