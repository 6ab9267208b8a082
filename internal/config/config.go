package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"

	"github.com/stupiduntilnot/ielts-tutor/internal/tutor"
	"github.com/stupiduntilnot/ielts-tutor/internal/vad"
)

// Chat and speech provider names.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderDummy  = "dummy"
)

// Config holds configuration for the tutor server. Defaults reproduce the
// fixed tutoring policy; environment variables only override them.
type Config struct {
	ChatProvider   string `env:"TUTOR_CHAT_PROVIDER" envDefault:"gemini"`
	SpeechProvider string `env:"TUTOR_SPEECH_PROVIDER" envDefault:"openai"`

	// Chat
	GeminiAPIKey  string  `env:"GEMINI_API_KEY"`
	GeminiBaseURL string  `env:"GEMINI_BASE_URL"`
	Model         string  `env:"TUTOR_MODEL" envDefault:"gemini-2.5-flash"`
	Temperature   float32 `env:"TUTOR_TEMPERATURE" envDefault:"0.3"`
	TopP          float32 `env:"TUTOR_TOP_P" envDefault:"0.9"`
	TopK          float32 `env:"TUTOR_TOP_K" envDefault:"50"`
	HistoryLimit  int     `env:"TUTOR_HISTORY_LIMIT" envDefault:"5"`
	Persona       string  `env:"TUTOR_PERSONA"`

	// OpenAI chat and speech
	OpenAIAPIKey    string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string        `env:"OPENAI_BASE_URL"`
	OpenAIChatModel string        `env:"OPENAI_CHAT_MODEL" envDefault:"gpt-4o-mini"`
	OpenAITimeout   time.Duration `env:"OPENAI_TIMEOUT" envDefault:"60s"`
	STTModel        string        `env:"TUTOR_STT_MODEL" envDefault:"whisper-1"`
	STTLanguage     string        `env:"TUTOR_STT_LANGUAGE" envDefault:"en"`
	TTSModel        string        `env:"TUTOR_TTS_MODEL" envDefault:"tts-1"`
	TTSVoice        string        `env:"TUTOR_TTS_VOICE" envDefault:"alloy"`

	// Storage and serving
	DBPath     string `env:"TUTOR_DB_PATH" envDefault:"ielts_memory.db"`
	ListenAddr string `env:"TUTOR_LISTEN_ADDR" envDefault:":7860"`

	// Pause detection
	VADSampleRate   int           `env:"TUTOR_VAD_SAMPLE_RATE" envDefault:"16000"`
	VADThreshold    float64       `env:"TUTOR_VAD_THRESHOLD" envDefault:"0.02"`
	VADSilence      time.Duration `env:"TUTOR_VAD_SILENCE" envDefault:"800ms"`
	VADMinSpeech    time.Duration `env:"TUTOR_VAD_MIN_SPEECH" envDefault:"250ms"`
	VADMaxUtterance time.Duration `env:"TUTOR_VAD_MAX_UTTERANCE" envDefault:"30s"`

	// Offline stand-ins
	DummyChatScript        string `env:"TUTOR_DUMMY_CHAT_SCRIPT" envDefault:"ok"`
	DummyTranscriberScript string `env:"TUTOR_DUMMY_STT_SCRIPT" envDefault:"ok"`
	DummySynthesizerScript string `env:"TUTOR_DUMMY_TTS_SCRIPT" envDefault:"ok"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// Load reads configuration from environment variables and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Persona == "" {
		cfg.Persona = tutor.DefaultPersona
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.ChatProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required in environment when TUTOR_CHAT_PROVIDER=gemini")
		}
	case ProviderOpenAI, ProviderDummy:
	default:
		return fmt.Errorf("TUTOR_CHAT_PROVIDER must be one of gemini, openai, dummy: %q", c.ChatProvider)
	}
	switch c.SpeechProvider {
	case ProviderOpenAI, ProviderDummy:
	default:
		return fmt.Errorf("TUTOR_SPEECH_PROVIDER must be one of openai, dummy: %q", c.SpeechProvider)
	}
	if (c.ChatProvider == ProviderOpenAI || c.SpeechProvider == ProviderOpenAI) && c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required in environment when an openai provider is selected")
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("TUTOR_HISTORY_LIMIT must be >= 0: %d", c.HistoryLimit)
	}
	if c.Temperature < 0 || c.TopP < 0 || c.TopP > 1 || c.TopK < 0 {
		return fmt.Errorf("invalid decoding policy: temperature=%v top_p=%v top_k=%v", c.Temperature, c.TopP, c.TopK)
	}
	if c.VADSampleRate <= 0 {
		return fmt.Errorf("TUTOR_VAD_SAMPLE_RATE must be > 0: %d", c.VADSampleRate)
	}
	if c.VADSilence <= 0 || c.VADMaxUtterance <= 0 {
		return fmt.Errorf("TUTOR_VAD_SILENCE and TUTOR_VAD_MAX_UTTERANCE must be > 0")
	}
	if c.DBPath == "" {
		return fmt.Errorf("TUTOR_DB_PATH must not be empty")
	}
	return nil
}

// Policy returns the tutoring decoding policy.
func (c Config) Policy() tutor.Policy {
	return tutor.Policy{
		Persona:      c.Persona,
		Temperature:  c.Temperature,
		TopP:         c.TopP,
		TopK:         c.TopK,
		HistoryLimit: c.HistoryLimit,
	}
}

// VAD returns the pause-detection thresholds.
func (c Config) VAD() vad.Config {
	return vad.Config{
		SampleRate:      c.VADSampleRate,
		Threshold:       c.VADThreshold,
		SilenceDuration: c.VADSilence,
		MinSpeech:       c.VADMinSpeech,
		MaxUtterance:    c.VADMaxUtterance,
	}
}
