package main

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/stupiduntilnot/ielts-tutor/internal/config"
	"github.com/stupiduntilnot/ielts-tutor/internal/db"
	"github.com/stupiduntilnot/ielts-tutor/internal/dummy"
	"github.com/stupiduntilnot/ielts-tutor/internal/gemini"
	"github.com/stupiduntilnot/ielts-tutor/internal/openai"
)

func dummyConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		ChatProvider:           config.ProviderDummy,
		SpeechProvider:         config.ProviderDummy,
		Model:                  "dummy",
		DummyChatScript:        "ok",
		DummyTranscriberScript: "ok",
		DummySynthesizerScript: "ok",
		DBPath:                 t.TempDir() + "/tutor.db",
		ListenAddr:             "127.0.0.1:0",
		HistoryLimit:           5,
		VADSampleRate:          16000,
	}
}

func TestNewChatProvider(t *testing.T) {
	cfg := dummyConfig(t)
	p, err := newChatProvider(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*dummy.Provider); !ok {
		t.Errorf("expected dummy provider, got %T", p)
	}

	cfg.ChatProvider = config.ProviderOpenAI
	cfg.OpenAIAPIKey = "key"
	p, err = newChatProvider(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*openai.Client); !ok {
		t.Errorf("expected openai client, got %T", p)
	}

	cfg.ChatProvider = config.ProviderGemini
	cfg.GeminiAPIKey = "key"
	cfg.Model = "gemini-2.5-flash"
	p, err = newChatProvider(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*gemini.Provider); !ok {
		t.Errorf("expected gemini provider, got %T", p)
	}

	cfg.ChatProvider = "bogus"
	if _, err := newChatProvider(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewChatProvider_BadDummyScript(t *testing.T) {
	cfg := dummyConfig(t)
	cfg.DummyChatScript = "bogus-action"
	if _, err := newChatProvider(context.Background(), cfg); err == nil {
		t.Fatal("expected script parse error")
	}
}

func TestNewSpeech(t *testing.T) {
	cfg := dummyConfig(t)
	stt, tts, err := newSpeech(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := stt.(*dummy.Transcriber); !ok {
		t.Errorf("expected dummy transcriber, got %T", stt)
	}
	if _, ok := tts.(*dummy.Synthesizer); !ok {
		t.Errorf("expected dummy synthesizer, got %T", tts)
	}

	cfg.SpeechProvider = config.ProviderOpenAI
	cfg.OpenAIAPIKey = "key"
	stt, tts, err = newSpeech(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := stt.(*openai.Client); !ok {
		t.Errorf("expected openai transcriber, got %T", stt)
	}
	if _, ok := tts.(*openai.Client); !ok {
		t.Errorf("expected openai synthesizer, got %T", tts)
	}

	cfg.SpeechProvider = config.ProviderGemini
	if _, _, err := newSpeech(cfg); err == nil {
		t.Fatal("expected error: gemini has no speech provider")
	}
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	cfg := dummyConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := run(ctx, cfg, zap.NewNop()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()
	var count int
	if err := database.QueryRow(`SELECT COUNT(*) FROM events WHERE event_type = ?`, db.EventProcessStarted).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 process.started event, got %d", count)
	}
}
