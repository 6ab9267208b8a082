package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stupiduntilnot/ielts-tutor/internal/config"
	"github.com/stupiduntilnot/ielts-tutor/internal/db"
	"github.com/stupiduntilnot/ielts-tutor/internal/dummy"
	"github.com/stupiduntilnot/ielts-tutor/internal/gemini"
	"github.com/stupiduntilnot/ielts-tutor/internal/logging"
	"github.com/stupiduntilnot/ielts-tutor/internal/memory"
	"github.com/stupiduntilnot/ielts-tutor/internal/metrics"
	modelpkg "github.com/stupiduntilnot/ielts-tutor/internal/model"
	"github.com/stupiduntilnot/ielts-tutor/internal/openai"
	"github.com/stupiduntilnot/ielts-tutor/internal/session"
	"github.com/stupiduntilnot/ielts-tutor/internal/speech"
	"github.com/stupiduntilnot/ielts-tutor/internal/transport"
	"github.com/stupiduntilnot/ielts-tutor/internal/tutor"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[tutor] failed to load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[tutor] %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("[tutor] failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("tutor exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.InitSchema(database); err != nil {
		return err
	}

	if _, err := db.LogEvent(database, nil, db.EventProcessStarted, map[string]any{
		"pid":             os.Getpid(),
		"chat_provider":   cfg.ChatProvider,
		"speech_provider": cfg.SpeechProvider,
		"listen_addr":     cfg.ListenAddr,
	}); err != nil {
		logger.Warn("failed to log process.started", zap.Error(err))
	}

	provider, err := newChatProvider(ctx, cfg)
	if err != nil {
		return err
	}
	transcriber, synthesizer, err := newSpeech(cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := session.Deps{
		Transcriber: transcriber,
		Tutor:       tutor.New(memory.NewStore(database), nil, provider, cfg.Policy(), logger),
		Synthesizer: synthesizer,
		DB:          database,
		Metrics:     metrics.NewCollector(reg),
	}
	srv := transport.NewServer(deps, cfg.VAD(), reg, logger)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("tutor listening",
			zap.String("addr", cfg.ListenAddr),
			zap.String("chat_provider", cfg.ChatProvider),
			zap.String("speech_provider", cfg.SpeechProvider),
			zap.String("db", cfg.DBPath))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		srv.CloseConnections()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newChatProvider(ctx context.Context, cfg config.Config) (modelpkg.Provider, error) {
	switch cfg.ChatProvider {
	case config.ProviderGemini:
		return gemini.NewProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiBaseURL, cfg.Model)
	case config.ProviderOpenAI:
		return newOpenAIClient(cfg), nil
	case config.ProviderDummy:
		return dummy.NewProvider(cfg.Model, cfg.DummyChatScript)
	default:
		return nil, errors.New("unsupported chat provider: " + cfg.ChatProvider)
	}
}

func newSpeech(cfg config.Config) (speech.Transcriber, speech.Synthesizer, error) {
	switch cfg.SpeechProvider {
	case config.ProviderOpenAI:
		client := newOpenAIClient(cfg)
		return client, client, nil
	case config.ProviderDummy:
		stt, err := dummy.NewTranscriber(cfg.DummyTranscriberScript)
		if err != nil {
			return nil, nil, err
		}
		tts, err := dummy.NewSynthesizer(cfg.DummySynthesizerScript)
		if err != nil {
			return nil, nil, err
		}
		return stt, tts, nil
	default:
		return nil, nil, errors.New("unsupported speech provider: " + cfg.SpeechProvider)
	}
}

func newOpenAIClient(cfg config.Config) *openai.Client {
	return openai.NewClient(openai.Options{
		APIKey:    cfg.OpenAIAPIKey,
		BaseURL:   cfg.OpenAIBaseURL,
		ChatModel: cfg.OpenAIChatModel,
		STTModel:  cfg.STTModel,
		TTSModel:  cfg.TTSModel,
		Voice:     cfg.TTSVoice,
		Language:  cfg.STTLanguage,
		Timeout:   cfg.OpenAITimeout,
	})
}
