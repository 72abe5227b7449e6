package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"memos/config"
	"memos/observe"
	"memos/openai"
	"memos/relay"
	"memos/whisperx"
)

const shutdownTimeout = 15 * time.Second

func runServer(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	telemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(sctx); err != nil {
			log.Warn("shutdown telemetry", "err", err)
		}
	}()

	t, s, err := newProviders(cfg, log)
	if err != nil {
		return err
	}

	m := observe.DefaultMetrics()
	h := relay.New(t, s,
		relay.WithAllowOrigin(cfg.Server.CORSAllowOrigin),
		relay.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
		relay.WithMetrics(m),
	)

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           newRouter(h, telemetry.MetricsHandler(), m),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("relay listening", "addr", srv.Addr, "transcriber", cfg.Server.Transcriber)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http listen and serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// newRouter mounts /metrics next to the relay and wraps both in the
// request middleware.
func newRouter(relayHandler, metricsHandler http.Handler, m *observe.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)
	mux.Handle("/", relayHandler)
	return observe.Middleware(m)(mux)
}

// newProviders picks the transcription backend. Without an OpenAI key the
// summarizer is nil, and so is the transcriber unless whisperx is selected.
func newProviders(cfg *config.Config, log *slog.Logger) (relay.Transcriber, relay.Summarizer, error) {
	var (
		t relay.Transcriber
		s relay.Summarizer
	)

	if cfg.OpenAI.APIKey != "" {
		opts := []openai.Option{
			openai.WithTimeout(cfg.OpenAI.Timeout),
			openai.WithTranscribeModel(cfg.OpenAI.TranscribeModel),
			openai.WithSummaryModel(cfg.OpenAI.SummaryModel),
		}
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		p, err := openai.New(cfg.OpenAI.APIKey, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("creating openai provider: %w", err)
		}
		t, s = p, p
	} else {
		log.Warn("no OpenAI API key configured; summaries are disabled")
	}

	switch cfg.Server.Transcriber {
	case config.TranscriberWhisperx:
		t = whisperx.Transcriber{
			Binary:   cfg.Whisperx.Binary,
			Model:    cfg.Whisperx.Model,
			Language: cfg.Whisperx.Language,
			TempDir:  cfg.Whisperx.TempDir,
		}
	default:
		if t == nil {
			log.Warn("no transcription credential configured; uploads will fail")
		}
	}
	return t, s, nil
}
