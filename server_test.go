package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"memos/config"
	"memos/observe"
	"memos/openai"
	"memos/relay"
	"memos/whisperx"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func testRouter(t *testing.T, tr relay.Transcriber) http.Handler {
	t.Helper()
	tp := sdktrace.NewTracerProvider()
	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(origTP)
		_ = tp.Shutdown(context.Background())
	})

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return newRouter(relay.New(tr, nil, relay.WithMetrics(m)), observe.MetricsHandler(observe.NewRegistry()), m)
}

func TestRouter_Health(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rec.Body)
	}
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Error("middleware did not set X-Correlation-ID")
	}
}

func TestRouter_Metrics(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics output misses the default Go collectors")
	}
}

func TestRouter_UnknownRouteReachesRelay(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/metrics", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("relay 404 misses CORS header")
	}
}

func TestRouter_TranscribeWithoutCredential(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", strings.NewReader("x"))
	testRouter(t, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestNewProviders(t *testing.T) {
	cases := []struct {
		name           string
		cfg            config.Config
		wantTranscribe string
		wantSummarizer bool
	}{
		{
			name:           "no key",
			cfg:            config.Config{Server: config.ServerConfig{Transcriber: config.TranscriberOpenAI}},
			wantTranscribe: "",
		},
		{
			name: "openai",
			cfg: config.Config{
				Server: config.ServerConfig{Transcriber: config.TranscriberOpenAI},
				OpenAI: config.OpenAIConfig{APIKey: "sk-test"},
			},
			wantTranscribe: "openai",
			wantSummarizer: true,
		},
		{
			name:           "whisperx without key",
			cfg:            config.Config{Server: config.ServerConfig{Transcriber: config.TranscriberWhisperx}},
			wantTranscribe: "whisperx",
		},
		{
			name: "whisperx with key",
			cfg: config.Config{
				Server: config.ServerConfig{Transcriber: config.TranscriberWhisperx},
				OpenAI: config.OpenAIConfig{APIKey: "sk-test"},
			},
			wantTranscribe: "whisperx",
			wantSummarizer: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr, s, err := newProviders(&tc.cfg, quiet)
			if err != nil {
				t.Fatalf("newProviders: %v", err)
			}

			var got string
			switch tr.(type) {
			case nil:
			case *openai.Provider:
				got = "openai"
			case whisperx.Transcriber:
				got = "whisperx"
			default:
				t.Fatalf("unexpected transcriber %T", tr)
			}
			if got != tc.wantTranscribe {
				t.Errorf("transcriber = %q, want %q", got, tc.wantTranscribe)
			}
			if (s != nil) != tc.wantSummarizer {
				t.Errorf("summarizer = %v, want present=%v", s, tc.wantSummarizer)
			}
		})
	}
}
