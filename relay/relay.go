// Package relay implements the HTTP endpoint that accepts an audio upload,
// forwards it to a speech-to-text provider and then to a summarization
// provider, and answers with both results as JSON.
//
// Routes:
//
//	OPTIONS *               204, CORS preflight
//	GET     /health         200 {"status":"ok"}
//	POST    /api/transcribe multipart file field "file"
//
// The upload limit applies to the audio of the first "file" part. Other parts
// are read and discarded without counting against it.
//
// Everything else is a plain-text 404. Every response carries the configured
// Access-Control-Allow-Origin header.
package relay

import (
	"context"
	"net/http"
	"time"

	"memos/observe"
)

const (
	// DefaultMaxUploadBytes is the largest accepted audio file (25 MiB).
	DefaultMaxUploadBytes = 25 << 20

	DefaultTranscribeTimeout = 2 * time.Minute
	DefaultSummarizeTimeout  = time.Minute

	// SummaryInstruction is the fixed system instruction for the summarization call.
	SummaryInstruction = "Summarize the following transcript in at most five concise sentences."

	defaultFilename = "aufnahme.m4a"
	defaultMIMEType = "audio/m4a"
)

type (
	// Audio is one uploaded recording.
	Audio struct {
		Data     []byte
		Filename string
		MIMEType string
	}

	// Transcriber turns audio into plain text.
	Transcriber interface {
		Transcribe(ctx context.Context, a Audio) (string, error)
	}

	// Summarizer condenses a transcript following instruction.
	Summarizer interface {
		Summarize(ctx context.Context, instruction, transcript string) (string, error)
	}

	// Handler is the relay's http.Handler. It holds no per-request state.
	Handler struct {
		transcriber       Transcriber
		summarizer        Summarizer
		allowOrigin       string
		maxUploadBytes    int64
		transcribeTimeout time.Duration
		summarizeTimeout  time.Duration
		metrics           *observe.Metrics
	}

	// Option configures a Handler.
	Option func(*Handler)
)

// WithAllowOrigin sets the Access-Control-Allow-Origin value. Defaults to "*".
func WithAllowOrigin(origin string) Option {
	return func(h *Handler) {
		if origin != "" {
			h.allowOrigin = origin
		}
	}
}

// WithMaxUploadBytes overrides DefaultMaxUploadBytes.
func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// WithTranscribeTimeout bounds the speech-to-text call.
func WithTranscribeTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.transcribeTimeout = d
		}
	}
}

// WithSummarizeTimeout bounds the summarization call.
func WithSummarizeTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.summarizeTimeout = d
		}
	}
}

// WithMetrics records stage latencies and counters into m.
func WithMetrics(m *observe.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// New returns a Handler. A nil Transcriber means no provider credential is
// configured: transcribe requests then fail with 500 while /health keeps
// working. A nil Summarizer yields empty summaries.
func New(t Transcriber, s Summarizer, opts ...Option) *Handler {
	h := &Handler{
		transcriber:       t,
		summarizer:        s,
		allowOrigin:       "*",
		maxUploadBytes:    DefaultMaxUploadBytes,
		transcribeTimeout: DefaultTranscribeTimeout,
		summarizeTimeout:  DefaultSummarizeTimeout,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodOptions:
		h.preflight(w)
	case r.Method == http.MethodGet && r.URL.Path == "/health":
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case r.Method == http.MethodPost && r.URL.Path == "/api/transcribe":
		h.transcribe(w, r)
	default:
		h.writeText(w, http.StatusNotFound, "route not found")
	}
}

func (h *Handler) preflight(w http.ResponseWriter) {
	hdr := w.Header()
	hdr.Set("Access-Control-Allow-Origin", h.allowOrigin)
	hdr.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	hdr.Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
	w.WriteHeader(http.StatusNoContent)
}
