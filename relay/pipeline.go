package relay

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"memos/b3"
	"memos/observe"
)

const (
	stageTranscribe = "transcribe"
	stageSummarize  = "summarize"
)

type (
	result struct {
		transcript string
		summary    string
	}

	// stageError is a provider failure. Its message is the provider's own.
	stageError struct {
		stage string
		err   error
	}
)

func (e *stageError) Error() string   { return e.err.Error() }
func (e *stageError) Unwrap() []error { return []error{ErrExternalService, e.err} }

func (h *Handler) transcribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := observe.Logger(ctx)

	if h.transcriber == nil {
		log.Error("transcribe request rejected", "err", ErrNotConfigured)
		h.writeError(w, http.StatusInternalServerError, ErrNotConfigured.Error())
		return
	}

	audio, err := readUpload(r, h.maxUploadBytes)
	switch {
	case errors.Is(err, ErrNoAudio):
		h.recordRejected(ctx, "no_audio")
		h.writeError(w, http.StatusBadRequest, ErrNoAudio.Error())
		return
	case errors.Is(err, ErrPayloadTooLarge):
		h.recordRejected(ctx, "too_large")
		log.Warn("upload rejected", "err", err, "limit_bytes", h.maxUploadBytes)
		h.writeError(w, http.StatusRequestEntityTooLarge, ErrPayloadTooLarge.Error())
		return
	case err != nil:
		log.Error("parsing upload", "err", err)
		h.writeError(w, http.StatusInternalServerError, message(err))
		return
	}

	log = log.With("audio", b3.Short(b3.HashBytes(audio.Data)))
	log.Info("upload received",
		"bytes", len(audio.Data),
		"filename", audio.Filename,
		"mime", audio.MIMEType,
	)
	if h.metrics != nil {
		h.metrics.UploadSize.Record(ctx, int64(len(audio.Data)))
	}

	res, err := h.run(ctx, audio)
	if err != nil {
		var se *stageError
		if errors.As(err, &se) {
			log = log.With("stage", se.stage)
		}
		log.Error("transcription or summarization failed", "err", err)
		h.writeError(w, http.StatusInternalServerError, message(err))
		return
	}

	log.Info("upload transcribed",
		"transcript_chars", len(res.transcript),
		"summary_chars", len(res.summary),
	)
	h.writeJSON(w, http.StatusOK, transcribeResponse{
		Transcript: nullable(res.transcript),
		Summary:    nullable(res.summary),
	})
}

// run transcribes audio and, only when that produced text, summarizes it.
func (h *Handler) run(ctx context.Context, audio Audio) (result, error) {
	text, err := h.stage(ctx, stageTranscribe, h.transcribeTimeout, func(ctx context.Context) (string, error) {
		return h.transcriber.Transcribe(ctx, audio)
	})
	if err != nil {
		return result{}, err
	}

	res := result{transcript: strings.TrimSpace(text)}
	if res.transcript == "" || h.summarizer == nil {
		return res, nil
	}

	summary, err := h.stage(ctx, stageSummarize, h.summarizeTimeout, func(ctx context.Context) (string, error) {
		return h.summarizer.Summarize(ctx, SummaryInstruction, res.transcript)
	})
	if err != nil {
		return result{}, err
	}
	res.summary = strings.TrimSpace(summary)
	return res, nil
}

func (h *Handler) stage(ctx context.Context, name string, timeout time.Duration, call func(context.Context) (string, error)) (string, error) {
	ctx, span := observe.StartSpan(ctx, "relay."+name)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	out, err := call(ctx)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if h.metrics != nil {
		hist := h.metrics.TranscribeDuration
		if name == stageSummarize {
			hist = h.metrics.SummarizeDuration
		}
		hist.Record(ctx, elapsed.Seconds(), metric.WithAttributes(observe.Attr("status", status)))
		h.metrics.RecordProviderRequest(ctx, name, status)
	}

	if err != nil {
		return "", &stageError{stage: name, err: err}
	}
	return out, nil
}

func (h *Handler) recordRejected(ctx context.Context, reason string) {
	if h.metrics != nil {
		h.metrics.RecordRejectedUpload(ctx, reason)
	}
}

// message is the text sent to the client for err.
func message(err error) string {
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		return errUnknown.Error()
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return errUnknown.Error()
}
