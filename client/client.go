// Package client uploads recorded audio to the relay server and stores the
// returned transcript locally.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"memos/transcripts"
)

const (
	transcribePath = "/api/transcribe"
	uploadMIMEType = "audio/m4a"

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 64 << 10
)

type (
	// Saver persists a transcription result. *transcripts.Store implements it.
	Saver interface {
		Save(ctx context.Context, transcript string, summary *string, duration *float64) (transcripts.Transcript, error)
	}

	// Recording is a finished capture handed over by the recorder.
	Recording struct {
		Path string
		// StartedAt is when capture began. Zero means the duration is unknown.
		StartedAt time.Time
	}

	// Result is what Transcribe surfaces to the caller.
	Result struct {
		Transcript string
		Summary    *string
		// Record is nil when storing failed, see StoreErr.
		Record   *transcripts.Transcript
		StoreErr error
	}

	// Client talks to one relay server.
	Client struct {
		baseURL string
		store   Saver
		http    *http.Client
		now     func() time.Time
		log     *slog.Logger
	}

	// Option configures a Client.
	Option func(*Client)

	relayResponse struct {
		Transcript *string `json:"transcript"`
		Summary    *string `json:"summary"`
		Error      *string `json:"error"`
	}
)

// WithHTTPClient replaces the default client, which times out after 5 minutes.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithClock overrides the time source for file names and durations.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithLogger sets the logger for swallowed storage failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// New returns a Client for the relay at baseURL. An empty baseURL is accepted
// here and reported by Transcribe.
func New(baseURL string, store Saver, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSpace(baseURL),
		store:   store,
		http:    &http.Client{Timeout: 5 * time.Minute},
		now:     time.Now,
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Transcribe uploads rec and saves the transcript. A failure to save is
// logged and reported in Result.StoreErr; the call still succeeds.
func (c *Client) Transcribe(ctx context.Context, rec Recording) (Result, error) {
	if c.baseURL == "" {
		return Result{}, ErrConfiguration
	}

	audio, err := os.ReadFile(rec.Path)
	if err != nil {
		return Result{}, fmt.Errorf("reading recording: %w", err)
	}

	body, contentType, err := c.buildUpload(audio)
	if err != nil {
		return Result{}, err
	}

	endpoint := strings.TrimSuffix(c.baseURL, "/") + transcribePath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return Result{}, fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("sending upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, errorFromResponse(resp)
	}

	var rr relayResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return Result{}, fmt.Errorf("decoding relay response: %w", err)
	}
	if rr.Error != nil && strings.TrimSpace(*rr.Error) != "" {
		return Result{}, &RequestError{Message: strings.TrimSpace(*rr.Error)}
	}

	text := trimmed(rr.Transcript)
	if text == "" {
		return Result{}, ErrNoTranscript
	}

	res := Result{Transcript: text}
	if s := trimmed(rr.Summary); s != "" {
		res.Summary = &s
	}

	saved, err := c.store.Save(ctx, res.Transcript, res.Summary, c.duration(rec.StartedAt))
	if err != nil {
		c.log.ErrorContext(ctx, "storing transcript", "err", err)
		res.StoreErr = err
		return res, nil
	}
	res.Record = &saved
	return res, nil
}

// buildUpload encodes audio as the single "file" part.
func (c *Client) buildUpload(audio []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	filename := "aufnahme-" + strconv.FormatInt(c.now().UnixMilli(), 10) + ".m4a"
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", uploadMIMEType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("building upload: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", fmt.Errorf("building upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("building upload: %w", err)
	}

	return &buf, mw.FormDataContentType(), nil
}

// duration is the elapsed recording time in seconds, rounded half up to the
// nearest millisecond.
func (c *Client) duration(startedAt time.Time) *float64 {
	if startedAt.IsZero() {
		return nil
	}
	elapsed := c.now().Sub(startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	secs, _ := decimal.New(elapsed.Nanoseconds(), -9).Round(3).Float64()
	return &secs
}

func errorFromResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	text := strings.TrimSpace(string(raw))

	var rr relayResponse
	if json.Unmarshal(raw, &rr) == nil {
		if msg := trimmed(rr.Error); msg != "" {
			text = msg
		}
	}
	if text == "" {
		text = "the transcription service returned an error"
	}
	return &RequestError{StatusCode: resp.StatusCode, Message: text}
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
