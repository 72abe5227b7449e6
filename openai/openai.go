// Package openai provides the relay's speech-to-text and summarization
// providers backed by the OpenAI API.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"memos/relay"
)

const (
	DefaultTranscribeModel = "gpt-4o-mini-transcribe"
	DefaultSummaryModel    = "gpt-4o-mini"
)

var (
	_ relay.Transcriber = (*Provider)(nil)
	_ relay.Summarizer  = (*Provider)(nil)
)

// Provider calls the audio transcription and chat completion endpoints.
type Provider struct {
	client          oai.Client
	transcribeModel string
	summaryModel    string
}

type config struct {
	baseURL         string
	timeout         time.Duration
	maxRetries      int
	transcribeModel string
	summaryModel    string
	httpClient      *http.Client
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithMaxRetries sets how often the SDK retries failed requests. Negative
// values keep the SDK default.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		c.maxRetries = n
	}
}

// WithHTTPClient replaces the HTTP client. It takes precedence over WithTimeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// WithTranscribeModel selects the speech-to-text model.
func WithTranscribeModel(model string) Option {
	return func(c *config) {
		c.transcribeModel = model
	}
}

// WithSummaryModel selects the chat model used for summaries.
func WithSummaryModel(model string) Option {
	return func(c *config) {
		c.summaryModel = model
	}
}

// New constructs a Provider. apiKey must not be empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}

	cfg := &config{
		maxRetries:      -1,
		transcribeModel: DefaultTranscribeModel,
		summaryModel:    DefaultSummaryModel,
	}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.transcribeModel == "" {
		cfg.transcribeModel = DefaultTranscribeModel
	}
	if cfg.summaryModel == "" {
		cfg.summaryModel = DefaultSummaryModel
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.maxRetries >= 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(cfg.maxRetries))
	}
	switch {
	case cfg.httpClient != nil:
		reqOpts = append(reqOpts, option.WithHTTPClient(cfg.httpClient))
	case cfg.timeout > 0:
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{
		client:          oai.NewClient(reqOpts...),
		transcribeModel: cfg.transcribeModel,
		summaryModel:    cfg.summaryModel,
	}, nil
}

// Transcribe implements relay.Transcriber.
func (p *Provider) Transcribe(ctx context.Context, a relay.Audio) (string, error) {
	params := oai.AudioTranscriptionNewParams{
		File:           oai.File(bytes.NewReader(a.Data), a.Filename, a.MIMEType),
		Model:          oai.AudioModel(p.transcribeModel),
		ResponseFormat: oai.AudioResponseFormatJSON,
	}

	res, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: transcribe: %w", err)
	}
	return res.Text, nil
}

// Summarize implements relay.Summarizer. An empty choice list yields "".
func (p *Provider) Summarize(ctx context.Context, instruction, transcript string) (string, error) {
	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.summaryModel),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(instruction),
			oai.UserMessage(transcript),
		},
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: summarize: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
