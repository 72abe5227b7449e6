// Package config defines the configuration schema shared by the relay server
// and the local client commands.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// TranscriberKind selects the speech-to-text backend of the relay.
type TranscriberKind string

const (
	// TranscriberOpenAI sends audio to the OpenAI transcription endpoint.
	TranscriberOpenAI TranscriberKind = "openai"

	// TranscriberWhisperx runs the local whisperx CLI.
	TranscriberWhisperx TranscriberKind = "whisperx"
)

// IsValid reports whether k names a known backend.
func (k TranscriberKind) IsValid() bool {
	switch k {
	case TranscriberOpenAI, TranscriberWhisperx:
		return true
	}
	return false
}

const (
	DefaultListenAddr     = ":4000"
	DefaultAllowOrigin    = "*"
	DefaultMaxUploadBytes = 25 << 20
	DefaultOpenAITimeout  = 2 * time.Minute
	DefaultDBPath         = "memos.db"
	DefaultWhisperxBinary = "whisperx"
)

type (
	// Config is the root configuration.
	Config struct {
		Server   ServerConfig   `yaml:"server"`
		OpenAI   OpenAIConfig   `yaml:"openai"`
		Whisperx WhisperxConfig `yaml:"whisperx"`
		Client   ClientConfig   `yaml:"client"`
	}

	// ServerConfig holds the relay's network and behaviour settings.
	ServerConfig struct {
		// ListenAddr is the TCP address to listen on (e.g., ":4000").
		ListenAddr string `yaml:"listen_addr"`

		// CORSAllowOrigin is sent as Access-Control-Allow-Origin on every response.
		CORSAllowOrigin string `yaml:"cors_allow_origin"`

		// MaxUploadBytes caps the audio part of an upload.
		MaxUploadBytes int64 `yaml:"max_upload_bytes"`

		LogLevel LogLevel `yaml:"log_level"`

		Transcriber TranscriberKind `yaml:"transcriber"`
	}

	// OpenAIConfig holds the provider credential and model selection.
	// An empty APIKey leaves the relay running without a transcriber.
	OpenAIConfig struct {
		APIKey          string        `yaml:"api_key"`
		BaseURL         string        `yaml:"base_url"`
		TranscribeModel string        `yaml:"transcribe_model"`
		SummaryModel    string        `yaml:"summary_model"`
		Timeout         time.Duration `yaml:"timeout"`
	}

	// WhisperxConfig configures the local CLI backend.
	WhisperxConfig struct {
		Binary   string `yaml:"binary"`
		Model    string `yaml:"model"`
		Language string `yaml:"language"`
		TempDir  string `yaml:"temp_dir"`
	}

	// ClientConfig is used by the upload and listing commands.
	ClientConfig struct {
		// BaseURL is the relay server root, without /api/transcribe.
		BaseURL string `yaml:"base_url"`

		// DBPath is the SQLite file holding the local transcript list.
		DBPath string `yaml:"db_path"`
	}
)

// ApplyDefaults fills zero values with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.CORSAllowOrigin == "" {
		c.Server.CORSAllowOrigin = DefaultAllowOrigin
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Server.Transcriber == "" {
		c.Server.Transcriber = TranscriberOpenAI
	}
	if c.OpenAI.Timeout == 0 {
		c.OpenAI.Timeout = DefaultOpenAITimeout
	}
	if c.Whisperx.Binary == "" {
		c.Whisperx.Binary = DefaultWhisperxBinary
	}
	if c.Client.DBPath == "" {
		c.Client.DBPath = DefaultDBPath
	}
}
