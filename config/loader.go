package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Load builds the configuration from the optional YAML file at path and the
// process environment, then applies defaults and validates the result. An
// empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()

		if err := decode(f, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	ApplyEnv(cfg, os.LookupEnv)
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// it. The environment is not consulted.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	if err := decode(r, cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg with the environment variables that are set.
// Empty values are ignored.
func ApplyEnv(cfg *Config, lookup LookupFunc) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	var port string
	set("PORT", &port)
	if port != "" {
		if strings.Contains(port, ":") {
			cfg.Server.ListenAddr = port
		} else {
			cfg.Server.ListenAddr = ":" + port
		}
	}

	set("CORS_ALLOW_ORIGIN", &cfg.Server.CORSAllowOrigin)

	var level, kind string
	set("LOG_LEVEL", &level)
	if level != "" {
		cfg.Server.LogLevel = LogLevel(strings.ToLower(level))
	}
	set("TRANSCRIBER", &kind)
	if kind != "" {
		cfg.Server.Transcriber = TranscriberKind(strings.ToLower(kind))
	}

	set("OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	set("OPENAI_BASE_URL", &cfg.OpenAI.BaseURL)
	set("API_BASE_URL", &cfg.Client.BaseURL)
	set("MEMOS_DB", &cfg.Client.DBPath)
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.Transcriber != "" && !cfg.Server.Transcriber.IsValid() {
		errs = append(errs, fmt.Errorf("server.transcriber %q is invalid; valid values: openai, whisperx", cfg.Server.Transcriber))
	}
	if cfg.Server.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes must be positive, got %d", cfg.Server.MaxUploadBytes))
	}
	if cfg.OpenAI.Timeout < 0 {
		errs = append(errs, fmt.Errorf("openai.timeout must not be negative, got %s", cfg.OpenAI.Timeout))
	}
	if err := validateURL("openai.base_url", cfg.OpenAI.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL("client.base_url", cfg.Client.BaseURL); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s %q must be an absolute http(s) URL", field, raw)
	}
	return nil
}
