package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"memos/relay"
)

type fixedTranscriber string

func (f fixedTranscriber) Transcribe(context.Context, relay.Audio) (string, error) {
	return string(f), nil
}

type fixedSummarizer string

func (f fixedSummarizer) Summarize(context.Context, string, string) (string, error) {
	return string(f), nil
}

// testEnv writes a config pointing at a fresh database and the given relay.
func testEnv(t *testing.T, baseURL string) string {
	t.Helper()
	t.Setenv("MEMOS_DB", "")
	t.Setenv("API_BASE_URL", "")
	t.Setenv("LOG_LEVEL", "")

	dir := t.TempDir()
	cfg := fmt.Sprintf("server:\n  log_level: error\nclient:\n  base_url: %q\n  db_path: %q\n",
		baseURL, filepath.Join(dir, "memos.db"))
	path := filepath.Join(dir, "memos.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCmd(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), append([]string{"-config", cfgPath}, args...), &out)
	return out.String(), err
}

func recordingFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memo.m4a")
	if err := os.WriteFile(path, []byte("audio"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_Usage(t *testing.T) {
	if err := run(context.Background(), nil, &bytes.Buffer{}); !errors.Is(err, errUsage) {
		t.Errorf("no args: err = %v, want errUsage", err)
	}

	cfg := testEnv(t, "")
	if _, err := runCmd(t, cfg, "frobnicate"); !errors.Is(err, errUsage) {
		t.Errorf("unknown command: err = %v, want errUsage", err)
	}
	if _, err := runCmd(t, cfg, "show"); !errors.Is(err, errUsage) {
		t.Errorf("show without id: err = %v, want errUsage", err)
	}
}

func TestRun_UploadListShowDelete(t *testing.T) {
	srv := httptest.NewServer(relay.New(fixedTranscriber("Hallo Welt"), fixedSummarizer("Eine Begrüßung.")))
	defer srv.Close()
	cfg := testEnv(t, srv.URL)

	out, err := runCmd(t, cfg, "list")
	if err != nil || !strings.Contains(out, "no transcripts") {
		t.Fatalf("empty list: %q, %v", out, err)
	}

	out, err = runCmd(t, cfg, "upload", "-elapsed", "90s", recordingFile(t))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.Contains(out, "Hallo Welt") || !strings.Contains(out, "Summary: Eine Begrüßung.") {
		t.Errorf("upload output = %q", out)
	}
	m := regexp.MustCompile(`saved as (\d+)`).FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("upload output has no id: %q", out)
	}
	id := m[1]

	out, err = runCmd(t, cfg, "list")
	if err != nil || !strings.Contains(out, id) || !strings.Contains(out, "Hallo Welt") {
		t.Errorf("list: %q, %v", out, err)
	}

	out, err = runCmd(t, cfg, "show", id)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "Duration: 1m30s") || !strings.Contains(out, "Summary:  Eine Begrüßung.") {
		t.Errorf("show output = %q", out)
	}

	if _, err := runCmd(t, cfg, "delete", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := runCmd(t, cfg, "show", id); err == nil {
		t.Error("show after delete succeeded")
	}
}

func TestRun_Clear(t *testing.T) {
	srv := httptest.NewServer(relay.New(fixedTranscriber("eins"), nil))
	defer srv.Close()
	cfg := testEnv(t, srv.URL)

	for i := 0; i < 2; i++ {
		if _, err := runCmd(t, cfg, "upload", recordingFile(t)); err != nil {
			t.Fatalf("upload: %v", err)
		}
	}
	if _, err := runCmd(t, cfg, "clear"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	out, err := runCmd(t, cfg, "list")
	if err != nil || !strings.Contains(out, "no transcripts") {
		t.Errorf("list after clear: %q, %v", out, err)
	}
}

func TestRun_UploadWithoutBackend(t *testing.T) {
	cfg := testEnv(t, "")
	_, err := runCmd(t, cfg, "upload", recordingFile(t))
	if err == nil || !strings.Contains(err.Error(), "no backend URL is configured") {
		t.Fatalf("err = %v", err)
	}
}

func TestRun_UploadEmptyTranscript(t *testing.T) {
	srv := httptest.NewServer(relay.New(fixedTranscriber("   "), nil))
	defer srv.Close()
	cfg := testEnv(t, srv.URL)

	if _, err := runCmd(t, cfg, "upload", recordingFile(t)); err == nil || !strings.Contains(err.Error(), "no transcript") {
		t.Fatalf("err = %v", err)
	}
	out, _ := runCmd(t, cfg, "list")
	if !strings.Contains(out, "no transcripts") {
		t.Errorf("list = %q, want nothing stored", out)
	}
}

func TestPreview(t *testing.T) {
	if got := preview("  Hallo\n  Welt ", 20); got != "Hallo Welt" {
		t.Errorf("preview = %q", got)
	}
	if got := preview("abcdefghij", 5); got != "abcd…" {
		t.Errorf("preview = %q", got)
	}
}
