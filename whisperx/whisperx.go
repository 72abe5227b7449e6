package whisperx

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"memos/b3"
	"memos/relay"
)

type (
	transcribeResult struct {
		Segments []segment `json:"segments"`
		Language string    `json:"language"`
	}

	segment struct {
		Text  string          `json:"text"`
		Start decimal.Decimal `json:"start"`
		End   decimal.Decimal `json:"end"`
	}

	// Result is the decoded whisperx output.
	Result struct {
		Text     string
		Language string
		// Spoken is the end of the last segment.
		Spoken decimal.Decimal
	}
)

// Transcriber runs the whisperx CLI on a temporary copy of each upload.
type Transcriber struct {
	Binary   string
	Model    string
	Language string
	// TempDir is where per-upload work directories are created. Empty means os.TempDir.
	TempDir string
}

var _ relay.Transcriber = Transcriber{}

func (w Transcriber) Transcribe(ctx context.Context, a relay.Audio) (string, error) {
	digest := b3.Short(b3.HashBytes(a.Data))

	dir, err := os.MkdirTemp(w.TempDir, "whisperx-"+digest+"-")
	if err != nil {
		return "", fmt.Errorf("transcribing with whisperx: creating work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	ext := filepath.Ext(a.Filename)
	if ext == "" {
		ext = ".m4a"
	}
	audioPath := filepath.Join(dir, digest+ext)
	if err := os.WriteFile(audioPath, a.Data, 0o600); err != nil {
		return "", fmt.Errorf("transcribing with whisperx: writing audio: %w", err)
	}

	if err := w.run(ctx, audioPath, dir); err != nil {
		return "", err
	}

	f, err := os.Open(filepath.Join(dir, digest+".json"))
	if err != nil {
		return "", fmt.Errorf("opening whisperx transcribe result: %w", err)
	}
	defer f.Close()

	res, err := decodeResult(f)
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "whisperx finished",
		"audio", digest,
		"language", res.Language,
		"spoken_seconds", res.Spoken.StringFixed(2),
	)
	return res.Text, nil
}

func (w Transcriber) run(ctx context.Context, audioPath, outDir string) error {
	cmd := exec.CommandContext(ctx, w.binary(), w.args(audioPath, outDir)...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("transcribing with whisperx: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("transcribing with whisperx: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("transcribing with whisperx: starting: %w", err)
	}

	done := make(chan struct{}, 2)
	go logLines(ctx, stderr, done)
	go logLines(ctx, stdout, done)
	<-done
	<-done

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("transcribing with whisperx: %w", err)
	}
	return nil
}

func (w Transcriber) binary() string {
	if w.Binary == "" {
		return "whisperx"
	}
	return w.Binary
}

func (w Transcriber) args(audioPath, outDir string) []string {
	args := []string{audioPath, "--output_format", "json", "--output_dir", outDir}
	if w.Model != "" {
		args = append(args, "--model", w.Model)
	}
	if w.Language != "" {
		args = append(args, "--language", w.Language)
	}
	return args
}

func logLines(ctx context.Context, r io.Reader, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanLines)
	for scanner.Scan() {
		slog.DebugContext(ctx, scanner.Text(), "source", "whisperx")
	}
}

func decodeResult(r io.Reader) (Result, error) {
	var tr transcribeResult
	if err := json.NewDecoder(r).Decode(&tr); err != nil {
		return Result{}, fmt.Errorf("decoding whisperx json result: %w", err)
	}

	texts := make([]string, 0, len(tr.Segments))
	spoken := decimal.Zero
	for _, s := range tr.Segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			texts = append(texts, t)
		}
		if s.End.GreaterThan(spoken) {
			spoken = s.End
		}
	}

	return Result{
		Text:     strings.Join(texts, " "),
		Language: tr.Language,
		Spoken:   spoken,
	}, nil
}
