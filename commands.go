package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"memos/client"
	"memos/config"
	"memos/transcripts"
)

type (
	env struct {
		cfg *config.Config
		db  *sql.DB
		log *slog.Logger
		out io.Writer
	}

	command func(ctx context.Context, e env, args []string) error
)

var commands = map[string]command{
	"upload": cmdUpload,
	"list":   cmdList,
	"show":   cmdShow,
	"delete": cmdDelete,
	"clear":  cmdClear,
}

func (e env) store() *transcripts.Store {
	return transcripts.NewStore(transcripts.NewSQLiteSlot(e.db, ""), transcripts.WithLogger(e.log))
}

func cmdUpload(ctx context.Context, e env, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	elapsed := fs.Duration("elapsed", 0, "recording length, used to store the duration")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: upload takes exactly one file", errUsage)
	}

	rec := client.Recording{Path: fs.Arg(0)}
	if *elapsed > 0 {
		rec.StartedAt = time.Now().Add(-*elapsed)
	}

	c := client.New(e.cfg.Client.BaseURL, e.store(), client.WithLogger(e.log))
	res, err := c.Transcribe(ctx, rec)
	if err != nil {
		return fmt.Errorf("upload: %s", client.Message(err))
	}

	fmt.Fprintln(e.out, res.Transcript)
	if res.Summary != nil {
		fmt.Fprintf(e.out, "\nSummary: %s\n", *res.Summary)
	}
	if res.Record != nil {
		fmt.Fprintf(e.out, "\nsaved as %s\n", res.Record.ID)
	} else {
		fmt.Fprintf(e.out, "\nnot saved: %v\n", res.StoreErr)
	}
	return nil
}

func cmdList(ctx context.Context, e env, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: list takes no arguments", errUsage)
	}

	list := e.store().List(ctx)
	if len(list) == 0 {
		fmt.Fprintln(e.out, "no transcripts")
		return nil
	}

	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tDURATION\tTRANSCRIPT")
	for _, t := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, t.CreatedAt.Local().Format(time.DateTime), formatDuration(t.Duration), preview(t.Transcript, 60))
	}
	return tw.Flush()
}

func cmdShow(ctx context.Context, e env, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: show takes one id", errUsage)
	}

	t, ok := e.store().Get(ctx, args[0])
	if !ok {
		return fmt.Errorf("transcript %q not found", args[0])
	}

	fmt.Fprintf(e.out, "ID:       %s\n", t.ID)
	fmt.Fprintf(e.out, "Created:  %s\n", t.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(e.out, "Duration: %s\n", formatDuration(t.Duration))
	if s := t.SummaryText(); s != "" {
		fmt.Fprintf(e.out, "Summary:  %s\n", s)
	}
	fmt.Fprintf(e.out, "\n%s\n", t.Transcript)
	return nil
}

func cmdDelete(ctx context.Context, e env, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: delete takes one id", errUsage)
	}
	if err := e.store().Delete(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "deleted %s\n", args[0])
	return nil
}

func cmdClear(ctx context.Context, e env, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: clear takes no arguments", errUsage)
	}
	if err := e.store().Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "cleared")
	return nil
}

func formatDuration(secs *float64) string {
	if secs == nil {
		return "-"
	}
	return (time.Duration(*secs * float64(time.Second))).Round(time.Second).String()
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func initDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	_, err = db.ExecContext(ctx, `
	PRAGMA busy_timeout       = 10000;
	PRAGMA journal_mode       = WAL;
	PRAGMA journal_size_limit = 200000000;
	PRAGMA synchronous        = NORMAL;
	PRAGMA temp_store         = MEMORY;
	PRAGMA cache_size         = -16000;`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring sqlite db: %w", err)
	}

	if err := transcripts.MigrateSQLite(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
