package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"memos/config"
	"memos/observe"
)

var version = "dev"

const usage = `usage: memos [-config file] <command> [arguments]

commands:
  serve                       run the relay server
  upload [-elapsed d] <file>  transcribe a recording and store the result
  list                        list stored transcripts, newest first
  show <id>                   print one stored transcript
  delete <id>                 remove one stored transcript
  clear                       remove all stored transcripts
`

var errUsage = errors.New("invalid usage")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "memos: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("memos", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", "", "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	log := observe.NewLogger(string(cfg.Server.LogLevel))
	slog.SetDefault(log)

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	if cmd == "serve" {
		return runServer(ctx, cfg, log)
	}

	c, ok := commands[cmd]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	db, err := initDB(ctx, cfg.Client.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	return c(ctx, env{cfg: cfg, db: db, log: log, out: stdout}, rest)
}
