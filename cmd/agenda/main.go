// Command agenda is the staff client: sign in, follow the calendar live,
// book, move, cancel and print appointments.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"workshop-agenda/internal/identity"
	"workshop-agenda/internal/logger"
	"workshop-agenda/internal/rpc"
)

type app struct {
	client  *rpc.Client
	session *identity.Session
	loc     *time.Location
	log     *zap.Logger
}

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"register":   {"register -email E -name NAME -password P", cmdRegister},
	"login":      {"login -email E -password P", cmdLogin},
	"logout":     {"logout", cmdLogout},
	"whoami":     {"whoami", cmdWhoami},
	"profile":    {"profile [-name N] [-phone P] [-address A] [-photo URL]", cmdProfile},
	"list":       {"list [-from DATE] [-to DATE]", cmdList},
	"watch":      {"watch", cmdWatch},
	"show":       {"show -id ID", cmdShow},
	"history":    {"history -plate PLATE", cmdHistory},
	"new":        {"new -at 'YYYY-MM-DD HH:MM' -client NAME [fields]", cmdNew},
	"link":       {"link -at 'YYYY-MM-DD HH:MM' [-qr FILE.png]", cmdLink},
	"edit":       {"edit -id ID [fields]", cmdEdit},
	"move":       {"move -id ID -at 'YYYY-MM-DD HH:MM'", cmdMove},
	"cancel":     {"cancel -id ID [-yes]", cmdCancel},
	"reactivate": {"reactivate -id ID", cmdReactivate},
	"delete":     {"delete -id ID (admin)", cmdDelete},
	"print":      {"print -id ID [-o FILE.pdf]", cmdPrint},
	"fill":       {"fill -id LINK_ID [fields]", cmdFill},
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: agenda <command> [flags]")
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[n].usage)
	}
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		usage()
		os.Exit(2)
	}

	lg, err := logger.New(false, env("AGENDA_LOG_LEVEL", "warn"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer lg.Sync()

	a, err := setup(lg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "agenda:", err)
		os.Exit(1)
	}
	defer a.client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cmd.run(ctx, a, os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "agenda:", describe(err))
		os.Exit(1)
	}
}

func setup(lg *zap.Logger) (*app, error) {
	loc, err := time.LoadLocation(env("TIMEZONE", "America/Sao_Paulo"))
	if err != nil {
		return nil, err
	}
	path := os.Getenv("AGENDA_SESSION")
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "workshop-agenda", "session.yaml")
	}

	client, err := rpc.Dial(env("AGENDA_ADDR", "localhost:50051"), lg)
	if err != nil {
		return nil, err
	}
	session := identity.NewSession(client, path)
	if err := session.Load(); err != nil {
		client.Close()
		return nil, fmt.Errorf("session %s: %w", path, err)
	}
	client.UseTokens(session)
	return &app{client: client, session: session, loc: loc, log: lg}, nil
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
