package cmd

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thiagokokada/gitstatus-go/internal/buildinfo"
	"github.com/thiagokokada/gitstatus-go/internal/config"
	"github.com/thiagokokada/gitstatus-go/internal/git"
	"github.com/thiagokokada/gitstatus-go/internal/watch"
)

func Run() error {
	return run(os.Args[1:], os.Stdout)
}

func run(args []string, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("gitstatus-go", flag.ContinueOnError)
	backendName := fs.String("backend", defaultString(cfg.Backend, "native"), "repository backend: native or cli")
	jsonOut := fs.Bool("json", cfg.JSON, "print the snapshot as JSON")
	watchMode := fs.Bool("watch", false, "recompute the snapshot when the repository changes")
	verbose := fs.Bool("verbose", false, "enable verbose logging")
	showVersion := fs.Bool("version", false, "print version information and exit")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil
		}
		return err
	}
	if *showVersion {
		fmt.Fprintln(out, buildinfo.Version())
		return nil
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var opts git.Options
	switch *backendName {
	case "native":
	case "cli":
		opts.UseCLI = true
	default:
		return fmt.Errorf("unknown backend %q (want native or cli)", *backendName)
	}

	dir := "."
	if remaining := fs.Args(); len(remaining) > 0 {
		dir = remaining[len(remaining)-1]
	}

	render := func() error {
		snap, ok, err := git.Status(dir, opts)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(out, "not a git repository: %s\n", dir)
			return nil
		}
		return renderSnapshot(out, snap, *jsonOut)
	}
	if err := render(); err != nil {
		return err
	}
	if !*watchMode {
		return nil
	}

	delay := watch.DefaultDelay
	if cfg.DebounceMS > 0 {
		delay = time.Duration(cfg.DebounceMS) * time.Millisecond
	}
	w, err := watch.New(dir, delay, func() {
		if err := render(); err != nil {
			slog.Error("status", slog.Any("error", err))
		}
	})
	if err != nil {
		return err
	}
	defer w.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	return nil
}

func renderSnapshot(out io.Writer, snap *git.Snapshot, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	branch := snap.Branch
	switch {
	case snap.Unborn && branch != "":
		branch += " (unborn)"
	case snap.Unborn:
		branch = "(unborn)"
	case snap.Detached:
		branch = "(detached)"
	}
	fmt.Fprintf(out, "branch:   %s\n", branch)
	if snap.Commit != "" {
		fmt.Fprintf(out, "commit:   %s\n", snap.Commit)
	}
	if snap.Upstream != "" {
		upstream := snap.Upstream
		if snap.RemoteName != "" {
			upstream += " @ " + snap.RemoteName
		}
		if snap.RemoteURL != "" {
			upstream += " (" + snap.RemoteURL + ")"
		}
		fmt.Fprintf(out, "upstream: %s\n", upstream)
		fmt.Fprintf(out, "ahead:    %d\n", snap.Ahead)
		fmt.Fprintf(out, "behind:   %d\n", snap.Behind)
	}
	if snap.State != "" {
		fmt.Fprintf(out, "state:    %s\n", snap.State)
	}
	fmt.Fprintf(out, "stashes:  %d\n", snap.Stashes)
	return nil
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
