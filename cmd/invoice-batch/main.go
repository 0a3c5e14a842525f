package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-reader/constants"
	"github.com/joseph-ayodele/invoice-reader/internal/app"
	"github.com/joseph-ayodele/invoice-reader/internal/async"
	"github.com/joseph-ayodele/invoice-reader/internal/common"
	"github.com/joseph-ayodele/invoice-reader/internal/export"
	"github.com/joseph-ayodele/invoice-reader/internal/ingest"
	"github.com/joseph-ayodele/invoice-reader/internal/pipeline"
	"github.com/joseph-ayodele/invoice-reader/internal/session"
	"github.com/joseph-ayodele/invoice-reader/internal/sink"
)

// fileList collects repeated -file flags; each value may also be comma separated.
type fileList []string

func (f *fileList) String() string { return strings.Join(*f, ",") }

func (f *fileList) Set(v string) error {
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			*f = append(*f, p)
		}
	}
	return nil
}

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var files fileList
	var (
		dir        = flag.String("dir", "", "directory of invoice PDFs (walked recursively)")
		out        = flag.String("out", constants.DefaultCSVFile, "output CSV path (appended to)")
		xlsx       = flag.String("xlsx", "", "also write an Excel workbook of the CSV to this path")
		watch      = flag.Bool("watch", false, "keep watching -dir for new PDFs until interrupted")
		skipHidden = flag.Bool("skip-hidden", true, "ignore dot files and dot directories")
		debounce   = flag.Duration("debounce", 500*time.Millisecond, "watch mode: settle time before a new file is processed")
	)
	flag.Var(&files, "file", "invoice PDF to process (repeatable or comma separated)")
	flag.Parse()

	if *dir == "" && len(files) == 0 {
		printError("Error: --dir or --file is required\n")
		os.Exit(2)
	}
	if *watch && *dir == "" {
		printError("Error: --watch needs --dir\n")
		os.Exit(2)
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}
	logger := common.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	proc, err := app.NewProcessor(cfg, nil, logger)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.New(uuid.NewString(), sink.NewCSVSink(*out, logger), "")
	var stats pipeline.DirStats
	record := func(o pipeline.Outcome) {
		stats.Scanned++
		stats.Matched++
		switch {
		case o.OK():
			stats.Succeeded++
		case o.Status == constants.FileStatusSkippedDuplicate:
			stats.Skipped++
		default:
			stats.Failed++
		}
		printOutcome(o)
	}

	for _, f := range files {
		name := filepath.Base(f)
		if !constants.IsAllowedExt(filepath.Ext(name)) {
			record(pipeline.Outcome{File: name, Status: constants.FileStatusRejected, Error: "not a .pdf file"})
			continue
		}
		record(proc.ProcessFile(ctx, sess, name, f))
	}

	switch {
	case *watch:
		if err := watchDir(ctx, proc, sess, *dir, *skipHidden, *debounce, record, logger); err != nil {
			printError("Error: %v\n", err)
			os.Exit(1)
		}
	case *dir != "":
		outcomes, ds, err := proc.ProcessDirectory(ctx, sess, *dir, *skipHidden)
		if err != nil {
			printError("Error: %v\n", err)
			os.Exit(1)
		}
		for _, o := range outcomes {
			printOutcome(o)
		}
		stats.Scanned += ds.Scanned
		stats.Matched += ds.Matched
		stats.Succeeded += ds.Succeeded
		stats.Skipped += ds.Skipped
		stats.Failed += ds.Failed
	}

	fmt.Printf("\nscanned=%d matched=%d succeeded=%d skipped=%d failed=%d csv=%s\n",
		stats.Scanned, stats.Matched, stats.Succeeded, stats.Skipped, stats.Failed, sess.Sink.Path())

	if *xlsx != "" {
		b, err := export.NewService(logger).WorkbookFromCSV(sess.Sink.Path())
		if err != nil {
			printError("Error: building workbook: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*xlsx, b, 0o644); err != nil {
			printError("Error: writing %s: %v\n", *xlsx, err)
			os.Exit(1)
		}
		fmt.Printf("workbook=%s\n", *xlsx)
	}

	if stats.Failed > 0 {
		os.Exit(1)
	}
}

// watchDir processes existing and newly created PDFs under dir until ctx ends.
func watchDir(ctx context.Context, proc *pipeline.Processor, sess *session.Session, dir string, skipHidden bool, debounce time.Duration, record func(pipeline.Outcome), logger *slog.Logger) error {
	paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{dir},
		InitialScan: true,
		Debounce:    debounce,
		SkipHidden:  skipHidden,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	done := make(chan struct{})
	q := async.NewProcessorQueue(proc, sess, logger, async.WithOutcomeHandler(func(o pipeline.Outcome) {
		record(o)
	}))
	go func() {
		defer close(done)
		for err := range errs {
			logger.Warn("watcher error", "error", err)
		}
	}()

	fmt.Printf("watching %s (Ctrl+C to stop)\n", dir)
	for p := range paths {
		if err := q.Enqueue(ctx, async.Job{Name: filepath.Base(p), Path: p}); err != nil {
			logger.Warn("enqueue failed", "path", p, "error", err)
			break
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	q.Shutdown(shutdownCtx)
	<-done
	return nil
}

func printOutcome(o pipeline.Outcome) {
	line := fmt.Sprintf("%-18s %s", o.Status, o.File)
	if o.Error != "" {
		line += "  (" + o.Error + ")"
	}
	fmt.Println(line)
}
