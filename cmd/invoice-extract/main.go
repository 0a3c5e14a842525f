package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/invoice-reader/internal/app"
	"github.com/joseph-ayodele/invoice-reader/internal/common"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: invoice-extract <invoice.pdf>")
		os.Exit(2)
	}
	path := os.Args[1]

	cfg, err := common.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger := common.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	proc, err := app.NewProcessor(cfg, nil, logger)
	if err != nil {
		logger.Error("build pipeline", "error", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	rec, raw, err := proc.ConvertToDict(ctx, path)
	if err != nil {
		logger.Error("extract failed", "path", path, "kind", common.KindOf(err), "error", err)
		if len(raw) > 0 {
			fmt.Fprintf(os.Stderr, "model output:\n%s\n", raw)
		}
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		logger.Error("encode record", "error", err)
		os.Exit(1)
	}
}
