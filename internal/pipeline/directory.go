package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/invoice-reader/constants"
	"github.com/joseph-ayodele/invoice-reader/internal/ingest"
	"github.com/joseph-ayodele/invoice-reader/internal/session"
)

// ProcessDirectory walks root in lexical order and processes every .pdf file,
// one after another. A failing file never stops the walk.
func (p *Processor) ProcessDirectory(ctx context.Context, sess *session.Session, root string, skipHidden bool) ([]Outcome, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []Outcome
	var stats DirStats

	p.Logger.Info("pipeline.dir.start", "root", root, "skip_hidden", skipHidden, "session_id", sess.ID)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			results = append(results, Outcome{File: filepath.Base(path), Status: constants.FileStatusFailedInput, Error: walkErr.Error()})
			stats.Failed++
			p.Logger.Warn("pipeline.dir.walk_error", "path", path, "error", walkErr)
			return nil // continue walking
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if skipHidden && path != root && ingest.IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		stats.Scanned++
		if !constants.IsAllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		o := p.ProcessFile(ctx, sess, filepath.Base(path), path)
		results = append(results, o)
		stats.add(o)
		return nil
	})

	p.Logger.Info("pipeline.dir.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}
