package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/invoice-reader/constants"
	"github.com/joseph-ayodele/invoice-reader/internal/common"
	"github.com/joseph-ayodele/invoice-reader/internal/entity"
	"github.com/joseph-ayodele/invoice-reader/internal/extract"
	"github.com/joseph-ayodele/invoice-reader/internal/session"
)

// Stage names used in logs and metrics.
const (
	StageLoad      = "load"
	StageSummarize = "summarize"
	StageExtract   = "extract"
	StageAppend    = "append"
)

// Processor coordinates load -> summarize -> extract -> append for one file at a time.
type Processor struct {
	Loader     extract.DocumentLoader
	Summarizer extract.DocumentSummarizer
	Fields     extract.RecordExtractor
	Metrics    Metrics
	Logger     *slog.Logger
}

func NewProcessor(loader extract.DocumentLoader, summarizer extract.DocumentSummarizer, fields extract.RecordExtractor, metrics Metrics, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Processor{
		Loader:     loader,
		Summarizer: summarizer,
		Fields:     fields,
		Metrics:    metrics,
		Logger:     logger,
	}
}

// ConvertToDict runs the three conversion stages strictly in order and
// returns the record with the raw structured output. Nothing is written.
func (p *Processor) ConvertToDict(ctx context.Context, path string) (*entity.InvoiceRecord, []byte, error) {
	start := time.Now()
	frags, err := p.Loader.Load(ctx, path)
	p.Metrics.ObserveStage(StageLoad, time.Since(start))
	if err != nil {
		return nil, nil, err
	}

	start = time.Now()
	summary, err := p.Summarizer.Summarize(ctx, frags)
	p.Metrics.ObserveStage(StageSummarize, time.Since(start))
	if err != nil {
		return nil, nil, err
	}
	p.Logger.Debug("pipeline.summary", "path", path, "summary", summary)

	start = time.Now()
	rec, raw, err := p.Fields.Extract(ctx, summary)
	p.Metrics.ObserveStage(StageExtract, time.Since(start))
	if err != nil {
		return nil, raw, err
	}
	return rec, raw, nil
}

// ProcessFile converts one file and appends it to the session sink.
// name is the identity used for dedup; path is where the bytes are.
// A name is marked seen only after its row was appended.
func (p *Processor) ProcessFile(ctx context.Context, sess *session.Session, name, path string) Outcome {
	start := time.Now()
	name = filepath.Base(name)
	out := Outcome{File: name}
	log := p.Logger.With("file", name, "session_id", sess.ID)

	finish := func(status constants.FileStatus, err error) Outcome {
		out.Status = status
		out.Elapsed = time.Since(start)
		if err != nil {
			out.Error = err.Error()
		}
		p.Metrics.ObserveOutcome(status)
		return out
	}

	if sess.Tracker.Seen(name) {
		log.Warn("pipeline.file.duplicate_skipped")
		return finish(constants.FileStatusSkippedDuplicate, nil)
	}

	rec, raw, err := p.ConvertToDict(common.WithSessionID(ctx, sess.ID), path)
	if len(raw) > 0 {
		out.Raw = rawJSON(raw)
	}
	if err != nil {
		status := StatusFor(err)
		log.Error("pipeline.file.failed", "status", status, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return finish(status, err)
	}
	out.Record = rec

	appendStart := time.Now()
	err = sess.Sink.Append(rec)
	p.Metrics.ObserveStage(StageAppend, time.Since(appendStart))
	if err != nil {
		if common.KindOf(err) == nil {
			err = common.NewSinkError("append", err)
		}
		log.Error("pipeline.file.failed", "status", constants.FileStatusFailedSink, "error", err)
		return finish(constants.FileStatusFailedSink, err)
	}

	sess.Tracker.Mark(name)
	sess.AddResult(name, raw)

	log.Info("pipeline.file.ok",
		"invoice_id", rec.InvoiceID,
		"csv", sess.Sink.Path(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return finish(constants.FileStatusProcessed, nil)
}

func rawJSON(b []byte) json.RawMessage {
	if json.Valid(b) {
		return append(json.RawMessage(nil), b...)
	}
	q, _ := json.Marshal(string(b))
	return q
}
