package extract

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-reader/internal/common"
	"github.com/joseph-ayodele/invoice-reader/internal/entity"
	"github.com/joseph-ayodele/invoice-reader/internal/llm"
)

var ErrEmptyContext = errors.New("no text to summarize")

// Summarizer stuffs every fragment into one prompt and asks for a summary.
type Summarizer struct {
	model  llm.ChatModel
	logger *slog.Logger
}

func NewSummarizer(model llm.ChatModel, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{model: model, logger: logger}
}

// JoinFragments concatenates page texts separated by a blank line.
func JoinFragments(fragments []entity.Fragment) string {
	parts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if t := strings.TrimSpace(f.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (s *Summarizer) Summarize(ctx context.Context, fragments []entity.Fragment) (string, error) {
	start := time.Now()
	text := JoinFragments(fragments)
	if text == "" {
		s.logger.Error("extract.summarize.empty_context", "fragments", len(fragments))
		return "", common.NewInputError("summarize", ErrEmptyContext)
	}

	out, err := s.model.Complete(ctx, llm.CompletionRequest{Messages: llm.BuildSummaryMessages(text)})
	if err != nil {
		s.logger.Error("extract.summarize.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		if common.KindOf(err) == nil {
			err = common.NewBackendError("summarize", err)
		}
		return "", err
	}
	summary := strings.TrimSpace(out.Content)
	if summary == "" {
		return "", common.NewBackendError("summarize", errors.New("empty summary"))
	}

	s.logger.Info("extract.summarize.ok",
		"fragments", len(fragments),
		"context_chars", len(text),
		"summary_chars", len(summary),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return summary, nil
}
