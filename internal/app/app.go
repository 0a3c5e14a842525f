// Package app wires the extraction pipeline from configuration.
package app

import (
	"log/slog"

	"github.com/joseph-ayodele/invoice-reader/internal/common"
	"github.com/joseph-ayodele/invoice-reader/internal/extract"
	"github.com/joseph-ayodele/invoice-reader/internal/llm/mistral"
	"github.com/joseph-ayodele/invoice-reader/internal/pdftext"
	"github.com/joseph-ayodele/invoice-reader/internal/pipeline"
)

// NewProcessor builds loader, summarizer and extractor over one Mistral client.
// metrics may be nil.
func NewProcessor(cfg *common.Config, metrics pipeline.Metrics, logger *slog.Logger) (*pipeline.Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := mistral.NewClient(mistral.ConfigFrom(cfg.LLM), logger)
	if err != nil {
		return nil, err
	}
	fields, err := extract.NewFieldExtractor(client, logger)
	if err != nil {
		return nil, err
	}
	loader := pdftext.NewLoader(pdftext.ConfigFrom(cfg.PDF), logger)
	summarizer := extract.NewSummarizer(client, logger)

	logger.Info("pipeline.configured",
		"model", client.Model(),
		"ocr_fallback", cfg.PDF.OCRFallback,
		"max_pages", cfg.PDF.MaxPages,
	)
	return pipeline.NewProcessor(loader, summarizer, fields, metrics, logger), nil
}
