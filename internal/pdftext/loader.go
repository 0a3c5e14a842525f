package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-reader/internal/common"
	"github.com/joseph-ayodele/invoice-reader/internal/entity"
)

var (
	ErrEmptyFile = errors.New("file is empty")
	ErrNotPDF    = errors.New("missing %PDF- header")
	ErrNoText    = errors.New("no extractable text")
)

// the header may be preceded by junk bytes; readers accept it within the first 1KB.
const magicWindow = 1024

var pdfMagic = []byte("%PDF-")

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	TessdataDir   string
	OCRFallback   bool // OCR scanned PDFs when the text layer is blank
	DPI           int  // rasterization DPI for scanned PDFs, default 300
	MaxPages      int  // 0 = no limit
}

// ConfigFrom maps the environment-backed settings onto a loader config.
func ConfigFrom(c common.PDFConfig) Config {
	return Config{
		Pdftotext:     c.Pdftotext,
		Pdftoppm:      c.Pdftoppm,
		Tesseract:     c.Tesseract,
		TesseractLang: c.TesseractLang,
		TessdataDir:   c.TessdataDir,
		OCRFallback:   c.OCRFallback,
		DPI:           c.DPI,
		MaxPages:      c.MaxPages,
	}
}

// Loader turns a PDF into per-page text fragments.
type Loader struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewLoader(cfg Config, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return NewLoaderWithRunner(cfg, execRunner{logger: logger}, logger)
}

func NewLoaderWithRunner(cfg Config, runner Runner, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Loader{cfg: cfg, runner: runner, logger: logger}
}

// Load returns one fragment per page, in page order.
// Every failure is an input error.
func (l *Loader) Load(ctx context.Context, path string) ([]entity.Fragment, error) {
	start := time.Now()
	l.logger.Debug("pdftext.load.start", "path", path)

	if err := checkPDF(path); err != nil {
		l.logger.Error("pdftext.load.rejected", "path", path, "error", err)
		return nil, common.NewInputError(fmt.Sprintf("cannot load %q", path), err)
	}

	method := "pdf-text"
	pages, err := l.pdfToText(ctx, path)
	if err != nil {
		l.logger.Error("pdftext.load.failed", "path", path, "method", method, "error", err)
		return nil, common.NewInputError(fmt.Sprintf("cannot extract text from %q", path), err)
	}

	if allBlank(pages) && l.cfg.OCRFallback {
		method = "pdf-ocr"
		l.logger.Info("pdftext.load.ocr_fallback", "path", path, "dpi", l.cfg.DPI)
		pages, err = l.pdfToOCR(ctx, path)
		if err != nil {
			l.logger.Error("pdftext.load.failed", "path", path, "method", method, "error", err)
			return nil, common.NewInputError(fmt.Sprintf("cannot ocr %q", path), err)
		}
	}

	if allBlank(pages) {
		l.logger.Error("pdftext.load.failed", "path", path, "method", method, "error", ErrNoText)
		return nil, common.NewInputError(fmt.Sprintf("cannot load %q", path), ErrNoText)
	}

	if l.cfg.MaxPages > 0 && len(pages) > l.cfg.MaxPages {
		pages = pages[:l.cfg.MaxPages]
	}

	frags := make([]entity.Fragment, 0, len(pages))
	chars := 0
	for i, p := range pages {
		frags = append(frags, entity.Fragment{Page: i + 1, Text: p})
		chars += len(p)
	}

	l.logger.Info("pdftext.load.ok",
		"path", path,
		"method", method,
		"pages", len(frags),
		"chars", chars,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return frags, nil
}

func checkPDF(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if info.Size() == 0 {
		return ErrEmptyFile
	}

	head := make([]byte, magicWindow)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return err
	}
	if !bytes.Contains(head[:n], pdfMagic) {
		return ErrNotPDF
	}
	return nil
}

func (l *Loader) pdfToText(ctx context.Context, path string) ([]string, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := l.runner.Run(ctx, l.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		if msg := strings.TrimSpace(string(errb)); msg != "" {
			return nil, fmt.Errorf("pdftotext: %w: %s", err, truncate(msg, 512))
		}
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	return splitPages(string(out)), nil
}

// splitPages splits pdftotext output on form feeds. pdftotext terminates every
// page with \f, so the piece after the last one is dropped when blank.
func splitPages(text string) []string {
	parts := strings.Split(text, "\f")
	if len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	pages := make([]string, len(parts))
	for i, p := range parts {
		pages[i] = Normalize(p)
	}
	return pages
}

func allBlank(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return false
		}
	}
	return true
}
