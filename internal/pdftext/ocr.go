package pdftext

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

func (l *Loader) pdfToOCR(ctx context.Context, path string) ([]string, error) {
	tmpDir, err := os.MkdirTemp("", "invoice-pp-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			l.logger.Warn("failed to remove temp dir", "dir", tmpDir, "error", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	args := []string{"-r", strconv.Itoa(l.cfg.DPI), "-png"}
	if l.cfg.MaxPages > 0 {
		args = append(args, "-l", strconv.Itoa(l.cfg.MaxPages))
	}
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := l.runner.Run(ctx, l.cfg.Pdftoppm, append(args, path, prefix)...)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}

	// pdftoppm zero-pads page numbers, so lexical order is page order
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no images")
	}

	pages := make([]string, 0, len(matches))
	for _, img := range matches {
		txt, err := l.tesseractOCR(ctx, img)
		if err != nil {
			l.logger.Warn("pdftext.ocr.page_failed", "image", filepath.Base(img), "error", err)
			pages = append(pages, "")
			continue
		}
		pages = append(pages, Normalize(txt))
	}
	return pages, nil
}

func (l *Loader) tesseractOCR(ctx context.Context, path string) (string, error) {
	args := []string{path, "stdout", "-l", l.cfg.TesseractLang}
	if l.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", l.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <lang>
	out, _, err := l.runner.Run(ctx, l.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return string(out), nil
}
