package sink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joseph-ayodele/invoice-reader/internal/common"
	"github.com/joseph-ayodele/invoice-reader/internal/entity"
)

// CSVSink appends one row per record to a CSV file.
// Appends made through the same sink are serialized; other processes are not coordinated.
type CSVSink struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

func NewCSVSink(path string, logger *slog.Logger) *CSVSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVSink{path: path, logger: logger}
}

func (s *CSVSink) Path() string { return s.path }

// Append writes the header first when the file is absent or empty, then the row.
func (s *CSVSink) Append(rec *entity.InvoiceRecord) error {
	if rec == nil {
		return common.NewSinkError("append", errors.New("nil record"))
	}
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.logger.Error("sink.csv.mkdir_failed", "path", s.path, "error", err)
			return common.NewSinkError("create output dir", err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		s.logger.Error("sink.csv.open_failed", "path", s.path, "error", err)
		return common.NewSinkError("open csv", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return common.NewSinkError("stat csv", err)
	}
	header := info.Size() == 0

	w := csv.NewWriter(f)
	if header {
		if err := w.Write(entity.Columns); err != nil {
			_ = f.Close()
			return common.NewSinkError("write header", err)
		}
	}
	if err := w.Write(Row(rec)); err != nil {
		_ = f.Close()
		return common.NewSinkError("write row", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		s.logger.Error("sink.csv.flush_failed", "path", s.path, "error", err)
		return common.NewSinkError("flush csv", err)
	}
	if err := f.Close(); err != nil {
		return common.NewSinkError("close csv", err)
	}

	s.logger.Info("sink.csv.appended",
		"path", s.path,
		"invoice_id", rec.InvoiceID,
		"header_written", header,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Row renders rec in entity.Columns order.
func Row(rec *entity.InvoiceRecord) []string {
	return []string{
		rec.InvoiceID,
		rec.DateTime,
		rec.Receiver,
		optString(rec.Provider),
		optString(rec.Restaurant),
		optString(rec.DeliveryPartner),
		orEmptyList(stringMapsLiteral(rec.OrderDetails)),
		FormatFloat(rec.Taxes),
		optFloat(rec.DeliveryCharge),
		optFloat(rec.PlatformFee),
		stringMapsLiteral(rec.CouponName),
		floatMapsLiteral(rec.DiscountAmount),
		FormatFloat(rec.TotalAmount),
	}
}

// order_details is required, so a nil list still renders as [].
func orEmptyList(s string) string {
	if s == "" {
		return "[]"
	}
	return s
}

func optString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func optFloat(p *float64) string {
	if p == nil {
		return ""
	}
	return FormatFloat(*p)
}

// Table is a CSV file read back for display.
type Table struct {
	Header []string
	Rows   [][]string
}

func (t Table) Empty() bool { return len(t.Rows) == 0 }

// ReadTable reads the whole file. A missing file is an empty table.
func ReadTable(path string) (Table, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Table{}, nil
	}
	if err != nil {
		return Table{}, common.NewSinkError("open csv", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var t Table
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, common.NewSinkError(fmt.Sprintf("read %s", path), err)
		}
		if t.Header == nil {
			t.Header = rec
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}
