package export

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-reader/internal/entity"
	"github.com/joseph-ayodele/invoice-reader/internal/sink"
	"github.com/joseph-ayodele/invoice-reader/internal/stats"
)

const (
	SheetInvoices   = "Invoices"
	SheetStatistics = "Statistics"
)

// Service renders accumulated invoice rows as an XLSX workbook.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// WorkbookFromCSV reads the CSV at path and returns the workbook bytes.
// A missing CSV yields a workbook with only the header row.
func (s *Service) WorkbookFromCSV(path string) ([]byte, error) {
	tbl, err := sink.ReadTable(path)
	if err != nil {
		return nil, err
	}
	return s.Workbook(tbl)
}

// Workbook writes an Invoices sheet (amount columns as numbers) and a Statistics sheet.
func (s *Service) Workbook(tbl sink.Table) ([]byte, error) {
	start := time.Now()
	header := tbl.Header
	if header == nil {
		header = entity.Columns
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetInvoices); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	numeric := map[int]bool{}
	for i, h := range header {
		for _, c := range entity.NumericColumns {
			if h == c {
				numeric[i] = true
			}
		}
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetInvoices, cell, h)
	}

	for r, row := range tbl.Rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if numeric[c] && v != "" {
				if n, err := strconv.ParseFloat(v, 64); err == nil {
					_ = f.SetCellValue(SheetInvoices, cell, n)
					continue
				}
			}
			_ = f.SetCellValue(SheetInvoices, cell, v)
		}
	}

	// bold header, frozen first row
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(header), 1)
		_ = f.SetCellStyle(SheetInvoices, "A1", last, style)
	}
	_ = f.SetPanes(SheetInvoices, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	for i, h := range header {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(SheetInvoices, col, col, widthFor(h))
	}

	if err := writeStatistics(f, tbl); err != nil {
		return nil, err
	}

	idx, _ := f.GetSheetIndex(SheetInvoices)
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok",
		"rows", len(tbl.Rows),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeStatistics(f *excelize.File, tbl sink.Table) error {
	if _, err := f.NewSheet(SheetStatistics); err != nil {
		return fmt.Errorf("new sheet: %w", err)
	}
	_ = f.SetSheetRow(SheetStatistics, "A1", &[]any{"column", "count", "sum", "mean", "mode"})
	for i, cs := range stats.Compute(tbl.Header, tbl.Rows) {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{cs.Column, cs.Count, nullable(cs.Sum.Valid, cs.Sum.Decimal.InexactFloat64()),
			nullable(cs.Mean.Valid, cs.Mean.Decimal.InexactFloat64()),
			nullable(cs.Mode.Valid, cs.Mode.Decimal.InexactFloat64())}
		_ = f.SetSheetRow(SheetStatistics, cell, &row)
	}
	_ = f.SetColWidth(SheetStatistics, "A", "A", 18)
	return nil
}

func nullable(ok bool, v float64) any {
	if !ok {
		return ""
	}
	return v
}

func widthFor(col string) float64 {
	switch col {
	case entity.ColOrderDetails, entity.ColCouponName, entity.ColDiscountAmount:
		return 48
	case entity.ColDateTime, entity.ColReceiver, entity.ColProvider, entity.ColRestaurant, entity.ColDeliveryPartner:
		return 22
	default:
		return 14
	}
}
