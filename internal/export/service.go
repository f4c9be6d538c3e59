package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/flowerwork/iceberg/internal/repository"
)

// Service is a tiny façade over the completed repository that produces XLSX
// bytes for reconciliation reports.
type Service struct {
	completed repository.CompletedRepository
	logger    *slog.Logger
}

func NewService(completed repository.CompletedRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{completed: completed, logger: logger}
}

// ExportCompletedXLSX returns an XLSX workbook (as bytes) of completed
// reconciliations within the date window.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> everything.
func (s *Service) ExportCompletedXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	// Normalize dates (date-only, UTC)
	var fromDate, toDate *time.Time
	if from != nil {
		f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
		fromDate = &f
	}
	if to != nil {
		t := time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, 0, time.UTC)
		toDate = &t
	}
	if fromDate != nil && toDate == nil {
		today := time.Now().UTC()
		t := time.Date(today.Year(), today.Month(), today.Day(), 23, 59, 59, 0, time.UTC)
		toDate = &t
	}

	recs, err := s.completed.List(ctx, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("query completed items: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Reconciliations"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"PO Number",
		"Invoice Number",
		"Total",
		"Vendor",
		"Customer ID",
		"Completion Date",
		"Invoice Artifact",
		"PO Artifact",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range recs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, r.PONumber)
		write(2, r.InvoiceNumber)
		write(3, r.Total.String())
		write(4, r.VendorName)
		write(5, r.CustomerID)
		if !r.CompletionDate.IsZero() {
			write(6, r.CompletionDate.Format("2006-01-02"))
		} else {
			write(6, "")
		}
		write(7, r.InvoiceArtifactRef)
		write(8, r.POArtifactRef)

		row++
	}

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "B", 16) // keys
	_ = f.SetColWidth(sheet, "C", "C", 12) // total
	_ = f.SetColWidth(sheet, "D", "D", 28) // vendor
	_ = f.SetColWidth(sheet, "E", "F", 14) // customer, date
	_ = f.SetColWidth(sheet, "G", "H", 60) // artifact refs

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
