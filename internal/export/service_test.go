package export_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/flowerwork/iceberg/internal/export"
	"github.com/flowerwork/iceberg/internal/repository"
)

func TestExportCompletedXLSX(t *testing.T) {
	db, err := repository.OpenInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	require.NoError(t, repository.EnsureSchema(ctx, db))

	completed := repository.NewCompletedRepository(db, nil)
	require.NoError(t, completed.Put(ctx, &repository.CompletedReconciliation{
		PONumber:           "45678",
		InvoiceNumber:      "001",
		Total:              decimal.RequireFromString("500.00"),
		VendorName:         "Acme Supplies",
		CustomerID:         "100",
		InvoiceArtifactRef: "s3://invoices/100_cd.pdf",
		POArtifactRef:      "s3://pos/100_ab.pdf",
		UploadDate:         time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
		CompletionDate:     time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
		POSnapshot:         []byte(`{}`),
		InvoiceSnapshot:    []byte(`{}`),
	}))

	xlsxBytes, err := export.NewService(completed, nil).ExportCompletedXLSX(ctx, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, xlsxBytes)

	f, err := excelize.OpenReader(bytes.NewReader(xlsxBytes))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	get := func(cell string) string {
		v, err := f.GetCellValue("Reconciliations", cell)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "PO Number", get("A1"))
	assert.Equal(t, "45678", get("A2"))
	assert.Equal(t, "001", get("B2"))
	assert.Equal(t, "500", get("C2"))
	assert.Equal(t, "Acme Supplies", get("D2"))
	assert.Equal(t, "2024-03-10", get("F2"))
}

func TestExportCompletedXLSXWindowFiltersRows(t *testing.T) {
	db, err := repository.OpenInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	require.NoError(t, repository.EnsureSchema(ctx, db))

	completed := repository.NewCompletedRepository(db, nil)
	for po, day := range map[string]int{"111": 1, "222": 20} {
		require.NoError(t, completed.Put(ctx, &repository.CompletedReconciliation{
			PONumber:       po,
			InvoiceNumber:  "001",
			Total:          decimal.RequireFromString("10"),
			UploadDate:     time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC),
			CompletionDate: time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC),
		}))
	}

	from := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC)
	xlsxBytes, err := export.NewService(completed, nil).ExportCompletedXLSX(ctx, &from, &to)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(xlsxBytes))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	rows, err := f.GetRows("Reconciliations")
	require.NoError(t, err)
	require.Len(t, rows, 2) // header + one row
	assert.Equal(t, "222", rows[1][0])
}
