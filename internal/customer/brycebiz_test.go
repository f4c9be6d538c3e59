package customer_test

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowerwork/iceberg/internal/customer"
	"github.com/flowerwork/iceberg/internal/extract"
	"github.com/flowerwork/iceberg/internal/objectstore"
	"github.com/flowerwork/iceberg/internal/repository"
)

func TestBrycebizExportPO(t *testing.T) {
	store := objectstore.NewMemStore()
	proc, err := customer.NewBrycebizProcessor("200", store, "jsonfiles4holden", nil)
	require.NoError(t, err)

	fields := extract.DocumentFields{
		PONumber:     "45678",
		OrderDate:    "2024-03-01",
		VendorInfo:   extract.VendorInfo{Name: "Acme Supplies"},
		PaymentTerms: "Net 30",
		TotalAmount:  decimal.RequireFromString("450.00"),
		LineItems: []extract.LineItem{
			{Description: "Widget A", Quantity: decimal.RequireFromString("2")},
		},
	}
	require.NoError(t, proc.ExportPO(context.Background(), fields, "order email"))

	keys := store.Keys("jsonfiles4holden")
	require.Len(t, keys, 1)
	assert.Regexp(t, regexp.MustCompile(`^200_\d{8}_\d{6}_po\.json$`), keys[0])

	body, err := store.Get(context.Background(), "jsonfiles4holden", keys[0])
	require.NoError(t, err)

	var doc customer.StructuredPO
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, "45678", doc.OrderDetails.PONumber)
	assert.Equal(t, "450", doc.OrderDetails.TotalAmount)
	assert.Equal(t, "order email", doc.Metadata.Source)
	assert.Equal(t, "Processed", doc.Metadata.ProcessingStatus)
	require.Len(t, doc.LineItems, 1)
	assert.Equal(t, "Widget A", doc.LineItems[0].Description)
}

func TestBrycebizProcessCompletedRecord(t *testing.T) {
	store := objectstore.NewMemStore()
	proc, err := customer.NewBrycebizProcessor("200", store, "jsonfiles4holden", nil)
	require.NoError(t, err)

	rec := &repository.CompletedReconciliation{
		PONumber:       "45678",
		InvoiceNumber:  "001",
		Total:          decimal.RequireFromString("500.00"),
		VendorName:     "Acme Supplies",
		CompletionDate: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, proc.Process(context.Background(), rec))
	require.Len(t, store.Keys("jsonfiles4holden"), 1)
}

func TestRegistryLookup(t *testing.T) {
	store := objectstore.NewMemStore()
	proc, err := customer.NewBrycebizProcessor("200", store, "jsonfiles4holden", nil)
	require.NoError(t, err)

	reg := customer.NewRegistry()
	reg.Register("200", proc)

	got, err := reg.Lookup("200")
	require.NoError(t, err)
	assert.Equal(t, "brycebiz", got.Name())

	_, err = reg.Lookup("999")
	assert.Error(t, err)
}
