package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowerwork/iceberg/internal/common"
	"github.com/flowerwork/iceberg/internal/repository"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := repository.OpenInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, repository.EnsureSchema(context.Background(), db))
	return db
}

func samplePO(poNumber string) *repository.PurchaseOrder {
	return &repository.PurchaseOrder{
		PONumber:    poNumber,
		Total:       decimal.RequireFromString("450.00"),
		OrderDate:   "2024-03-01",
		VendorName:  "Acme Supplies",
		CustomerID:  "100",
		ArtifactRef: "s3://icebergpos/100_ab.pdf",
		UploadedAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPurchaseOrderRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewPurchaseOrderRepository(db, nil)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, samplePO("45678")))

	got, err := repo.Get(ctx, "45678")
	require.NoError(t, err)
	assert.Equal(t, "45678", got.PONumber)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("450.00")))
	assert.Equal(t, "Acme Supplies", got.VendorName)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), got.UploadedAt)
}

func TestPurchaseOrderGetNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewPurchaseOrderRepository(db, nil)

	_, err := repo.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, common.IsNotFound(err))
}

func TestPurchaseOrderUpsertLastWriteWins(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewPurchaseOrderRepository(db, nil)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, samplePO("45678")))

	second := samplePO("45678")
	second.Total = decimal.RequireFromString("999.99")
	second.VendorName = "Replacement Vendor"
	require.NoError(t, repo.Upsert(ctx, second))

	got, err := repo.Get(ctx, "45678")
	require.NoError(t, err)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("999.99")))
	assert.Equal(t, "Replacement Vendor", got.VendorName)
}

func sampleCompleted(poNumber string, completion time.Time) *repository.CompletedReconciliation {
	return &repository.CompletedReconciliation{
		PONumber:           poNumber,
		InvoiceNumber:      "001",
		Total:              decimal.RequireFromString("500.00"),
		VendorName:         "Acme Supplies",
		CustomerID:         "100",
		InvoiceArtifactRef: "s3://iceberginvoices/100_cd.pdf",
		POArtifactRef:      "s3://icebergpos/100_ab.pdf",
		UploadDate:         completion,
		CompletionDate:     completion,
		POSnapshot:         []byte(`{"po_number":"45678"}`),
		InvoiceSnapshot:    []byte(`{"invoice_number":"001"}`),
	}
}

func TestCompletedRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewCompletedRepository(db, nil)
	ctx := context.Background()
	done := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Put(ctx, sampleCompleted("45678", done)))

	got, err := repo.Get(ctx, "45678")
	require.NoError(t, err)
	assert.Equal(t, "001", got.InvoiceNumber)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("500.00")))
	assert.Equal(t, done, got.CompletionDate)
	assert.JSONEq(t, `{"po_number":"45678"}`, string(got.POSnapshot))
}

func TestCompletedPutOverwrites(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewCompletedRepository(db, nil)
	ctx := context.Background()

	first := sampleCompleted("45678", time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	require.NoError(t, repo.Put(ctx, first))

	second := sampleCompleted("45678", time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC))
	second.InvoiceNumber = "002"
	require.NoError(t, repo.Put(ctx, second))

	got, err := repo.Get(ctx, "45678")
	require.NoError(t, err)
	assert.Equal(t, "002", got.InvoiceNumber)
	assert.Equal(t, second.CompletionDate, got.CompletionDate)

	recs, err := repo.List(ctx, nil, nil)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestCompletedListWindow(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewCompletedRepository(db, nil)
	ctx := context.Background()

	early := sampleCompleted("111", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	mid := sampleCompleted("222", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	late := sampleCompleted("333", time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC))
	for _, rec := range []*repository.CompletedReconciliation{late, early, mid} {
		require.NoError(t, repo.Put(ctx, rec))
	}

	from := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	recs, err := repo.List(ctx, &from, &to)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "222", recs[0].PONumber)

	all, err := repo.List(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "111", all[0].PONumber)
	assert.Equal(t, "333", all[2].PONumber)
}
