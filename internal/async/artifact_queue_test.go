package async_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowerwork/iceberg/internal/async"
	"github.com/flowerwork/iceberg/internal/classify"
	"github.com/flowerwork/iceberg/internal/clean"
	"github.com/flowerwork/iceberg/internal/common"
	"github.com/flowerwork/iceberg/internal/customer"
	"github.com/flowerwork/iceberg/internal/extract"
	"github.com/flowerwork/iceberg/internal/notify"
	"github.com/flowerwork/iceberg/internal/objectstore"
	"github.com/flowerwork/iceberg/internal/pipeline"
	"github.com/flowerwork/iceberg/internal/reconcile"
	"github.com/flowerwork/iceberg/internal/repository"
)

func TestQueueProcessesAndDrainsOnShutdown(t *testing.T) {
	db, err := repository.OpenInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	require.NoError(t, repository.EnsureSchema(ctx, db))

	pos := repository.NewPurchaseOrderRepository(db, nil)
	completed := repository.NewCompletedRepository(db, nil)
	store := objectstore.NewMemStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	buckets := common.BucketConfig{RawEmail: "rawmail", PO: "pos", Invoice: "invoices", Structured: "structured"}
	proc := &pipeline.Processor{
		Logger:     logger,
		Store:      store,
		Analyzer:   &extract.RecordedAnalyzer{},
		Extractor:  extract.NewExtractor(logger),
		Cleaner:    clean.NewCleaner(logger),
		Classifier: classify.New(map[string]string{}, nil, logger),
		Engine:     reconcile.NewEngine(pos, completed, logger),
		POs:        pos,
		Registry:   customer.NewRegistry(),
		Sink:       notify.NewMemorySink(),
		Buckets:    buckets,
	}

	body, err := json.Marshal(map[string]any{"key_value_pairs": map[string]string{
		"PO Number": "45678",
		"Total":     "450.00",
	}})
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, buckets.PO, "100_ab.pdf", body, "application/json"))

	queue := async.NewArtifactQueue(proc, logger, async.WithWorkers(2), async.WithQueueSize(8))
	require.NoError(t, queue.Enqueue(ctx, async.Job{Bucket: buckets.PO, Key: "100_ab.pdf", SubmittedAt: time.Now()}))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	queue.Shutdown(shutdownCtx)

	po, err := pos.Get(ctx, "45678")
	require.NoError(t, err)
	assert.Equal(t, "100", po.CustomerID)

	// Enqueue after shutdown is a no-op, not a panic.
	require.NoError(t, queue.Enqueue(ctx, async.Job{Bucket: buckets.PO, Key: "100_ab.pdf"}))
}
