package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/flowerwork/iceberg/internal/accounting"
	"github.com/flowerwork/iceberg/internal/async"
	"github.com/flowerwork/iceberg/internal/classify"
	"github.com/flowerwork/iceberg/internal/clean"
	"github.com/flowerwork/iceberg/internal/common"
	"github.com/flowerwork/iceberg/internal/customer"
	"github.com/flowerwork/iceberg/internal/export"
	"github.com/flowerwork/iceberg/internal/extract"
	"github.com/flowerwork/iceberg/internal/ingest"
	"github.com/flowerwork/iceberg/internal/notify"
	"github.com/flowerwork/iceberg/internal/objectstore"
	"github.com/flowerwork/iceberg/internal/pipeline"
	"github.com/flowerwork/iceberg/internal/reconcile"
	"github.com/flowerwork/iceberg/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		inmem   = flag.Bool("inmem", false, "use in-memory SQLite database")
		root    = flag.String("root", "", "artifact root directory holding one subdirectory per bucket (required)")
		out     = flag.String("out", "", "output XLSX report path (optional, defaults to parent directory)")
		fromStr = flag.String("from", "", "report from date YYYY-MM-DD")
		toStr   = flag.String("to", "", "report to date YYYY-MM-DD")
		watch   = flag.Bool("watch", false, "after the initial pass, watch the root for new artifacts until interrupted")
		workers = flag.Int("workers", 4, "worker count for watch mode")
	)
	flag.Parse()

	if *root == "" {
		printError("Error: --root is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*root), "reconciliations.xlsx")
	}

	var from, to *time.Time
	if *fromStr != "" {
		parsed, err := time.Parse("2006-01-02", *fromStr)
		if err != nil {
			printError("Error: invalid --from date format, use YYYY-MM-DD: %v\n", err)
			os.Exit(1)
		}
		from = &parsed
	}
	if *toStr != "" {
		parsed, err := time.Parse("2006-01-02", *toStr)
		if err != nil {
			printError("Error: invalid --to date format, use YYYY-MM-DD: %v\n", err)
			os.Exit(1)
		}
		to = &parsed
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment as-is")
	}

	ctx := context.Background()
	cfg := common.LoadConfig()

	db, pool, err := openDatabase(ctx, cfg, *inmem, logger)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer repository.Close(db, pool, logger)

	if err := repository.EnsureSchema(ctx, db); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	pos := repository.NewPurchaseOrderRepository(db, logger)
	completed := repository.NewCompletedRepository(db, logger)
	store := objectstore.NewFSStore(*root, logger)

	registry := customer.NewRegistry()
	if cfg.Accounting.CompanyID != "" {
		provider := accounting.NewOAuthProvider(cfg.Accounting.OAuthURL, accounting.Credentials{
			AccessToken:  cfg.Accounting.AccessToken,
			RefreshToken: cfg.Accounting.RefreshToken,
			ClientID:     cfg.Accounting.ClientID,
			ClientSecret: cfg.Accounting.ClientSecret,
			CompanyID:    cfg.Accounting.CompanyID,
		}, nil)
		client := accounting.NewClient(cfg.Accounting.BaseURL, provider,
			&http.Client{Timeout: cfg.Accounting.Timeout}, logger)
		client.Retries = cfg.Accounting.Retries
		client.RetryDelay = cfg.Accounting.RetryDelay
		for customerID, ref := range cfg.Customers.AccountingRefs {
			registry.Register(customerID, customer.NewLabtechProcessor(client, cfg.Accounting.CompanyID, ref, logger))
		}
	} else {
		logger.Warn("accounting company id not configured, invoice submission disabled")
	}

	exporters := make(map[string]pipeline.StructuredExporter)
	for _, customerID := range cfg.Customers.Structured {
		proc, err := customer.NewBrycebizProcessor(customerID, store, cfg.Buckets.Structured, logger)
		if err != nil {
			logger.Error("failed to build structured processor", "customer_id", customerID, "error", err)
			os.Exit(1)
		}
		registry.Register(customerID, proc)
		exporters[customerID] = proc
	}

	processor := &pipeline.Processor{
		Logger:              logger,
		Store:               store,
		Analyzer:            &extract.RecordedAnalyzer{},
		Extractor:           extract.NewExtractor(logger),
		Cleaner:             clean.NewCleaner(logger),
		Classifier:          classify.New(cfg.Customers.Receivers, cfg.Customers.Structured, logger),
		Engine:              reconcile.NewEngine(pos, completed, logger),
		POs:                 pos,
		Registry:            registry,
		Sink:                notify.NewLogSink(logger),
		Buckets:             cfg.Buckets,
		StructuredExporters: exporters,
	}

	// POs before invoices so same-run invoices find their orders; raw email
	// first since it fans out into both.
	processed, failures := 0, 0
	for _, bucket := range []string{cfg.Buckets.RawEmail, cfg.Buckets.PO, cfg.Buckets.Invoice} {
		keys, err := listBucket(*root, bucket)
		if err != nil {
			logger.Error("failed to list bucket", "bucket", bucket, "error", err)
			os.Exit(1)
		}
		for _, key := range keys {
			if err := processor.ProcessArtifact(ctx, bucket, key); err != nil {
				logger.Error("artifact failed", "bucket", bucket, "key", key, "error", err)
				failures++
				continue
			}
			processed++
		}
	}

	if *watch {
		if err := watchArtifacts(processor, cfg, *root, *workers, logger); err != nil {
			logger.Error("watch mode failed", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("exporting report", "output", *out)
	xlsxBytes, err := export.NewService(completed, logger).ExportCompletedXLSX(ctx, from, to)
	if err != nil {
		logger.Error("failed to export report", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	logger.Info("batch processing complete",
		"processed", processed,
		"failures", failures,
		"output_file", *out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Artifacts processed: %d\n", processed)
	fmt.Printf("- Failures: %d\n", failures)
	fmt.Printf("- Report: %s\n", *out)
}

// openDatabase opens either the configured Postgres pool or an in-memory
// SQLite database for local runs. The pool is nil in in-memory mode.
func openDatabase(ctx context.Context, cfg *common.Config, inmem bool, logger *slog.Logger) (*sql.DB, *pgxpool.Pool, error) {
	if inmem {
		db, err := repository.OpenInMemory(logger)
		return db, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
}

// watchArtifacts feeds newly arriving artifacts through a worker queue until
// the process is interrupted.
func watchArtifacts(processor *pipeline.Processor, cfg *common.Config, root string, workers int, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Root:     root,
		Buckets:  []string{cfg.Buckets.RawEmail, cfg.Buckets.PO, cfg.Buckets.Invoice},
		Debounce: 200 * time.Millisecond,
	})
	if err != nil {
		return err
	}

	queue := async.NewArtifactQueue(processor, logger, async.WithWorkers(workers))
	logger.Info("watching for artifacts", "root", root)

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			queue.Shutdown(shutdownCtx)
			cancel()
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			_ = queue.Enqueue(ctx, async.Job{Bucket: ev.Bucket, Key: ev.Key, SubmittedAt: time.Now().UTC()})
		case watchErr, ok := <-errs:
			if ok && watchErr != nil {
				logger.Warn("watcher reported error", "error", watchErr)
			}
		}
	}
}

// listBucket returns the file names directly under the bucket's directory. A
// missing directory is an empty bucket, not an error.
func listBucket(root, bucket string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(root, bucket))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		if !e.IsDir() {
			keys = append(keys, e.Name())
		}
	}
	return keys, nil
}
