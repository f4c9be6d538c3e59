package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/flowerwork/iceberg/constants"
	"github.com/flowerwork/iceberg/internal/classify"
	"github.com/flowerwork/iceberg/internal/clean"
	"github.com/flowerwork/iceberg/internal/common"
	"github.com/flowerwork/iceberg/internal/customer"
	"github.com/flowerwork/iceberg/internal/extract"
	"github.com/flowerwork/iceberg/internal/notify"
	"github.com/flowerwork/iceberg/internal/objectstore"
	"github.com/flowerwork/iceberg/internal/reconcile"
	"github.com/flowerwork/iceberg/internal/repository"
)

// StructuredExporter renders extracted PO fields to the customer's
// structured document and uploads it.
type StructuredExporter interface {
	ExportPO(ctx context.Context, fields extract.DocumentFields, source string) error
}

var customerIDPrefix = regexp.MustCompile(`^(\d+)`)

// Processor coordinates one artifact through classification, extraction,
// cleaning and reconciliation. Each invocation handles exactly one artifact;
// invocations share no mutable state and stages run strictly in sequence.
type Processor struct {
	Logger     *slog.Logger
	Store      objectstore.Store
	Analyzer   extract.Analyzer
	Extractor  *extract.Extractor
	Cleaner    *clean.Cleaner
	Classifier *classify.Classifier
	Engine     *reconcile.Engine
	POs        repository.PurchaseOrderRepository
	Registry   *customer.Registry
	Sink       notify.Sink
	Buckets    common.BucketConfig

	// Structured exporters keyed by customer id, for customers whose POs
	// leave as canonical JSON instead of entering the PO table alone.
	StructuredExporters map[string]StructuredExporter
}

// ProcessArtifact routes an inbound artifact by its source bucket. An
// unrecognized bucket is skipped, not failed: it is not ours to process.
func (p *Processor) ProcessArtifact(ctx context.Context, bucket, key string) error {
	p.Logger.Info("pipeline.artifact", "bucket", bucket, "key", key)
	switch bucket {
	case p.Buckets.RawEmail:
		return p.processEmail(ctx, bucket, key)
	case p.Buckets.PO:
		return p.processPO(ctx, bucket, key)
	case p.Buckets.Invoice:
		return p.processInvoice(ctx, bucket, key)
	default:
		p.Logger.Warn("pipeline.bucket.unrecognized", "bucket", bucket, "key", key)
		return nil
	}
}

// processEmail classifies an inbound email and either forwards its PDF into
// the matching document bucket (then chains straight into that path) or
// falls through to bare-text handling.
func (p *Processor) processEmail(ctx context.Context, bucket, key string) error {
	start := time.Now()

	raw, err := p.Store.Get(ctx, bucket, key)
	if err != nil {
		err = fmt.Errorf("%w: %v", common.ErrStorage, err)
		p.Sink.Record(ctx, notify.Failure(bucket, key, constants.DocTypeEmail, "", err, time.Since(start)))
		return err
	}

	decision, err := p.Classifier.ClassifyEmail(raw)
	if err != nil {
		p.Sink.Record(ctx, notify.Failure(bucket, key, constants.DocTypeEmail, "", err, time.Since(start)))
		return err
	}

	switch decision.Route {
	case classify.RouteStructured:
		if err := p.processStructured(ctx, decision, key); err != nil {
			p.Sink.Record(ctx, notify.Failure(bucket, key, constants.DocTypeStructuredPO, decision.CustomerID, err, time.Since(start)))
			return err
		}
		p.Sink.Record(ctx, notify.Success(bucket, key, constants.DocTypeStructuredPO, decision.CustomerID, "", time.Since(start)))
		return nil

	case classify.RouteInvoice:
		newKey := objectstore.ArtifactKey(decision.CustomerID, "pdf")
		if err := p.Store.Put(ctx, p.Buckets.Invoice, newKey, decision.PDF, "application/pdf"); err != nil {
			err = fmt.Errorf("%w: %v", common.ErrStorage, err)
			p.Sink.Record(ctx, notify.Failure(bucket, key, constants.DocTypeEmail, decision.CustomerID, err, time.Since(start)))
			return err
		}
		p.Sink.Record(ctx, notify.Success(bucket, key, constants.DocTypeEmail, decision.CustomerID, newKey, time.Since(start)))
		return p.processInvoice(ctx, p.Buckets.Invoice, newKey)

	case classify.RoutePurchaseOrder:
		newKey := objectstore.ArtifactKey(decision.CustomerID, "pdf")
		if err := p.Store.Put(ctx, p.Buckets.PO, newKey, decision.PDF, "application/pdf"); err != nil {
			err = fmt.Errorf("%w: %v", common.ErrStorage, err)
			p.Sink.Record(ctx, notify.Failure(bucket, key, constants.DocTypeEmail, decision.CustomerID, err, time.Since(start)))
			return err
		}
		p.Sink.Record(ctx, notify.Success(bucket, key, constants.DocTypeEmail, decision.CustomerID, newKey, time.Since(start)))
		return p.processPO(ctx, p.Buckets.PO, newKey)

	default: // RouteText
		return p.processText(ctx, bucket, key, decision, start)
	}
}

// processStructured handles the structured-JSON customer path: analyze the
// attachment, extract fields, export the canonical document.
func (p *Processor) processStructured(ctx context.Context, decision classify.Decision, key string) error {
	exporter, ok := p.StructuredExporters[decision.CustomerID]
	if !ok {
		return fmt.Errorf("%w: no structured exporter for customer %s", common.ErrClassification, decision.CustomerID)
	}
	if decision.PDF == nil {
		return fmt.Errorf("%w: no PDF attachment for structured processing", common.ErrClassification)
	}
	res, err := p.Analyzer.Analyze(ctx, decision.PDF)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrExtraction, err)
	}
	fields := p.Extractor.Extract(res)
	return exporter.ExportPO(ctx, fields, decision.Subject)
}

func customerIDFromKey(key string) (string, error) {
	m := customerIDPrefix.FindStringSubmatch(key)
	if m == nil {
		return "", fmt.Errorf("%w: file key %q does not start with a customer id", common.ErrClassification, key)
	}
	return m[1], nil
}
