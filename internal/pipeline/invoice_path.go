package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flowerwork/iceberg/constants"
	"github.com/flowerwork/iceberg/internal/common"
	"github.com/flowerwork/iceberg/internal/extract"
	"github.com/flowerwork/iceberg/internal/notify"
	"github.com/flowerwork/iceberg/internal/objectstore"
	"github.com/flowerwork/iceberg/internal/reconcile"
)

// processInvoice extracts and cleans an invoice artifact, reconciles it
// against the stored PO and hands the committed record to the customer's
// processor.
func (p *Processor) processInvoice(ctx context.Context, bucket, key string) error {
	start := time.Now()

	customerID, err := customerIDFromKey(key)
	if err != nil {
		p.Sink.Record(ctx, notify.Failure(bucket, key, constants.DocTypeInvoice, "", err, time.Since(start)))
		return err
	}

	p.Logger.Info("pipeline.invoice.stage", "status", string(constants.StatusReceived), "key", key)

	content, err := p.Store.Get(ctx, bucket, key)
	if err != nil {
		err = fmt.Errorf("%w: %v", common.ErrStorage, err)
		p.Sink.Record(ctx, notify.Failure(bucket, key, constants.DocTypeInvoice, customerID, err, time.Since(start)))
		return err
	}

	res, err := p.Analyzer.Analyze(ctx, content)
	if err != nil {
		err = fmt.Errorf("%w: %v", common.ErrExtraction, err)
		p.Sink.Record(ctx, notify.Failure(bucket, key, constants.DocTypeInvoice, customerID, err, time.Since(start)))
		return err
	}
	p.Logger.Info("pipeline.invoice.stage", "status", string(constants.StatusExtracted), "key", key)

	cleaned := p.Cleaner.Clean(analysisKeyValues(res))
	p.Logger.Info("pipeline.invoice.stage", "status", string(constants.StatusCleaned), "key", key)
	inv := invoiceFromCleaned(cleaned, customerID, objectstore.ArtifactRef(bucket, key))

	if err := p.reconcileAndForward(ctx, inv); err != nil {
		p.Sink.Record(ctx, notify.Failure(bucket, key, constants.DocTypeInvoice, customerID, err, time.Since(start)))
		return err
	}
	p.Sink.Record(ctx, notify.Success(bucket, key, constants.DocTypeInvoice, customerID, inv.InvoiceNumber, time.Since(start)))
	return nil
}

// reconcileAndForward commits the reconciliation and then runs the
// customer's follow-up processor. A follow-up failure is returned for retry
// but the committed record stands; the commit is the source of truth.
func (p *Processor) reconcileAndForward(ctx context.Context, inv *reconcile.Invoice) error {
	rec, err := p.Engine.Reconcile(ctx, inv)
	if err != nil {
		return err
	}

	proc, err := p.Registry.Lookup(inv.CustomerID)
	if err != nil {
		p.Logger.Info("pipeline.forward.skipped", "customer_id", inv.CustomerID, "po_number", rec.PONumber)
		return nil
	}
	if err := proc.Process(ctx, rec); err != nil {
		p.Logger.Error("pipeline.forward.failed",
			"processor", proc.Name(),
			"customer_id", inv.CustomerID,
			"po_number", rec.PONumber,
			"error", err,
		)
		return err
	}
	return nil
}

// analysisKeyValues merges the analyzer's key-value blocks with "Label:
// value" pairs recovered from raw lines. Key-value blocks win; line parsing
// only fills gaps.
func analysisKeyValues(res extract.AnalysisResult) map[string]string {
	kv := make(map[string]string, len(res.KeyValuePairs))
	for k, v := range res.KeyValuePairs {
		kv[k] = v
	}
	for k, v := range textKeyValues(res.RawText()) {
		if _, ok := kv[k]; !ok {
			kv[k] = v
		}
	}
	return kv
}

// invoiceFromCleaned lifts the cleaned field bag into the typed invoice
// record. The customer id always comes from the artifact key, never from
// document content.
func invoiceFromCleaned(cleaned map[string]any, customerID, artifactRef string) *reconcile.Invoice {
	inv := &reconcile.Invoice{
		CustomerID:  customerID,
		ArtifactRef: artifactRef,
		Fields:      cleaned,
	}
	if v, ok := cleaned["invoice_number"].(string); ok {
		inv.InvoiceNumber = v
	}
	if v, ok := cleaned["po_number"].(string); ok {
		inv.PONumber = v
	}
	if v, ok := cleaned["Total"].(decimal.Decimal); ok {
		inv.Total = v
	}
	if v, ok := cleaned["Date"].(string); ok {
		inv.Date = v
	}
	if v, ok := cleaned["vendor_name"].(string); ok {
		inv.VendorName = v
	}
	return inv
}
