package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flowerwork/iceberg/constants"
	"github.com/flowerwork/iceberg/internal/classify"
	"github.com/flowerwork/iceberg/internal/common"
	"github.com/flowerwork/iceberg/internal/extract"
	"github.com/flowerwork/iceberg/internal/notify"
	"github.com/flowerwork/iceberg/internal/objectstore"
	"github.com/flowerwork/iceberg/internal/repository"
)

// syntheticPO is the JSON document generated for PO-like bare-text emails so
// they re-enter the pipeline as ordinary PO artifacts.
type syntheticPO struct {
	PONumber        string `json:"po_number"`
	OrderTotal      string `json:"order_total"`
	OrderDate       string `json:"order_date"`
	CustomerID      string `json:"customer_id"`
	VendorName      string `json:"vendor_name"`
	ShippingAddress string `json:"shipping_address"`
}

// processPO extracts fields from a PO artifact and upserts the record keyed
// by po_number. Synthetic ".json" artifacts are decoded directly; everything
// else goes through document analysis.
func (p *Processor) processPO(ctx context.Context, bucket, key string) error {
	start := time.Now()

	customerID, err := customerIDFromKey(key)
	if err != nil {
		p.Sink.Record(ctx, notify.Failure(bucket, key, constants.DocTypePurchaseOrder, "", err, time.Since(start)))
		return err
	}

	content, err := p.Store.Get(ctx, bucket, key)
	if err != nil {
		err = fmt.Errorf("%w: %v", common.ErrStorage, err)
		p.Sink.Record(ctx, notify.Failure(bucket, key, constants.DocTypePurchaseOrder, customerID, err, time.Since(start)))
		return err
	}

	var fields extract.DocumentFields
	if strings.HasSuffix(key, ".json") {
		fields, err = decodeSyntheticPO(content)
	} else {
		var res extract.AnalysisResult
		if res, err = p.Analyzer.Analyze(ctx, content); err == nil {
			fields = p.Extractor.Extract(res)
		}
	}
	if err != nil {
		p.Sink.Record(ctx, notify.Failure(bucket, key, constants.DocTypePurchaseOrder, customerID, err, time.Since(start)))
		return err
	}

	if fields.PONumber == "" {
		err = fmt.Errorf("%w: po_number", common.ErrMissingField)
		p.Sink.Record(ctx, notify.Failure(bucket, key, constants.DocTypePurchaseOrder, customerID, err, time.Since(start)))
		return err
	}

	po := &repository.PurchaseOrder{
		PONumber:    fields.PONumber,
		Total:       fields.TotalAmount,
		OrderDate:   fields.OrderDate,
		VendorName:  fields.VendorInfo.Name,
		CustomerID:  customerID,
		ArtifactRef: objectstore.ArtifactRef(bucket, key),
		UploadedAt:  time.Now().UTC(),
	}
	if err := p.POs.Upsert(ctx, po); err != nil {
		p.Sink.Record(ctx, notify.Failure(bucket, key, constants.DocTypePurchaseOrder, customerID, err, time.Since(start)))
		return err
	}
	p.Logger.Info("pipeline.po.stored", "po_number", po.PONumber, "customer_id", customerID, "total", po.Total.String())

	// Structured customers get a canonical JSON export alongside the record.
	if exporter, ok := p.StructuredExporters[customerID]; ok {
		if err := exporter.ExportPO(ctx, fields, objectstore.ArtifactRef(bucket, key)); err != nil {
			p.Sink.Record(ctx, notify.Failure(bucket, key, constants.DocTypePurchaseOrder, customerID, err, time.Since(start)))
			return err
		}
	}

	p.Sink.Record(ctx, notify.Success(bucket, key, constants.DocTypePurchaseOrder, customerID, po.PONumber, time.Since(start)))
	return nil
}

// processText handles emails with no usable attachment. Invoice-like bodies
// reconcile directly; PO-like bodies are rewritten as a synthetic PO JSON
// artifact and chained back through the PO path.
func (p *Processor) processText(ctx context.Context, bucket, key string, decision classify.Decision, start time.Time) error {
	switch classify.ClassifyText(decision.Text) {
	case classify.RouteInvoice:
		fields := textKeyValues(decision.Text)
		cleaned := p.Cleaner.Clean(fields)
		inv := invoiceFromCleaned(cleaned, decision.CustomerID, objectstore.ArtifactRef(bucket, key))
		if err := p.reconcileAndForward(ctx, inv); err != nil {
			p.Sink.Record(ctx, notify.Failure(bucket, key, constants.DocTypeInvoice, decision.CustomerID, err, time.Since(start)))
			return err
		}
		p.Sink.Record(ctx, notify.Success(bucket, key, constants.DocTypeInvoice, decision.CustomerID, inv.InvoiceNumber, time.Since(start)))
		return nil

	default:
		doc, err := p.syntheticPOFromText(decision)
		if err != nil {
			p.Sink.Record(ctx, notify.Failure(bucket, key, constants.DocTypePurchaseOrder, decision.CustomerID, err, time.Since(start)))
			return err
		}
		body, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			err = fmt.Errorf("encode synthetic po: %w", err)
			p.Sink.Record(ctx, notify.Failure(bucket, key, constants.DocTypePurchaseOrder, decision.CustomerID, err, time.Since(start)))
			return err
		}
		newKey := objectstore.ArtifactKey(decision.CustomerID, "json")
		if err := p.Store.Put(ctx, p.Buckets.PO, newKey, body, "application/json"); err != nil {
			err = fmt.Errorf("%w: %v", common.ErrStorage, err)
			p.Sink.Record(ctx, notify.Failure(bucket, key, constants.DocTypePurchaseOrder, decision.CustomerID, err, time.Since(start)))
			return err
		}
		p.Sink.Record(ctx, notify.Success(bucket, key, constants.DocTypeEmail, decision.CustomerID, newKey, time.Since(start)))
		return p.processPO(ctx, p.Buckets.PO, newKey)
	}
}

// syntheticPOFromText builds the synthetic document from cleaned body fields.
// po_number, Total and Date are all required; a body missing any of them is
// not a usable order.
func (p *Processor) syntheticPOFromText(decision classify.Decision) (syntheticPO, error) {
	cleaned := p.Cleaner.Clean(textKeyValues(decision.Text))

	poNumber, _ := cleaned["po_number"].(string)
	total, totalOK := cleaned["Total"].(decimal.Decimal)
	date, _ := cleaned["Date"].(string)

	switch {
	case poNumber == "":
		return syntheticPO{}, fmt.Errorf("%w: text body missing po_number", common.ErrValidation)
	case !totalOK:
		return syntheticPO{}, fmt.Errorf("%w: text body missing Total", common.ErrValidation)
	case date == "":
		return syntheticPO{}, fmt.Errorf("%w: text body missing Date", common.ErrValidation)
	}

	vendor, _ := cleaned["vendor_name"].(string)
	return syntheticPO{
		PONumber:   poNumber,
		OrderTotal: total.String(),
		OrderDate:  date,
		CustomerID: decision.CustomerID,
		VendorName: vendor,
	}, nil
}

// decodeSyntheticPO maps a synthetic PO document back onto DocumentFields so
// the storage step is identical for analyzed and synthetic artifacts.
func decodeSyntheticPO(content []byte) (extract.DocumentFields, error) {
	var doc syntheticPO
	if err := json.Unmarshal(content, &doc); err != nil {
		return extract.DocumentFields{}, fmt.Errorf("%w: decode synthetic po: %v", common.ErrExtraction, err)
	}
	return extract.DocumentFields{
		PONumber:  doc.PONumber,
		OrderDate: doc.OrderDate,
		VendorInfo: extract.VendorInfo{
			Name: doc.VendorName,
		},
		ShippingInfo: extract.ShippingInfo{
			Address: doc.ShippingAddress,
		},
		TotalAmount: extract.Number(doc.OrderTotal),
	}, nil
}

// textKeyValues recovers "Label: value" pairs from a bare text body.
func textKeyValues(text string) map[string]string {
	kv := map[string]string{}
	for _, line := range strings.Split(text, "\n") {
		if k, v, ok := strings.Cut(line, ":"); ok {
			key := strings.TrimSpace(k)
			val := strings.TrimSpace(v)
			if key != "" && val != "" {
				kv[key] = val
			}
		}
	}
	return kv
}
