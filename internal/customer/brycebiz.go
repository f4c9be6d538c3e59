package customer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/flowerwork/iceberg/internal/common"
	"github.com/flowerwork/iceberg/internal/extract"
	"github.com/flowerwork/iceberg/internal/objectstore"
	"github.com/flowerwork/iceberg/internal/repository"
)

// structuredPOSchema constrains the structured PO export before upload so a
// malformed document never reaches the downstream consumer.
const structuredPOSchema = `{
	"type": "object",
	"required": ["order_details", "metadata"],
	"properties": {
		"order_details": {
			"type": "object",
			"required": ["po_number"],
			"properties": {
				"po_number": {"type": "string"},
				"order_date": {"type": "string"},
				"payment_terms": {"type": "string"},
				"total_amount": {"type": "string"}
			}
		},
		"line_items": {"type": "array"},
		"metadata": {
			"type": "object",
			"required": ["creation_timestamp", "processing_status"],
			"properties": {
				"source": {"type": "string"},
				"creation_timestamp": {"type": "string"},
				"processing_status": {"type": "string"}
			}
		}
	}
}`

// StructuredPO is the canonical JSON document exported for customers on the
// structured pipeline.
type StructuredPO struct {
	OrderDetails OrderDetails         `json:"order_details"`
	LineItems    []extract.LineItem   `json:"line_items"`
	Metadata     StructuredPOMetadata `json:"metadata"`
}

type OrderDetails struct {
	PONumber     string               `json:"po_number"`
	OrderDate    string               `json:"order_date"`
	VendorInfo   extract.VendorInfo   `json:"vendor_info"`
	ShippingInfo extract.ShippingInfo `json:"shipping_info"`
	PaymentTerms string               `json:"payment_terms"`
	TotalAmount  string               `json:"total_amount"`
}

type StructuredPOMetadata struct {
	Source            string `json:"source"`
	CreationTimestamp string `json:"creation_timestamp"`
	ProcessingStatus  string `json:"processing_status"`
}

// BrycebizProcessor serves the structured-JSON customer: extracted POs are
// rendered to the canonical document, validated against the schema, and
// uploaded under the {customerId}_{timestamp}_po.json convention.
type BrycebizProcessor struct {
	CustomerID string
	Store      objectstore.Store
	Bucket     string
	Logger     *slog.Logger
	schema     *jsonschema.Schema
	now        func() time.Time
}

func NewBrycebizProcessor(customerID string, store objectstore.Store, bucket string, logger *slog.Logger) (*BrycebizProcessor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("structured_po.json", strings.NewReader(structuredPOSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("structured_po.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &BrycebizProcessor{
		CustomerID: customerID,
		Store:      store,
		Bucket:     bucket,
		Logger:     logger,
		schema:     schema,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

func (p *BrycebizProcessor) Name() string { return "brycebiz" }

// Process exports the completed reconciliation as a structured document for
// the customer's downstream system.
func (p *BrycebizProcessor) Process(ctx context.Context, rec *repository.CompletedReconciliation) error {
	doc := StructuredPO{
		OrderDetails: OrderDetails{
			PONumber:    rec.PONumber,
			OrderDate:   rec.CompletionDate.Format("2006-01-02"),
			VendorInfo:  extract.VendorInfo{Name: rec.VendorName},
			TotalAmount: rec.Total.String(),
		},
		Metadata: StructuredPOMetadata{
			Source:            rec.InvoiceArtifactRef,
			CreationTimestamp: p.now().Format("2006-01-02T15:04:05Z"),
			ProcessingStatus:  "Processed",
		},
	}
	return p.export(ctx, doc)
}

// ExportPO renders and uploads a structured PO built from freshly extracted
// fields (the email-with-PDF structured path).
func (p *BrycebizProcessor) ExportPO(ctx context.Context, fields extract.DocumentFields, source string) error {
	doc := StructuredPO{
		OrderDetails: OrderDetails{
			PONumber:     fields.PONumber,
			OrderDate:    fields.OrderDate,
			VendorInfo:   fields.VendorInfo,
			ShippingInfo: fields.ShippingInfo,
			PaymentTerms: fields.PaymentTerms,
			TotalAmount:  fields.TotalAmount.String(),
		},
		LineItems: fields.LineItems,
		Metadata: StructuredPOMetadata{
			Source:            source,
			CreationTimestamp: p.now().Format("2006-01-02T15:04:05Z"),
			ProcessingStatus:  "Processed",
		},
	}
	return p.export(ctx, doc)
}

func (p *BrycebizProcessor) export(ctx context.Context, doc StructuredPO) error {
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode structured po: %w", err)
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("reparse structured po: %w", err)
	}
	if err := p.schema.Validate(v); err != nil {
		return fmt.Errorf("%w: structured po schema: %v", common.ErrValidation, err)
	}

	key := objectstore.StructuredPOKey(p.CustomerID, p.now())
	if err := p.Store.Put(ctx, p.Bucket, key, body, "application/json"); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	p.Logger.Info("brycebiz.exported", "bucket", p.Bucket, "key", key, "po_number", doc.OrderDetails.PONumber)
	return nil
}
