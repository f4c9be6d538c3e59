package extract

import (
	"context"

	"github.com/shopspring/decimal"
)

// Analyzer is the OCR/ML collaborator: document bytes -> lines, tables and
// key-value blocks. The engine behind it (Textract or similar) is external;
// core tests supply recorded results instead of calling it.
type Analyzer interface {
	Analyze(ctx context.Context, content []byte) (AnalysisResult, error)
}

// AnalysisResult is the raw output of one analyze call. Lines and table rows
// keep source order; key-value pair order is irrelevant.
type AnalysisResult struct {
	Lines         []string
	Tables        [][][]string
	KeyValuePairs map[string]string
}

// RawText joins the detected lines back into a single block of text.
func (r AnalysisResult) RawText() string {
	out := ""
	for _, line := range r.Lines {
		out += line + "\n"
	}
	return out
}

// DocumentFields is the normalized structured output of field extraction.
type DocumentFields struct {
	PONumber     string          `json:"po_number"`
	OrderDate    string          `json:"order_date"`
	VendorInfo   VendorInfo      `json:"vendor_info"`
	ShippingInfo ShippingInfo    `json:"shipping_info"`
	PaymentTerms string          `json:"payment_terms"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	LineItems    []LineItem      `json:"line_items"`
}

type VendorInfo struct {
	Name    string `json:"name"`
	Number  string `json:"number"`
	Address string `json:"address"`
	TaxID   string `json:"tax_id"`
}

type ShippingInfo struct {
	Address string `json:"address"`
	Method  string `json:"method"`
}

// LineItem is one row of a line-item-bearing table, in source row order.
type LineItem struct {
	Description   string          `json:"description"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	UnitOfMeasure string          `json:"unit_of_measure"`
	DeliveryDate  string          `json:"delivery_date"`
}
