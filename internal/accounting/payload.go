package accounting

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/flowerwork/iceberg/internal/repository"
)

// Defaults for the single-line service projection every reconciled invoice
// is submitted as.
const (
	DefaultItemRef     = "1"
	DefaultDescription = "Services"
)

// InvoicePayload is the accounting API's invoice shape.
type InvoicePayload struct {
	CustomerRef Ref             `json:"CustomerRef"`
	DocNumber   string          `json:"DocNumber"`
	TxnDate     string          `json:"TxnDate"`
	DueDate     string          `json:"DueDate"`
	TotalAmt    decimal.Decimal `json:"TotalAmt"`
	Line        []Line          `json:"Line"`
}

type Ref struct {
	Value string `json:"value"`
	Name  string `json:"name,omitempty"`
}

type Line struct {
	Description         string              `json:"Description"`
	Amount              decimal.Decimal     `json:"Amount"`
	DetailType          string              `json:"DetailType"`
	SalesItemLineDetail SalesItemLineDetail `json:"SalesItemLineDetail"`
}

type SalesItemLineDetail struct {
	ItemRef   Ref             `json:"ItemRef"`
	UnitPrice decimal.Decimal `json:"UnitPrice"`
	Qty       int             `json:"Qty"`
}

// BuildPayload projects a completed reconciliation into the invoice shape:
// the invoice's own total as a single "Services" line, transaction date from
// the completion date and the due date a week out.
func BuildPayload(rec *repository.CompletedReconciliation, customerRef string) InvoicePayload {
	txnDate := rec.CompletionDate
	if txnDate.IsZero() {
		txnDate = time.Now().UTC()
	}
	return InvoicePayload{
		CustomerRef: Ref{Value: customerRef},
		DocNumber:   rec.InvoiceNumber,
		TxnDate:     txnDate.Format("2006-01-02"),
		DueDate:     txnDate.AddDate(0, 0, 7).Format("2006-01-02"),
		TotalAmt:    rec.Total,
		Line: []Line{{
			Description: DefaultDescription,
			Amount:      rec.Total,
			DetailType:  "SalesItemLineDetail",
			SalesItemLineDetail: SalesItemLineDetail{
				ItemRef:   Ref{Value: DefaultItemRef, Name: DefaultDescription},
				UnitPrice: rec.Total,
				Qty:       1,
			},
		}},
	}
}
