package customer

import (
	"context"
	"log/slog"

	"github.com/flowerwork/iceberg/internal/accounting"
	"github.com/flowerwork/iceberg/internal/repository"
)

// LabtechProcessor forwards a completed reconciliation to the accounting
// system as a single-line service invoice.
type LabtechProcessor struct {
	Client      *accounting.Client
	CompanyID   string
	CustomerRef string
	Logger      *slog.Logger
}

func NewLabtechProcessor(client *accounting.Client, companyID, customerRef string, logger *slog.Logger) *LabtechProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LabtechProcessor{Client: client, CompanyID: companyID, CustomerRef: customerRef, Logger: logger}
}

func (p *LabtechProcessor) Name() string { return "labtech" }

func (p *LabtechProcessor) Process(ctx context.Context, rec *repository.CompletedReconciliation) error {
	payload := accounting.BuildPayload(rec, p.CustomerRef)
	res, err := p.Client.Submit(ctx, p.CompanyID, payload)
	if err != nil {
		return err
	}
	p.Logger.Info("labtech.submitted",
		"po_number", rec.PONumber,
		"invoice_number", rec.InvoiceNumber,
		"status", res.Status,
	)
	return nil
}
