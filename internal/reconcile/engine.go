package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flowerwork/iceberg/constants"
	"github.com/flowerwork/iceberg/internal/common"
	"github.com/flowerwork/iceberg/internal/repository"
)

// Invoice is the cleaned, transient invoice record entering reconciliation.
type Invoice struct {
	InvoiceNumber string
	PONumber      string
	Total         decimal.Decimal
	Date          string
	VendorName    string
	CustomerID    string
	ArtifactRef   string
	Fields        map[string]any // full cleaned field bag, snapshotted on commit
}

// Engine matches a cleaned invoice to its stored PO and commits the single
// authoritative completed record. Stages run strictly in order:
// Extracted -> Cleaned -> Validated -> Matched -> Committed, with any
// failure terminal for this invoice.
type Engine struct {
	pos       repository.PurchaseOrderRepository
	completed repository.CompletedRepository
	logger    *slog.Logger
	now       func() time.Time
}

func NewEngine(pos repository.PurchaseOrderRepository, completed repository.CompletedRepository, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{pos: pos, completed: completed, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Reconcile validates, matches and commits one invoice. Failure kinds are
// distinguishable with errors.Is: ErrMissingField, ErrNoMatchingPO,
// ErrKeyMismatch, ErrStorage.
func (e *Engine) Reconcile(ctx context.Context, inv *Invoice) (*repository.CompletedReconciliation, error) {
	if err := e.validate(inv); err != nil {
		e.reject(inv, err)
		return nil, err
	}
	e.transition(inv, constants.StatusValidated)

	po, err := e.pos.Get(ctx, inv.PONumber)
	if err != nil {
		if common.IsNotFound(err) {
			err = fmt.Errorf("%w: po_number %s", common.ErrNoMatchingPO, inv.PONumber)
		}
		e.reject(inv, err)
		return nil, err
	}

	// Defense against a key-collision read: the fetched record must carry
	// exactly the key we looked up. Business keys match by string equality
	// only, never fuzzily.
	if po.PONumber != inv.PONumber {
		err := fmt.Errorf("%w: invoice %s vs stored %s", common.ErrKeyMismatch, inv.PONumber, po.PONumber)
		e.reject(inv, err)
		return nil, err
	}
	e.transition(inv, constants.StatusMatched)

	rec, err := e.commit(ctx, inv, po)
	if err != nil {
		e.reject(inv, err)
		return nil, err
	}
	e.transition(inv, constants.StatusCommitted)
	return rec, nil
}

// validate gates entry into matching: invoice_number, po_number and a
// non-zero Total must all be present. A zero Total counts as missing.
func (e *Engine) validate(inv *Invoice) error {
	switch {
	case inv.InvoiceNumber == "":
		return fmt.Errorf("%w: invoice_number", common.ErrMissingField)
	case inv.PONumber == "":
		return fmt.Errorf("%w: po_number", common.ErrMissingField)
	case inv.Total.IsZero() || inv.Total.IsNegative():
		return fmt.Errorf("%w: Total", common.ErrMissingField)
	}
	return nil
}

// commit persists the completed record in a single upsert keyed by
// po_number. The invoice's Total is authoritative over the PO's quoted
// amount. Concurrent commits for the same key are not serialized here; the
// storage layer's atomic per-key put decides, last write wins.
func (e *Engine) commit(ctx context.Context, inv *Invoice, po *repository.PurchaseOrder) (*repository.CompletedReconciliation, error) {
	poSnap, err := json.Marshal(po)
	if err != nil {
		return nil, fmt.Errorf("snapshot po: %w", err)
	}
	invSnap, err := json.Marshal(inv)
	if err != nil {
		return nil, fmt.Errorf("snapshot invoice: %w", err)
	}

	now := e.now()
	rec := &repository.CompletedReconciliation{
		PONumber:           inv.PONumber,
		InvoiceNumber:      inv.InvoiceNumber,
		Total:              inv.Total,
		VendorName:         po.VendorName,
		CustomerID:         inv.CustomerID,
		InvoiceArtifactRef: inv.ArtifactRef,
		POArtifactRef:      po.ArtifactRef,
		UploadDate:         now,
		CompletionDate:     now,
		POSnapshot:         poSnap,
		InvoiceSnapshot:    invSnap,
	}
	if err := e.completed.Put(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (e *Engine) transition(inv *Invoice, status constants.PipelineStatus) {
	e.logger.Info("reconcile.transition",
		"status", string(status),
		"po_number", inv.PONumber,
		"invoice_number", inv.InvoiceNumber,
	)
}

func (e *Engine) reject(inv *Invoice, err error) {
	e.logger.Warn("reconcile.rejected",
		"status", string(constants.StatusRejected),
		"po_number", inv.PONumber,
		"invoice_number", inv.InvoiceNumber,
		"error", err,
	)
}
