package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flowerwork/iceberg/internal/common"
)

// PurchaseOrder is the persisted PO record, keyed by po_number. A later
// ingestion of the same po_number replaces the earlier record
// (last-write-wins; the superseded snapshot is logged).
type PurchaseOrder struct {
	PONumber    string
	Total       decimal.Decimal
	OrderDate   string
	VendorName  string
	CustomerID  string
	ArtifactRef string
	UploadedAt  time.Time
}

type PurchaseOrderRepository interface {
	Get(ctx context.Context, poNumber string) (*PurchaseOrder, error)
	Upsert(ctx context.Context, po *PurchaseOrder) error
}

type purchaseOrderRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewPurchaseOrderRepository(db *sql.DB, logger *slog.Logger) PurchaseOrderRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &purchaseOrderRepository{db: db, logger: logger}
}

// Get returns the stored PO for an exact po_number, or ErrNotFound.
func (r *purchaseOrderRepository) Get(ctx context.Context, poNumber string) (*PurchaseOrder, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT po_number, total, order_date, vendor_name, customer_id, artifact_ref, uploaded_at
		 FROM purchase_orders WHERE po_number = $1`, poNumber)

	var po PurchaseOrder
	var total, uploadedAt string
	err := row.Scan(&po.PONumber, &total, &po.OrderDate, &po.VendorName, &po.CustomerID, &po.ArtifactRef, &uploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: purchase order %s", common.ErrNotFound, poNumber)
	}
	if err != nil {
		r.logger.Error("po.get.failed", "po_number", poNumber, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrStorage, err)
	}

	if po.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("%w: stored total %q: %v", common.ErrStorage, total, err)
	}
	if po.UploadedAt, err = time.Parse(time.RFC3339, uploadedAt); err != nil {
		return nil, fmt.Errorf("%w: stored uploaded_at %q: %v", common.ErrStorage, uploadedAt, err)
	}
	return &po, nil
}

// Upsert writes the PO in a single atomic put. When it replaces an existing
// record the previous total is logged so the overwrite is auditable.
func (r *purchaseOrderRepository) Upsert(ctx context.Context, po *PurchaseOrder) error {
	if prev, err := r.Get(ctx, po.PONumber); err == nil {
		r.logger.Warn("po.upsert.overwrite",
			"po_number", po.PONumber,
			"previous_total", prev.Total.String(),
			"previous_uploaded_at", prev.UploadedAt.Format(time.RFC3339),
		)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO purchase_orders (po_number, total, order_date, vendor_name, customer_id, artifact_ref, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (po_number) DO UPDATE SET
			total = excluded.total,
			order_date = excluded.order_date,
			vendor_name = excluded.vendor_name,
			customer_id = excluded.customer_id,
			artifact_ref = excluded.artifact_ref,
			uploaded_at = excluded.uploaded_at`,
		po.PONumber, po.Total.String(), po.OrderDate, po.VendorName, po.CustomerID,
		po.ArtifactRef, po.UploadedAt.UTC().Format(time.RFC3339))
	if err != nil {
		r.logger.Error("po.upsert.failed", "po_number", po.PONumber, "error", err)
		return fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	return nil
}
