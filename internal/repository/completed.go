package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flowerwork/iceberg/internal/common"
)

// CompletedReconciliation is the single authoritative record of an invoice
// matched to its PO, keyed by po_number. Total carries the invoice's amount,
// which is authoritative over the PO's quoted amount.
type CompletedReconciliation struct {
	PONumber           string
	InvoiceNumber      string
	Total              decimal.Decimal
	VendorName         string
	CustomerID         string
	InvoiceArtifactRef string
	POArtifactRef      string
	UploadDate         time.Time
	CompletionDate     time.Time
	POSnapshot         json.RawMessage
	InvoiceSnapshot    json.RawMessage
}

type CompletedRepository interface {
	Get(ctx context.Context, poNumber string) (*CompletedReconciliation, error)
	Put(ctx context.Context, rec *CompletedReconciliation) error
	List(ctx context.Context, from, to *time.Time) ([]*CompletedReconciliation, error)
}

type completedRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewCompletedRepository(db *sql.DB, logger *slog.Logger) CompletedRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &completedRepository{db: db, logger: logger}
}

func (r *completedRepository) Get(ctx context.Context, poNumber string) (*CompletedReconciliation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT po_number, invoice_number, total, vendor_name, customer_id,
			invoice_artifact_ref, po_artifact_ref, upload_date, completion_date,
			po_snapshot, invoice_snapshot
		 FROM completed_items WHERE po_number = $1`, poNumber)
	rec, err := scanCompleted(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: completed item %s", common.ErrNotFound, poNumber)
	}
	if err != nil {
		r.logger.Error("completed.get.failed", "po_number", poNumber, "error", err)
		return nil, err
	}
	return rec, nil
}

// Put commits the reconciliation as a single-key upsert. The po_number key
// is the idempotency guard: committing twice for the same key overwrites
// deterministically, and the overwrite is logged with both completion times.
func (r *completedRepository) Put(ctx context.Context, rec *CompletedReconciliation) error {
	if prev, err := r.Get(ctx, rec.PONumber); err == nil {
		r.logger.Warn("completed.put.overwrite",
			"po_number", rec.PONumber,
			"previous_completion", prev.CompletionDate.Format(time.RFC3339),
			"new_completion", rec.CompletionDate.Format(time.RFC3339),
		)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO completed_items (po_number, invoice_number, total, vendor_name, customer_id,
			invoice_artifact_ref, po_artifact_ref, upload_date, completion_date, po_snapshot, invoice_snapshot)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (po_number) DO UPDATE SET
			invoice_number = excluded.invoice_number,
			total = excluded.total,
			vendor_name = excluded.vendor_name,
			customer_id = excluded.customer_id,
			invoice_artifact_ref = excluded.invoice_artifact_ref,
			po_artifact_ref = excluded.po_artifact_ref,
			upload_date = excluded.upload_date,
			completion_date = excluded.completion_date,
			po_snapshot = excluded.po_snapshot,
			invoice_snapshot = excluded.invoice_snapshot`,
		rec.PONumber, rec.InvoiceNumber, rec.Total.String(), rec.VendorName, rec.CustomerID,
		rec.InvoiceArtifactRef, rec.POArtifactRef,
		rec.UploadDate.UTC().Format(time.RFC3339), rec.CompletionDate.UTC().Format(time.RFC3339),
		string(rec.POSnapshot), string(rec.InvoiceSnapshot))
	if err != nil {
		r.logger.Error("completed.put.failed", "po_number", rec.PONumber, "error", err)
		return fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	return nil
}

// List returns completed reconciliations ordered by completion date, with an
// optional inclusive date window.
func (r *completedRepository) List(ctx context.Context, from, to *time.Time) ([]*CompletedReconciliation, error) {
	query := `SELECT po_number, invoice_number, total, vendor_name, customer_id,
		invoice_artifact_ref, po_artifact_ref, upload_date, completion_date,
		po_snapshot, invoice_snapshot
	 FROM completed_items`
	var args []any
	switch {
	case from != nil && to != nil:
		query += ` WHERE completion_date >= $1 AND completion_date <= $2`
		args = append(args, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	case from != nil:
		query += ` WHERE completion_date >= $1`
		args = append(args, from.UTC().Format(time.RFC3339))
	case to != nil:
		query += ` WHERE completion_date <= $1`
		args = append(args, to.UTC().Format(time.RFC3339))
	}
	query += ` ORDER BY completion_date`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	defer rows.Close()

	var recs []*CompletedReconciliation
	for rows.Next() {
		rec, err := scanCompleted(rows.Scan)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	return recs, nil
}

func scanCompleted(scan func(dest ...any) error) (*CompletedReconciliation, error) {
	var rec CompletedReconciliation
	var total, uploadDate, completionDate, poSnap, invSnap string
	err := scan(&rec.PONumber, &rec.InvoiceNumber, &total, &rec.VendorName, &rec.CustomerID,
		&rec.InvoiceArtifactRef, &rec.POArtifactRef, &uploadDate, &completionDate, &poSnap, &invSnap)
	if err != nil {
		return nil, err
	}
	if rec.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("%w: stored total %q: %v", common.ErrStorage, total, err)
	}
	if rec.UploadDate, err = time.Parse(time.RFC3339, uploadDate); err != nil {
		return nil, fmt.Errorf("%w: stored upload_date %q: %v", common.ErrStorage, uploadDate, err)
	}
	if rec.CompletionDate, err = time.Parse(time.RFC3339, completionDate); err != nil {
		return nil, fmt.Errorf("%w: stored completion_date %q: %v", common.ErrStorage, completionDate, err)
	}
	rec.POSnapshot = json.RawMessage(poSnap)
	rec.InvoiceSnapshot = json.RawMessage(invSnap)
	return &rec, nil
}
