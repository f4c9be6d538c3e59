package constants

import "strings"

// DocumentType identifies what kind of artifact a pipeline invocation handles.
type DocumentType string

const (
	DocTypeEmail         DocumentType = "EMAIL"
	DocTypePurchaseOrder DocumentType = "PO"
	DocTypeInvoice       DocumentType = "INVOICE"
	DocTypeStructuredPO  DocumentType = "STRUCTURED_PO"
)

// Storage table names. The reconciliation engine reads and writes these
// through the repository key-value contract only.
const (
	PurchaseOrderTable = "purchase_orders"
	CompletedTable     = "completed_items"
)

// AllowedExtensions holds artifact extensions the ingestion boundary accepts.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"eml":  {},
	"json": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt reports whether ext (with or without a leading dot) is
// accepted at the ingestion boundary.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}
