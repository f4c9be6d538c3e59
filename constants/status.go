package constants

// PipelineStatus is the canonical stage for a document moving through
// reconciliation.
type PipelineStatus string

// Stable values (logged and stored as these exact strings).
const (
	StatusReceived  PipelineStatus = "RECEIVED"  // artifact accepted for processing
	StatusExtracted PipelineStatus = "EXTRACTED" // OCR fields pulled out
	StatusCleaned   PipelineStatus = "CLEANED"   // keys/values normalized
	StatusValidated PipelineStatus = "VALIDATED" // required fields present
	StatusMatched   PipelineStatus = "MATCHED"   // invoice matched to a stored PO
	StatusCommitted PipelineStatus = "COMMITTED" // completed record persisted
	StatusRejected  PipelineStatus = "REJECTED"  // terminal failure
)
