package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowerwork/iceberg/constants"
)

// Outcome records the result of one pipeline invocation with enough context
// to retry or audit: which artifact, which customer, what happened, and how
// long it took. Outcomes live only in the sink's own store.
type Outcome struct {
	ID             uuid.UUID
	Bucket         string
	FileKey        string
	DocumentType   constants.DocumentType
	CustomerID     string
	DocumentNumber string
	Success        bool
	ErrorDetail    string
	Duration       time.Duration
	At             time.Time
}

// Sink receives processing outcomes. Failures of the sink itself must never
// affect pipeline results, so Record does not return an error.
type Sink interface {
	Record(ctx context.Context, o Outcome)
}

// LogSink reports outcomes through structured logging.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(_ context.Context, o Outcome) {
	attrs := []any{
		"outcome_id", o.ID.String(),
		"bucket", o.Bucket,
		"file_key", o.FileKey,
		"document_type", string(o.DocumentType),
		"customer_id", o.CustomerID,
		"document_number", o.DocumentNumber,
		"duration_ms", o.Duration.Milliseconds(),
	}
	if o.Success {
		s.logger.Info("outcome.success", attrs...)
		return
	}
	s.logger.Error("outcome.failure", append(attrs, "error", o.ErrorDetail)...)
}

// MemorySink keeps outcomes in memory. Used by tests and as a recent-history
// buffer for operator follow-up.
type MemorySink struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Record(_ context.Context, o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, o)
}

// Outcomes returns a copy of everything recorded so far.
func (s *MemorySink) Outcomes() []Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Outcome, len(s.outcomes))
	copy(out, s.outcomes)
	return out
}

// Success builds a success outcome with a fresh id and timestamp.
func Success(bucket, key string, docType constants.DocumentType, customerID, docNumber string, d time.Duration) Outcome {
	return Outcome{
		ID:             uuid.New(),
		Bucket:         bucket,
		FileKey:        key,
		DocumentType:   docType,
		CustomerID:     customerID,
		DocumentNumber: docNumber,
		Success:        true,
		Duration:       d,
		At:             time.Now().UTC(),
	}
}

// Failure builds a failure outcome carrying the error detail.
func Failure(bucket, key string, docType constants.DocumentType, customerID string, err error, d time.Duration) Outcome {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return Outcome{
		ID:           uuid.New(),
		Bucket:       bucket,
		FileKey:      key,
		DocumentType: docType,
		CustomerID:   customerID,
		Success:      false,
		ErrorDetail:  detail,
		Duration:     d,
		At:           time.Now().UTC(),
	}
}
